package sources

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/job-aggregator/internal/adapter"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/listing"
	"github.com/baxromumarov/job-aggregator/internal/urlutil"
)

// Greenhouse scrapes the embeddable job board of a Greenhouse-hosted company.
type Greenhouse struct {
	base
	pageURL string
	company string
	client  *httpx.Client
}

func NewGreenhouse(name, boardURL, company string, client *httpx.Client) (*Greenhouse, error) {
	token, err := boardToken("greenhouse", boardURL)
	if err != nil {
		return nil, err
	}
	if company == "" {
		company = token
	}
	return &Greenhouse{
		base:    base{name: name, class: adapter.Light},
		pageURL: greenhouseEmbedURL(boardURL, token),
		company: company,
		client:  client,
	}, nil
}

func (g *Greenhouse) Fetch(ctx context.Context) ([]listing.Raw, error) {
	resp, err := g.client.Get(ctx, g.pageURL, nil)
	if err != nil {
		return nil, fetchFailed("greenhouse", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, parseFailed("greenhouse", err)
	}

	page, _ := url.Parse(g.pageURL)
	out := []listing.Raw{}
	doc.Find(".opening").Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a").First()
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		raw := listing.Raw{
			listing.FieldCompany:   g.company,
			listing.FieldVacancy:   strings.TrimSpace(link.Text()),
			listing.FieldApplyLink: urlutil.Resolve(page, href),
		}
		put(raw, keyLocation, s.Find(".location").Text())
		if dept, ok := s.Attr("department_id"); ok {
			put(raw, keyDepartment, dept)
		}
		out = append(out, raw)
	})
	return out, nil
}

// greenhouseEmbedURL maps a public board URL to its server-rendered embed page. URLs on
// other hosts (mirrors, test servers) are used as given.
func greenhouseEmbedURL(boardURL, token string) string {
	if strings.Contains(boardURL, "/embed/") {
		return boardURL
	}
	u, err := url.Parse(boardURL)
	if err != nil || urlutil.ATSKind(u.Hostname()) != "greenhouse" {
		return boardURL
	}
	return "https://boards.greenhouse.io/embed/job_board?for=" + url.QueryEscape(token)
}
