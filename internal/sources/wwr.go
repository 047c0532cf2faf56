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

const wwrURL = "https://weworkremotely.com/categories/remote-programming-jobs"

// WWR scrapes a We Work Remotely category page.
type WWR struct {
	base
	pageURL string
	client  *httpx.Client
}

func NewWWR(name, pageURL string, client *httpx.Client) *WWR {
	if pageURL == "" {
		pageURL = wwrURL
	}
	return &WWR{
		base:    base{name: name, class: adapter.Light},
		pageURL: pageURL,
		client:  client,
	}
}

func (w *WWR) Fetch(ctx context.Context) ([]listing.Raw, error) {
	resp, err := w.client.Get(ctx, w.pageURL, nil)
	if err != nil {
		return nil, fetchFailed("wwr", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, parseFailed("wwr", err)
	}

	page, _ := url.Parse(w.pageURL)
	out := []listing.Raw{}
	doc.Find("section.jobs article ul li a").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}
		title := strings.TrimSpace(s.Find("span.title").Text())
		company := strings.TrimSpace(s.Find("span.company").First().Text())
		if title == "" && company == "" {
			// "view all" links share the selector
			return
		}
		raw := listing.Raw{
			listing.FieldCompany:   company,
			listing.FieldVacancy:   title,
			listing.FieldApplyLink: urlutil.Resolve(page, href),
			keyLocation:            "Remote",
		}
		put(raw, keyLocation, s.Find("span.region").Text())
		out = append(out, raw)
	})
	return out, nil
}
