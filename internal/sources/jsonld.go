package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gocolly/colly/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/baxromumarov/job-aggregator/internal/adapter"
	"github.com/baxromumarov/job-aggregator/internal/content"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/listing"
	"github.com/baxromumarov/job-aggregator/internal/urlutil"
)

const defaultMaxDetailPages = 25

var jobLinkHints = []string{"job", "career", "opening", "position", "vacanc", "vakans"}

// JSONLD reads a company career page. It prefers schema.org JobPosting blocks on the page
// itself and otherwise follows job-looking links to detail pages, one request at a time,
// which is why it runs in the heavy pool.
type JSONLD struct {
	base
	pageURL  string
	company  string
	maxPages int
	fetcher  *httpx.CollyFetcher
}

func NewJSONLD(name, pageURL, company string, class adapter.Class, fetcher *httpx.CollyFetcher) (*JSONLD, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("jsonld: invalid page url %q", pageURL)
	}
	if company == "" {
		company = strings.TrimPrefix(u.Hostname(), "www.")
	}
	return &JSONLD{
		base:     base{name: name, class: class},
		pageURL:  u.String(),
		company:  company,
		maxPages: defaultMaxDetailPages,
		fetcher:  fetcher,
	}, nil
}

func (j *JSONLD) Fetch(ctx context.Context) ([]listing.Raw, error) {
	page, _ := url.Parse(j.pageURL)

	var (
		postings []content.Posting
		links    []string
	)
	seen := make(map[string]struct{})
	err := j.fetcher.Fetch(ctx, j.pageURL, func(c *colly.Collector) {
		c.OnHTML("script[type='application/ld+json']", func(e *colly.HTMLElement) {
			postings = append(postings, content.ParseJobPostings(e.Text)...)
		})
		c.OnHTML("a[href]", func(e *colly.HTMLElement) {
			if link := detailLink(page, e.Attr("href"), e.Text); link != "" {
				if _, ok := seen[link]; !ok {
					seen[link] = struct{}{}
					links = append(links, link)
				}
			}
		})
	})
	if err != nil {
		return nil, fetchFailed("jsonld", err)
	}

	if len(postings) > 0 {
		return j.toRaw(postings, j.pageURL), nil
	}

	out := []listing.Raw{}
	for i, link := range links {
		if i >= j.maxPages {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, ok := j.detail(ctx, link)
		if ok {
			out = append(out, raw)
		}
	}
	return out, nil
}

// detail reads one job page. Pages that fail or carry no title are skipped.
func (j *JSONLD) detail(ctx context.Context, link string) (listing.Raw, bool) {
	var (
		posting *content.Posting
		title   string
	)
	err := j.fetcher.Fetch(ctx, link, func(c *colly.Collector) {
		c.OnHTML("script[type='application/ld+json']", func(e *colly.HTMLElement) {
			if posting != nil {
				return
			}
			if found := content.ParseJobPostings(e.Text); len(found) > 0 {
				posting = &found[0]
			}
		})
		c.OnHTML("h1", func(e *colly.HTMLElement) {
			if title == "" {
				title = strings.TrimSpace(e.Text)
			}
		})
		c.OnHTML("title", func(e *colly.HTMLElement) {
			if title == "" {
				title = strings.TrimSpace(e.Text)
			}
		})
	})
	if err != nil {
		return nil, false
	}

	if posting != nil {
		if posting.Title == "" {
			posting.Title = title
		}
		if posting.URL == "" {
			posting.URL = link
		}
		raws := j.toRaw([]content.Posting{*posting}, link)
		return raws[0], true
	}
	if title == "" {
		title = pathTitleFromURL(link)
	}
	if title == "" {
		return nil, false
	}
	return listing.Raw{
		listing.FieldCompany:   j.company,
		listing.FieldVacancy:   title,
		listing.FieldApplyLink: link,
	}, true
}

func (j *JSONLD) toRaw(postings []content.Posting, pageURL string) []listing.Raw {
	out := make([]listing.Raw, 0, len(postings))
	for i, p := range postings {
		link := p.URL
		if link == "" {
			link = pageURL + "#job-" + strconv.Itoa(i+1)
		}
		title := p.Title
		if title == "" {
			title = pathTitleFromURL(link)
		}
		company := p.Company
		if company == "" {
			company = j.company
		}
		raw := listing.Raw{
			listing.FieldCompany:   company,
			listing.FieldVacancy:   title,
			listing.FieldApplyLink: link,
		}
		put(raw, keyLocation, p.Location)
		put(raw, keyPostedAt, formatDate(p.PostedAt))
		out = append(out, raw)
	}
	return out
}

// detailLink returns the normalized link when href points at a same-host page that looks
// like a job posting.
func detailLink(page *url.URL, href, text string) string {
	lower := strings.ToLower(href + " " + strings.TrimSpace(text))
	hinted := false
	for _, hint := range jobLinkHints {
		if strings.Contains(lower, hint) {
			hinted = true
			break
		}
	}
	if !hinted {
		return ""
	}

	resolved := urlutil.Resolve(page, href)
	if resolved == "" {
		return ""
	}
	normalized, host, err := urlutil.Normalize(resolved)
	if err != nil || !urlutil.SameHost(page, host) || !urlutil.IsCrawlable(normalized) {
		return ""
	}
	if pageNorm, _, err := urlutil.Normalize(page.String()); err == nil && pageNorm == normalized {
		return ""
	}
	return normalized
}

func pathTitleFromURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	parts := strings.Split(u, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		p := strings.TrimSpace(parts[i])
		if p == "" {
			continue
		}
		p = strings.ReplaceAll(p, "-", " ")
		p = strings.ReplaceAll(p, "_", " ")
		return cases.Title(language.Und).String(p)
	}
	return ""
}
