package sources

import (
	"bytes"
	"context"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/baxromumarov/job-aggregator/internal/adapter"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/listing"
)

// RSS reads a job feed (RSS or Atom). Items are optionally filtered by keywords on the title.
type RSS struct {
	base
	feedURL  string
	company  string
	keywords []string
	client   *httpx.Client
}

func NewRSS(name, feedURL, company string, keywords []string, client *httpx.Client) *RSS {
	return &RSS{
		base:     base{name: name, class: adapter.Light},
		feedURL:  feedURL,
		company:  strings.TrimSpace(company),
		keywords: keywords,
		client:   client,
	}
}

func (r *RSS) Fetch(ctx context.Context) ([]listing.Raw, error) {
	body, err := r.client.GetBytes(ctx, r.feedURL)
	if err != nil {
		return nil, fetchFailed("rss", err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, parseFailed("rss", err)
	}

	out := []listing.Raw{}
	for _, it := range feed.Items {
		title := strings.TrimSpace(it.Title)
		if len(r.keywords) > 0 && !MatchesKeywords(title, r.keywords) {
			continue
		}

		company, vacancy := r.splitTitle(title)
		if company == "" && it.Author != nil {
			company = it.Author.Name
		}
		if company == "" {
			company = feed.Title
		}

		raw := listing.Raw{
			"employer": company,
			"title":    vacancy,
			"link":     strings.TrimSpace(it.Link),
		}
		if it.PublishedParsed != nil {
			put(raw, keyPostedAt, formatDate(*it.PublishedParsed))
		} else if it.UpdatedParsed != nil {
			put(raw, keyPostedAt, formatDate(*it.UpdatedParsed))
		}
		out = append(out, raw)
	}
	return out, nil
}

// splitTitle handles feeds that title items "Company: Position". A configured company
// always wins.
func (r *RSS) splitTitle(title string) (string, string) {
	if r.company != "" {
		return r.company, title
	}
	if company, vacancy, ok := strings.Cut(title, ": "); ok && company != "" && vacancy != "" {
		return strings.TrimSpace(company), strings.TrimSpace(vacancy)
	}
	return "", title
}

// MatchesKeywords reports whether text contains any keyword, ignoring case.
func MatchesKeywords(text string, keywords []string) bool {
	lowerText := strings.ToLower(text)
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if strings.Contains(lowerText, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
