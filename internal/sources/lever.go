package sources

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/adapter"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/listing"
	"github.com/baxromumarov/job-aggregator/internal/urlutil"
)

type leverPosting struct {
	ID          string        `json:"id"`
	Text        string        `json:"text"`
	HostedURL   string        `json:"hostedUrl"`
	Categories  leverCategory `json:"categories"`
	CreatedAt   int64         `json:"createdAt"`
	Description string        `json:"descriptionPlain"`
}

type leverCategory struct {
	Team     string `json:"team"`
	Location string `json:"location"`
}

// Lever reads the public postings API of a Lever-hosted company.
type Lever struct {
	base
	apiURL  string
	company string
	client  *httpx.Client
}

func NewLever(name, boardURL, company string, client *httpx.Client) (*Lever, error) {
	token, err := boardToken("lever", boardURL)
	if err != nil {
		return nil, err
	}
	if company == "" {
		company = token
	}
	return &Lever{
		base:    base{name: name, class: adapter.Light},
		apiURL:  leverAPIURL(boardURL, token),
		company: company,
		client:  client,
	}, nil
}

func (l *Lever) Fetch(ctx context.Context) ([]listing.Raw, error) {
	var postings []leverPosting
	if err := l.client.GetJSON(ctx, l.apiURL, &postings); err != nil {
		return nil, fetchFailed("lever", err)
	}

	out := make([]listing.Raw, 0, len(postings))
	for _, p := range postings {
		// Lever's own field names; the alias table maps them.
		raw := listing.Raw{
			"company_name": l.company,
			"title":        p.Text,
			"url":          p.HostedURL,
		}
		put(raw, keyLocation, p.Categories.Location)
		put(raw, keyDepartment, p.Categories.Team)
		if p.CreatedAt > 0 {
			put(raw, keyPostedAt, formatDate(time.UnixMilli(p.CreatedAt)))
		}
		out = append(out, raw)
	}
	return out, nil
}

func leverAPIURL(boardURL, token string) string {
	u, err := url.Parse(boardURL)
	if err == nil && urlutil.ATSKind(u.Hostname()) == "lever" {
		return "https://api.lever.co/v0/postings/" + url.PathEscape(token) + "?mode=json"
	}
	apiURL := strings.TrimSuffix(boardURL, "/")
	if !strings.Contains(apiURL, "mode=json") {
		apiURL += "?mode=json"
	}
	return apiURL
}
