package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/adapter"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/listing"
)

const (
	adzunaBaseURL  = "https://api.adzuna.com"
	adzunaCountry  = "us"
	adzunaPageSize = 50
)

var ErrAdzunaCredentials = errors.New("adzuna: app id and app key are required")

// AdzunaCredentials authenticate against the Adzuna search API.
type AdzunaCredentials struct {
	AppID   string
	AppKey  string
	Country string
}

func (c AdzunaCredentials) Valid() bool {
	return c.AppID != "" && c.AppKey != ""
}

type adzunaSearchResponse struct {
	Count   int             `json:"count"`
	Results []adzunaPosting `json:"results"`
}

type adzunaPosting struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Created     string  `json:"created"`
	RedirectURL string  `json:"redirect_url"`
	SalaryMin   float64 `json:"salary_min"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

// Adzuna queries the Adzuna job search API for one keyword query.
type Adzuna struct {
	base
	baseURL string
	country string
	query   string
	creds   AdzunaCredentials
	client  *httpx.Client
}

// NewAdzuna builds the adapter. baseURL may be empty for the public API; country falls
// back to the credentials' country and then to "us".
func NewAdzuna(name, baseURL, query, country string, creds AdzunaCredentials, client *httpx.Client) (*Adzuna, error) {
	if !creds.Valid() {
		return nil, ErrAdzunaCredentials
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("adzuna: query is required")
	}
	if baseURL == "" {
		baseURL = adzunaBaseURL
	}
	if country == "" {
		country = creds.Country
	}
	if country == "" {
		country = adzunaCountry
	}
	return &Adzuna{
		base:    base{name: name, class: adapter.Light},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		country: strings.ToLower(country),
		query:   query,
		creds:   creds,
		client:  client,
	}, nil
}

func (a *Adzuna) Fetch(ctx context.Context) ([]listing.Raw, error) {
	u, err := a.searchURL()
	if err != nil {
		return nil, adapter.Permanent(err)
	}

	var payload adzunaSearchResponse
	if err := a.client.GetJSON(ctx, u, &payload); err != nil {
		return nil, fetchFailed("adzuna", err)
	}

	out := make([]listing.Raw, 0, len(payload.Results))
	for _, p := range payload.Results {
		raw := listing.Raw{
			"company_name": p.Company.DisplayName,
			"title":        p.Title,
			"url":          p.RedirectURL,
		}
		put(raw, keyLocation, p.Location.DisplayName)
		if p.SalaryMin > 0 {
			put(raw, keySalary, strconv.FormatFloat(p.SalaryMin, 'f', 0, 64))
		}
		if ts, err := time.Parse(time.RFC3339, p.Created); err == nil {
			put(raw, keyPostedAt, formatDate(ts))
		}
		out = append(out, raw)
	}
	return out, nil
}

func (a *Adzuna) searchURL() (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", fmt.Errorf("adzuna: parse base url: %w", err)
	}
	u.Path = path.Join(u.Path, "v1", "api", "jobs", a.country, "search", "1")

	values := url.Values{}
	values.Set("app_id", a.creds.AppID)
	values.Set("app_key", a.creds.AppKey)
	values.Set("what", a.query)
	values.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	values.Set("content-type", "application/json")
	u.RawQuery = values.Encode()
	return u.String(), nil
}
