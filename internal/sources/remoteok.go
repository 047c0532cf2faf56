package sources

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/adapter"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/listing"
)

const remoteOKURL = "https://remoteok.com/api"

// RemoteOK API returns a JSON array; the first element is metadata.
type remoteOKJob struct {
	Slug     string   `json:"slug"`
	Company  string   `json:"company"`
	Position string   `json:"position"`
	URL      string   `json:"url"`
	Tags     []string `json:"tags"`
	Date     string   `json:"date"`
	Location string   `json:"location"`
	Salary   int      `json:"salary_min"`
}

type RemoteOK struct {
	base
	apiURL string
	tag    string
	client *httpx.Client
}

// NewRemoteOK reads apiURL (the public API when empty), keeping only jobs tagged tag.
// An empty tag keeps everything.
func NewRemoteOK(name, apiURL, tag string, client *httpx.Client) *RemoteOK {
	if apiURL == "" {
		apiURL = remoteOKURL
	}
	return &RemoteOK{
		base:   base{name: name, class: adapter.Light},
		apiURL: apiURL,
		tag:    strings.TrimSpace(tag),
		client: client,
	}
}

func (r *RemoteOK) Fetch(ctx context.Context) ([]listing.Raw, error) {
	var data []remoteOKJob
	if err := r.client.GetJSON(ctx, r.apiURL, &data); err != nil {
		return nil, fetchFailed("remoteok", err)
	}

	out := []listing.Raw{}
	for _, j := range data {
		// metadata element
		if j.Slug == "" || j.URL == "" {
			continue
		}
		if r.tag != "" && !hasTag(j.Tags, r.tag) {
			continue
		}
		raw := listing.Raw{
			listing.FieldCompany: j.Company,
			"position":           j.Position,
			"url":                j.URL,
		}
		put(raw, keyLocation, j.Location)
		put(raw, keyTags, strings.Join(j.Tags, ","))
		put(raw, keyPostedAt, formatDate(parseRemoteOKDate(j.Date)))
		if j.Salary > 0 {
			put(raw, keySalary, strconv.Itoa(j.Salary))
		}
		out = append(out, raw)
	}
	return out, nil
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

func parseRemoteOKDate(val string) time.Time {
	if val == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}
	}
	return t
}
