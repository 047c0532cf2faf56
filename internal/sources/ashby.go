package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/adapter"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/listing"
)

type ashbyAppData struct {
	Organization *struct {
		Name string `json:"name"`
	} `json:"organization"`
	JobBoard *struct {
		JobPostings []ashbyJobPosting `json:"jobPostings"`
	} `json:"jobBoard"`
}

type ashbyJobPosting struct {
	ID             string `json:"id"`
	JobID          string `json:"jobId"`
	Title          string `json:"title"`
	LocationName   string `json:"locationName"`
	WorkplaceType  string `json:"workplaceType"`
	EmploymentType string `json:"employmentType"`
	PublishedDate  string `json:"publishedDate"`
	UpdatedAt      string `json:"updatedAt"`
	TeamName       string `json:"teamName"`
	DepartmentName string `json:"departmentName"`
	IsListed       bool   `json:"isListed"`
}

// Ashby reads the job board state Ashby embeds in its board page.
type Ashby struct {
	base
	boardURL string
	company  string
	client   *httpx.Client
}

func NewAshby(name, boardURL, company string, client *httpx.Client) (*Ashby, error) {
	token, err := boardToken("ashby", boardURL)
	if err != nil {
		return nil, err
	}
	if company == "" {
		company = token
	}
	return &Ashby{
		base:     base{name: name, class: adapter.Light},
		boardURL: strings.TrimSuffix(strings.TrimSpace(boardURL), "/"),
		company:  company,
		client:   client,
	}, nil
}

func (a *Ashby) Fetch(ctx context.Context) ([]listing.Raw, error) {
	body, err := a.client.GetBytes(ctx, a.boardURL)
	if err != nil {
		return nil, fetchFailed("ashby", err)
	}

	dataJSON, err := extractAshbyAppData(body)
	if err != nil {
		return nil, parseFailed("ashby appdata", err)
	}
	var app ashbyAppData
	if err := json.Unmarshal(dataJSON, &app); err != nil {
		return nil, parseFailed("ashby appdata", err)
	}
	if app.JobBoard == nil {
		return []listing.Raw{}, nil
	}

	company := a.company
	if app.Organization != nil && strings.TrimSpace(app.Organization.Name) != "" {
		company = strings.TrimSpace(app.Organization.Name)
	}

	seen := make(map[string]struct{})
	out := []listing.Raw{}
	for _, posting := range app.JobBoard.JobPostings {
		if !posting.IsListed {
			continue
		}
		jobID := posting.JobID
		if jobID == "" {
			jobID = posting.ID
		}
		if jobID == "" {
			continue
		}
		if _, ok := seen[jobID]; ok {
			continue
		}
		seen[jobID] = struct{}{}

		posted := parseAshbyDate(posting.PublishedDate)
		if posted.IsZero() {
			posted = parseAshbyDate(posting.UpdatedAt)
		}

		raw := listing.Raw{
			"company_name": company,
			"job_title":    posting.Title,
			"job_url":      a.boardURL + "/" + jobID,
		}
		put(raw, keyLocation, ashbyLocation(posting))
		put(raw, keyDepartment, posting.DepartmentName)
		put(raw, keyPostedAt, formatDate(posted))
		out = append(out, raw)
	}
	return out, nil
}

func ashbyLocation(p ashbyJobPosting) string {
	loc := strings.TrimSpace(p.LocationName)
	if p.WorkplaceType == "" || strings.Contains(strings.ToLower(loc), strings.ToLower(p.WorkplaceType)) {
		return loc
	}
	if loc == "" {
		return p.WorkplaceType
	}
	return loc + " (" + p.WorkplaceType + ")"
}

func extractAshbyAppData(body []byte) ([]byte, error) {
	marker := []byte("window.__appData")
	idx := bytes.Index(body, marker)
	if idx == -1 {
		return nil, errors.New("appdata marker not found")
	}
	start := bytes.IndexByte(body[idx+len(marker):], '{')
	if start == -1 {
		return nil, errors.New("appdata json start not found")
	}
	start += idx + len(marker)

	return extractJSONObject(body, start)
}

// extractJSONObject returns the balanced {...} object starting at body[start].
func extractJSONObject(body []byte, start int) ([]byte, error) {
	depth := 0
	inString := false
	escape := false

	for i := start; i < len(body); i++ {
		c := body[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			if c == '\\' {
				escape = true
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return body[start : i+1], nil
			}
		}
	}

	return nil, errors.New("appdata json end not found")
}

func parseAshbyDate(val string) time.Time {
	if val == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, val); err == nil {
			return t
		}
	}
	return time.Time{}
}
