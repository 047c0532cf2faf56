// Package content extracts schema.org JobPosting data from JSON-LD blocks.
package content

import (
	"encoding/json"
	"strings"
	"time"
)

// Posting is the subset of a schema.org JobPosting the aggregator cares about.
type Posting struct {
	Title       string
	Company     string
	URL         string
	Location    string
	Description string
	PostedAt    time.Time
}

// HasJobPosting reports whether raw is valid JSON-LD containing at least one JobPosting.
func HasJobPosting(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return false
	}
	return containsJobPosting(payload)
}

// ParseJobPostings returns every JobPosting in raw, walking arrays and @graph containers.
// Invalid JSON yields nil.
func ParseJobPostings(raw string) []Posting {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	var out []Posting
	findJobPostings(payload, &out)
	return out
}

func containsJobPosting(payload any) bool {
	switch t := payload.(type) {
	case map[string]any:
		if isJobPostingType(t["@type"]) {
			return true
		}
		if graph, ok := t["@graph"].([]any); ok {
			for _, item := range graph {
				if containsJobPosting(item) {
					return true
				}
			}
		}
	case []any:
		for _, item := range t {
			if containsJobPosting(item) {
				return true
			}
		}
	}
	return false
}

func findJobPostings(payload any, out *[]Posting) {
	switch t := payload.(type) {
	case map[string]any:
		if p, ok := postingFromMap(t); ok {
			*out = append(*out, p)
		}
		if graph, ok := t["@graph"].([]any); ok {
			for _, item := range graph {
				findJobPostings(item, out)
			}
		}
	case []any:
		for _, item := range t {
			findJobPostings(item, out)
		}
	}
}

func postingFromMap(payload map[string]any) (Posting, bool) {
	if !isJobPostingType(payload["@type"]) {
		return Posting{}, false
	}

	p := Posting{
		URL:         stringField(payload["url"]),
		Title:       stringField(payload["title"]),
		Description: stringField(payload["description"]),
		Company:     orgName(payload["hiringOrganization"]),
		Location:    parseLocation(payload["jobLocation"]),
		PostedAt:    parseDate(payload["datePosted"]),
	}
	if p.Title == "" {
		p.Title = stringField(payload["name"])
	}
	if p.Title == "" && p.Description == "" {
		return Posting{}, false
	}
	return p, true
}

func isJobPostingType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "JobPosting"
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if val, ok := t["@value"]; ok {
			if str, ok2 := val.(string); ok2 {
				return strings.TrimSpace(str)
			}
		}
	}
	return ""
}

func orgName(v any) string {
	if name := stringField(v); name != "" {
		return name
	}
	if org, ok := v.(map[string]any); ok {
		return stringField(org["name"])
	}
	return ""
}

func parseLocation(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if loc := parseLocation(item); loc != "" {
				return loc
			}
		}
	case map[string]any:
		if addr, ok := t["address"].(map[string]any); ok {
			return joinParts(
				stringField(addr["addressLocality"]),
				stringField(addr["addressRegion"]),
				stringField(addr["addressCountry"]),
			)
		}
		if name := stringField(t["name"]); name != "" {
			return name
		}
	}
	return ""
}

func parseDate(v any) time.Time {
	val := stringField(v)
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

func joinParts(parts ...string) string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(p))
	}
	return strings.Join(out, ", ")
}
