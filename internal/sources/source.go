// Package sources holds the concrete adapters, one per kind of external source, and builds
// the adapter registry from a curated list of source specs.
package sources

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/adapter"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/listing"
	"github.com/baxromumarov/job-aggregator/internal/urlutil"
)

// Extra keys adapters may emit besides the canonical ones. Normalization drops them.
const (
	keyLocation   = "location"
	keyPostedAt   = "posted_at"
	keyDepartment = "department"
	keyTags       = "tags"
	keySalary     = "salary"
)

type base struct {
	name  string
	class adapter.Class
}

func (b base) Name() string         { return b.name }
func (b base) Class() adapter.Class { return b.class }

// fetchFailed wraps transport errors. Payloads that cannot be decoded will not decode on
// the next attempt either, so they are marked permanent.
func fetchFailed(source string, err error) error {
	if errors.Is(err, httpx.ErrDecode) {
		return adapter.Permanent(fmt.Errorf("%s %w", source, err))
	}
	return fmt.Errorf("%s fetch failed: %w", source, err)
}

func parseFailed(source string, err error) error {
	return adapter.Permanent(fmt.Errorf("%s parse failed: %w", source, err))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// put stores v under key unless it is blank, so optional fields stay absent.
func put(raw listing.Raw, key, v string) {
	if v = strings.TrimSpace(v); v != "" {
		raw[key] = v
	}
}

// boardToken is the first path segment of an ATS board URL ("acme" in
// https://jobs.lever.co/acme). Platform root pages have none.
func boardToken(kind, raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%s: invalid board url %q", kind, raw)
	}
	token := urlutil.FirstSegment(raw)
	if token == "" || token == "embed" {
		if forBoard := u.Query().Get("for"); forBoard != "" {
			return forBoard, nil
		}
		return "", fmt.Errorf("%s: board url %q has no board token", kind, raw)
	}
	return token, nil
}
