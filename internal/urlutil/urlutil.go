package urlutil

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

var careerRoots = []string{
	"careers",
	"jobs",
	"join-us",
	"joinus",
	"work-with-us",
	"workwithus",
}

var jobListSegments = []string{
	"jobs",
	"careers",
	"openings",
	"positions",
	"vacancies",
	"job-openings",
	"job-board",
	"jobs-board",
}

var staticExtensions = map[string]struct{}{
	".css":   {},
	".gif":   {},
	".ico":   {},
	".jpeg":  {},
	".jpg":   {},
	".js":    {},
	".mp3":   {},
	".mp4":   {},
	".pdf":   {},
	".png":   {},
	".svg":   {},
	".ttf":   {},
	".woff":  {},
	".woff2": {},
	".zip":   {},
}

// atsHosts maps hosted applicant-tracking systems to the source kind that reads them.
// Hosts without a dedicated kind map to "".
var atsHosts = []struct {
	host string
	kind string
}{
	{"boards.greenhouse.io", "greenhouse"},
	{"job-boards.greenhouse.io", "greenhouse"},
	{"greenhouse.io", "greenhouse"},
	{"jobs.lever.co", "lever"},
	{"lever.co", "lever"},
	{"jobs.ashbyhq.com", "ashby"},
	{"ashbyhq.com", "ashby"},
	{"workdayjobs.com", ""},
	{"myworkdayjobs.com", ""},
	{"smartrecruiters.com", ""},
	{"bamboohr.com", ""},
	{"workable.com", ""},
}

// Normalize canonicalises raw for comparison: default scheme, lowercase host without www,
// clean path, no fragment, no tracking parameters. It returns the URL and its hostname.
func Normalize(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Fragment = ""
	u.Host = normalizeHost(u.Host)
	u.Path = normalizePath(u.Path)
	u.Path = stripLocalePrefix(u.Path)
	u.RawQuery = normalizeQuery(u.RawQuery)
	return u.String(), u.Hostname(), nil
}

// Resolve turns href into an absolute link relative to base. Non-web links resolve to "".
func Resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String()
}

func IsATSHost(host string) bool {
	_, ok := atsMatch(host)
	return ok
}

// ATSKind returns the source kind able to read a board hosted on host, or "" when the host is
// not a known applicant-tracking system or no dedicated kind exists for it.
func ATSKind(host string) string {
	kind, _ := atsMatch(host)
	return kind
}

func atsMatch(host string) (string, bool) {
	h := normalizeHost(host)
	if h == "" {
		return "", false
	}
	for _, ats := range atsHosts {
		if h == ats.host || strings.HasSuffix(h, "."+ats.host) {
			return ats.kind, true
		}
	}
	return "", false
}

// SameHost compares hosts ignoring case and a leading www.
func SameHost(base *url.URL, host string) bool {
	if base == nil || host == "" {
		return false
	}
	return normalizeHost(base.Hostname()) == normalizeHost(host)
}

// IsCrawlable rejects unparseable links and links to static assets.
func IsCrawlable(raw string) bool {
	normalized, host, err := Normalize(raw)
	if err != nil || host == "" {
		return false
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	return !isStaticAssetPath(u.Path)
}

// FirstSegment returns the first path segment of raw, e.g. the board token of an ATS URL.
func FirstSegment(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	return segs[0]
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return host
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	clean := path.Clean(p)
	if clean == "." {
		return "/"
	}
	if clean != "/" && strings.HasSuffix(clean, "/") {
		clean = strings.TrimSuffix(clean, "/")
	}
	return clean
}

func stripLocalePrefix(p string) string {
	segs := splitPath(p)
	if len(segs) < 2 {
		return p
	}
	if !isLocale(segs[0]) {
		return p
	}
	if isCareerRootSegment(segs[1]) || isJobListSegment(segs[1]) {
		return "/" + strings.Join(strings.Split(strings.Trim(p, "/"), "/")[1:], "/")
	}
	return p
}

func normalizeQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	for key := range values {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") || lk == "gclid" || lk == "fbclid" || lk == "ref" || lk == "source" {
			delete(values, key)
		}
	}
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	normalized := url.Values{}
	for _, k := range keys {
		normalized[k] = values[k]
	}
	return normalized.Encode()
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	for i := range parts {
		parts[i] = strings.ToLower(parts[i])
	}
	return parts
}

func isStaticAssetPath(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	_, ok := staticExtensions[ext]
	return ok
}

func isLocale(seg string) bool {
	if len(seg) == 2 {
		return isAlpha(seg)
	}
	if len(seg) == 5 && seg[2] == '-' {
		return isAlpha(seg[:2]) && isAlpha(seg[3:])
	}
	return false
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func isCareerRootSegment(seg string) bool {
	for _, root := range careerRoots {
		if seg == root {
			return true
		}
	}
	return false
}

func isJobListSegment(seg string) bool {
	for _, root := range jobListSegments {
		if seg == root {
			return true
		}
	}
	return false
}
