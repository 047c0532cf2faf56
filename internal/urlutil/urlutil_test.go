package urlutil

import (
	"net/url"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"https://WWW.Example.com/careers/":                  "https://example.com/careers",
		"https://example.com/jobs?utm_source=x&b=2&a=1#top": "https://example.com/jobs?a=1&b=2",
		"https://example.com/en/careers/Backend-Eng":        "https://example.com/careers/Backend-Eng",
		"https://example.com/en/about":                      "https://example.com/en/about",
	}
	for in, want := range cases {
		got, _, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolve(t *testing.T) {
	base, _ := url.Parse("https://acme.example/careers/")
	cases := map[string]string{
		"/jobs/1":                 "https://acme.example/jobs/1",
		"engineer":                "https://acme.example/careers/engineer",
		"https://other.example/x": "https://other.example/x",
		"mailto:hr@acme.example":  "",
		"":                        "",
	}
	for in, want := range cases {
		if got := Resolve(base, in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestATSKind(t *testing.T) {
	cases := map[string]string{
		"boards.greenhouse.io":     "greenhouse",
		"job-boards.greenhouse.io": "greenhouse",
		"jobs.lever.co":            "lever",
		"jobs.ashbyhq.com":         "ashby",
		"acme.myworkdayjobs.com":   "",
		"example.com":              "",
		"notgreenhouse.io":         "",
	}
	for host, want := range cases {
		if got := ATSKind(host); got != want {
			t.Errorf("ATSKind(%q) = %q, want %q", host, got, want)
		}
	}
	if !IsATSHost("acme.myworkdayjobs.com") || IsATSHost("notgreenhouse.io") {
		t.Error("IsATSHost mismatch")
	}
}

func TestIsCrawlable(t *testing.T) {
	if IsCrawlable("https://acme.example/logo.png") {
		t.Error("static assets are not crawlable")
	}
	if !IsCrawlable("https://acme.example/jobs/1") {
		t.Error("job page should be crawlable")
	}
}

func TestFirstSegment(t *testing.T) {
	if got := FirstSegment("https://boards.greenhouse.io/acme/jobs/1"); got != "acme" {
		t.Errorf("FirstSegment = %q", got)
	}
	if got := FirstSegment("https://jobs.lever.co/"); got != "" {
		t.Errorf("FirstSegment on root = %q", got)
	}
}
