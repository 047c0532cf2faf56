package normalize

import (
	"errors"
	"testing"

	"github.com/baxromumarov/job-aggregator/internal/listing"
	"github.com/baxromumarov/job-aggregator/internal/logging"
)

func TestRecordSelectsCanonicalFields(t *testing.T) {
	raw := listing.Raw{
		"company":    "Acme",
		"vacancy":    "Backend Engineer",
		"apply_link": "https://acme.example/jobs/1",
		"location":   "Remote",
		"salary":     "100k",
	}
	rec, filled := Record(raw)
	want := listing.Record{Company: "Acme", Vacancy: "Backend Engineer", ApplyLink: "https://acme.example/jobs/1"}
	if rec != want {
		t.Errorf("got %+v, want %+v", rec, want)
	}
	if filled != 0 {
		t.Errorf("expected no fills, got %d", filled)
	}
}

func TestRecordFillsMissingWithSentinel(t *testing.T) {
	rec, filled := Record(listing.Raw{"vacancy": "QA", "apply_link": "  "})
	if rec.Company != listing.Sentinel || rec.ApplyLink != listing.Sentinel {
		t.Errorf("expected sentinel fills, got %+v", rec)
	}
	if rec.Vacancy != "QA" {
		t.Errorf("vacancy lost: %+v", rec)
	}
	if filled != 2 {
		t.Errorf("expected 2 fills, got %d", filled)
	}
}

func TestRecordAppliesAliases(t *testing.T) {
	cases := []struct {
		name string
		raw  listing.Raw
		want listing.Record
	}{
		{
			name: "aliases only",
			raw:  listing.Raw{"employer": "Gov", "position": "Clerk", "url": "https://gov.example/1"},
			want: listing.Record{Company: "Gov", Vacancy: "Clerk", ApplyLink: "https://gov.example/1"},
		},
		{
			name: "canonical wins",
			raw:  listing.Raw{"company": "Real", "company_name": "Alias", "vacancy": "Dev", "title": "Other", "apply_link": "a", "link": "b"},
			want: listing.Record{Company: "Real", Vacancy: "Dev", ApplyLink: "a"},
		},
		{
			name: "blank canonical falls back",
			raw:  listing.Raw{"company": " ", "company_name": "Alias", "job_title": "SRE", "job_url": "c"},
			want: listing.Record{Company: "Alias", Vacancy: "SRE", ApplyLink: "c"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got, _ := Record(tc.raw); got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRecordCleansText(t *testing.T) {
	rec, _ := Record(listing.Raw{
		"company":    "  AT&amp;T\n",
		"vacancy":    "<b>Senior</b>   Go&nbsp;Engineer",
		"apply_link": "  https://x.example/jobs?a=1&amp;b=2 ",
	})
	if rec.Company != "AT&T" {
		t.Errorf("company = %q", rec.Company)
	}
	if rec.Vacancy != "Senior Go Engineer" {
		t.Errorf("vacancy = %q", rec.Vacancy)
	}
	if rec.ApplyLink != "https://x.example/jobs?a=1&amp;b=2" {
		t.Errorf("apply link should only be trimmed, got %q", rec.ApplyLink)
	}
}

func TestReconcileConcatenatesInOrder(t *testing.T) {
	outcomes := []listing.Outcome{
		{Adapter: "x", Listings: []listing.Raw{
			{"company": "X", "vacancy": "1", "apply_link": "x1"},
			{"company": "X", "vacancy": "2", "apply_link": "x2"},
		}},
		{Adapter: "broken", Err: errors.New("timeout"), Kind: "timeout"},
		{Adapter: "empty", Listings: []listing.Raw{}},
		{Adapter: "y", Listings: []listing.Raw{
			{"company": "X", "vacancy": "1", "apply_link": "x1"},
		}},
	}

	records, contributions := NewReconciler(logging.Nop()).Reconcile(outcomes)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Vacancy != "1" || records[1].Vacancy != "2" || records[2].ApplyLink != "x1" {
		t.Errorf("unexpected order: %+v", records)
	}
	// cross-adapter duplicates are kept
	if records[0] != records[2] {
		t.Errorf("expected duplicate records to survive: %+v", records)
	}

	if len(contributions) != 4 {
		t.Fatalf("expected 4 contributions, got %d", len(contributions))
	}
	if !contributions[1].Failed || contributions[1].Reason != "timeout" || contributions[1].Records != 0 {
		t.Errorf("failed contribution wrong: %+v", contributions[1])
	}
	if contributions[2].Failed || contributions[2].Records != 0 {
		t.Errorf("empty contribution wrong: %+v", contributions[2])
	}
}

func TestReconcileAllFailedGivesEmptySlice(t *testing.T) {
	records, _ := NewReconciler(nil).Reconcile([]listing.Outcome{{Adapter: "a", Err: errors.New("x")}})
	if records == nil || len(records) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", records)
	}
}

func TestCleanText(t *testing.T) {
	cases := map[string]string{
		"plain":                      "plain",
		"  two   words ":             "two words",
		"<p>One</p><p>Two</p>":       "One Two",
		"a<script>var x=1</script>b": "ab",
		"Caf&eacute; &lt;Lead&gt;":   "Café <Lead>",
		"":                           "",
	}
	for in, want := range cases {
		if got := CleanText(in); got != want {
			t.Errorf("CleanText(%q) = %q, want %q", in, got, want)
		}
	}
}
