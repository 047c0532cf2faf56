package listing

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestBatchIsImmutable(t *testing.T) {
	records := []Record{{Company: "Acme", Vacancy: "Eng", ApplyLink: "http://a"}}
	stamp := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	b := NewBatch(stamp, records)

	records[0].Company = "Mutated"
	got := b.Records()
	got[0].Vacancy = "Mutated"

	again := b.Records()
	if again[0].Company != "Acme" || again[0].Vacancy != "Eng" {
		t.Errorf("batch changed after creation: %+v", again[0])
	}
}

func TestBatchRowsShareScrapeDate(t *testing.T) {
	stamp := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	b := NewBatch(stamp, []Record{{Company: "A"}, {Company: "B"}, {Company: "C"}})

	rows := b.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if !r.ScrapeDate.Equal(stamp) {
			t.Errorf("row %q has scrape_date %v, want %v", r.Company, r.ScrapeDate, stamp)
		}
	}
}

func TestStampedJSONFieldSet(t *testing.T) {
	row := Stamped{Record: Record{Company: "A", Vacancy: "B", ApplyLink: "C"}, ScrapeDate: time.Unix(0, 0).UTC()}
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{FieldCompany, FieldVacancy, FieldApplyLink, FieldScrapeDate}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %v", len(want), fields)
	}
	for _, k := range want {
		if _, ok := fields[k]; !ok {
			t.Errorf("missing field %q in %s", k, data)
		}
	}
}

func TestEmptyBatchIsValid(t *testing.T) {
	b := NewBatch(time.Now(), nil)
	if b.Len() != 0 || b.Records() == nil {
		t.Errorf("empty batch should have zero non-nil records, got %v", b.Records())
	}
	if _, err := json.Marshal(b); err != nil {
		t.Errorf("marshal empty batch: %v", err)
	}
}

func TestOutcomeReason(t *testing.T) {
	ok := Outcome{Adapter: "a"}
	if !ok.OK() || ok.Reason() != "" {
		t.Errorf("success outcome misreported: %+v", ok)
	}
	failed := Outcome{Adapter: "b", Err: errors.New("boom")}
	if failed.OK() || failed.Reason() != "boom" {
		t.Errorf("failure outcome misreported: %+v", failed)
	}
}
