package listing

import (
	"encoding/json"
	"time"
)

// Canonical field names. The record schema is closed: nothing else survives normalization.
const (
	FieldCompany    = "company"
	FieldVacancy    = "vacancy"
	FieldApplyLink  = "apply_link"
	FieldScrapeDate = "scrape_date"
)

// Sentinel replaces a required field an adapter did not supply.
const Sentinel = "N/A"

// Raw is one vacancy as an adapter saw it. Keys vary per source.
type Raw map[string]string

// Get returns the value stored under key and whether the key was present.
func (r Raw) Get(key string) (string, bool) {
	v, ok := r[key]
	return v, ok
}

// Record is the canonical vacancy shape shared by every source.
type Record struct {
	Company   string `json:"company"`
	Vacancy   string `json:"vacancy"`
	ApplyLink string `json:"apply_link"`
}

// Stamped is a Record as it is persisted: with the run's scrape date.
type Stamped struct {
	Record
	ScrapeDate time.Time `json:"scrape_date"`
}

// Batch is the output of one aggregation run. It cannot be modified once created.
type Batch struct {
	scrapeDate time.Time
	records    []Record
}

// NewBatch copies records so later changes by the caller cannot leak into the batch.
func NewBatch(scrapeDate time.Time, records []Record) *Batch {
	cp := make([]Record, len(records))
	copy(cp, records)
	return &Batch{scrapeDate: scrapeDate, records: cp}
}

func (b *Batch) ScrapeDate() time.Time {
	return b.scrapeDate
}

func (b *Batch) Len() int {
	return len(b.records)
}

// Records returns a copy of the batch records.
func (b *Batch) Records() []Record {
	cp := make([]Record, len(b.records))
	copy(cp, b.records)
	return cp
}

// Rows returns every record paired with the batch scrape date.
func (b *Batch) Rows() []Stamped {
	rows := make([]Stamped, len(b.records))
	for i, r := range b.records {
		rows[i] = Stamped{Record: r, ScrapeDate: b.scrapeDate}
	}
	return rows
}

func (b *Batch) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ScrapeDate time.Time `json:"scrape_date"`
		Count      int       `json:"count"`
		Records    []Record  `json:"records"`
	}{
		ScrapeDate: b.scrapeDate,
		Count:      len(b.records),
		Records:    b.Records(),
	})
}

// Outcome is the tagged result of one adapter invocation within a run.
// Err == nil means success; Listings may still be empty.
type Outcome struct {
	Adapter  string
	Class    string
	Listings []Raw
	Err      error
	Kind     string // failure kind, empty on success
	Attempts int
	Duration time.Duration
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// Reason is the failure message, or "" on success.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
