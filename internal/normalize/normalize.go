// Package normalize maps each adapter's raw listings onto the closed listing.Record schema.
package normalize

import (
	"strings"

	"github.com/baxromumarov/job-aggregator/internal/listing"
	"github.com/baxromumarov/job-aggregator/internal/logging"
)

// aliases are tried, in order, when an adapter did not use the canonical key.
var aliases = map[string][]string{
	listing.FieldCompany:   {"employer", "company_name"},
	listing.FieldVacancy:   {"title", "position", "job_title"},
	listing.FieldApplyLink: {"url", "link", "job_url"},
}

// Contribution summarises what one adapter added to a batch.
type Contribution struct {
	Adapter string `json:"adapter"`
	Records int    `json:"records"`
	// Filled counts required fields replaced with listing.Sentinel.
	Filled  int    `json:"filled"`
	Failed  bool   `json:"failed"`
	Reason  string `json:"reason,omitempty"`
}

type Reconciler struct {
	log *logging.Logger
}

func NewReconciler(log *logging.Logger) *Reconciler {
	if log == nil {
		log = logging.Nop()
	}
	return &Reconciler{log: log}
}

// Reconcile concatenates the records of every successful outcome, in outcome order.
// Failed and empty outcomes contribute nothing and are only logged.
func (r *Reconciler) Reconcile(outcomes []listing.Outcome) ([]listing.Record, []Contribution) {
	var records []listing.Record
	contributions := make([]Contribution, 0, len(outcomes))

	for _, o := range outcomes {
		c := Contribution{Adapter: o.Adapter}
		switch {
		case !o.OK():
			c.Failed = true
			c.Reason = o.Reason()
			r.log.Info("skipping failed adapter", "adapter", o.Adapter, "kind", o.Kind, "reason", c.Reason)
		case len(o.Listings) == 0:
			r.log.Info("adapter returned no listings", "adapter", o.Adapter)
		default:
			for _, raw := range o.Listings {
				rec, filled := Record(raw)
				records = append(records, rec)
				c.Filled += filled
			}
			c.Records = len(o.Listings)
			if c.Filled > 0 {
				r.log.Debug("filled missing fields", "adapter", o.Adapter, "fields", c.Filled)
			}
		}
		contributions = append(contributions, c)
	}

	if records == nil {
		records = []listing.Record{}
	}
	return records, contributions
}

// Record converts one raw listing. It never drops a listing: a required field that is
// missing or blank becomes listing.Sentinel. The second result counts such fills.
func Record(raw listing.Raw) (listing.Record, int) {
	filled := 0
	pick := func(field string, clean func(string) string) string {
		v := clean(lookup(raw, field))
		if v == "" {
			filled++
			return listing.Sentinel
		}
		return v
	}

	return listing.Record{
		Company:   pick(listing.FieldCompany, CleanText),
		Vacancy:   pick(listing.FieldVacancy, CleanText),
		ApplyLink: pick(listing.FieldApplyLink, strings.TrimSpace),
	}, filled
}

func lookup(raw listing.Raw, field string) string {
	if v, ok := raw.Get(field); ok && strings.TrimSpace(v) != "" {
		return v
	}
	for _, alias := range aliases[field] {
		if v, ok := raw.Get(alias); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
