package core

import (
	"time"

	"github.com/baxromumarov/job-aggregator/internal/listing"
)

// Stamper assigns the single scrape date shared by every record of a run.
type Stamper struct {
	now func() time.Time
}

// NewStamper uses clock for the scrape date, or time.Now when clock is nil.
func NewStamper(clock func() time.Time) *Stamper {
	if clock == nil {
		clock = time.Now
	}
	return &Stamper{now: clock}
}

// Stamp builds the run's batch. Postgres keeps microseconds, so the date is truncated to
// them and what is read back equals what was written.
func (s *Stamper) Stamp(records []listing.Record) *listing.Batch {
	return listing.NewBatch(s.now().UTC().Truncate(time.Microsecond), records)
}
