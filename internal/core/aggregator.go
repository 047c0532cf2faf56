package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/baxromumarov/job-aggregator/internal/adapter"
	"github.com/baxromumarov/job-aggregator/internal/engine"
	"github.com/baxromumarov/job-aggregator/internal/listing"
	"github.com/baxromumarov/job-aggregator/internal/logging"
	"github.com/baxromumarov/job-aggregator/internal/normalize"
	"github.com/baxromumarov/job-aggregator/internal/observability"
)

// Sink persists stamped batches. Implementations must be append-only and write a batch
// entirely or not at all. An empty batch is a successful no-op.
type Sink interface {
	Append(ctx context.Context, batch *listing.Batch) error
}

// AdapterSummary is one adapter's line in a RunReport.
type AdapterSummary struct {
	Adapter    string `json:"adapter"`
	Class      string `json:"class"`
	OK         bool   `json:"ok"`
	Kind       string `json:"kind,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Attempts   int    `json:"attempts"`
	DurationMS int64  `json:"duration_ms"`
	Records    int    `json:"records"`
	Filled     int    `json:"filled"`
}

// RunReport describes one run for operators. It is kept in memory only.
type RunReport struct {
	ID         string           `json:"id"`
	State      State            `json:"state"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	ScrapeDate *time.Time       `json:"scrape_date,omitempty"`
	Records    int              `json:"records"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Adapters   []AdapterSummary `json:"adapters"`
	Error      string           `json:"error,omitempty"`
}

type Aggregator struct {
	engine     *engine.Engine
	registry   *adapter.Registry
	reconciler *normalize.Reconciler
	stamper    *Stamper
	sink       Sink
	log        *logging.Logger

	running atomic.Bool

	mu    sync.RWMutex
	state State
	last  *RunReport
}

func NewAggregator(eng *engine.Engine, reg *adapter.Registry, sink Sink, stamper *Stamper, log *logging.Logger) *Aggregator {
	if log == nil {
		log = logging.Nop()
	}
	if stamper == nil {
		stamper = NewStamper(nil)
	}
	return &Aggregator{
		engine:     eng,
		registry:   reg,
		reconciler: normalize.NewReconciler(log),
		stamper:    stamper,
		sink:       sink,
		log:        log,
		state:      StateIdle,
	}
}

// RunBatch performs one complete run: every adapter is invoked, the successful listings are
// reconciled into one stamped batch and the batch is handed to the sink. Adapter failures only
// shrink the batch. An error means the run was aborted: the engine could not start
// (engine.ErrEmptyRegistry, engine.ErrInvalidPool), the sink failed (*SinkError), or another
// run holds the aggregator (ErrRunInProgress).
func (a *Aggregator) RunBatch(ctx context.Context) (*listing.Batch, error) {
	if !a.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer a.running.Store(false)
	return a.run(ctx, uuid.NewString())
}

// Trigger starts a run in the background and returns its id. ctx bounds the run itself, so
// callers should not pass a request-scoped context.
func (a *Aggregator) Trigger(ctx context.Context) (string, error) {
	if !a.running.CompareAndSwap(false, true) {
		return "", ErrRunInProgress
	}
	id := uuid.NewString()
	go func() {
		defer a.running.Store(false)
		_, _ = a.run(ctx, id)
	}()
	return id, nil
}

func (a *Aggregator) Running() bool {
	return a.running.Load()
}

// State is the state of the current run, or the final state of the previous one.
func (a *Aggregator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// LastReport returns a copy of the most recent run's report.
func (a *Aggregator) LastReport() (RunReport, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return RunReport{}, false
	}
	r := *a.last
	r.Adapters = append([]AdapterSummary(nil), a.last.Adapters...)
	return r, true
}

func (a *Aggregator) run(ctx context.Context, id string) (*listing.Batch, error) {
	log := a.log.With("run_id", id)
	report := &RunReport{ID: id, StartedAt: time.Now().UTC()}
	observability.IncRunStarted()

	a.transition(log, report, StateDispatching)
	outcomes, err := a.engine.Run(ctx, a.registry)
	if err != nil {
		a.abort(log, report, err)
		return nil, err
	}

	a.transition(log, report, StateCollecting)
	for _, o := range outcomes {
		if o.OK() {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	a.transition(log, report, StateReconciling)
	records, contributions := a.reconciler.Reconcile(outcomes)
	report.Adapters = summarize(outcomes, contributions)

	batch := a.stamper.Stamp(records)
	scrapeDate := batch.ScrapeDate()
	report.ScrapeDate = &scrapeDate
	report.Records = batch.Len()
	a.transition(log, report, StateStamped, "scrape_date", scrapeDate, "records", batch.Len())

	if err := a.sink.Append(ctx, batch); err != nil {
		serr := &SinkError{ScrapeDate: scrapeDate, Records: batch.Len(), Err: err}
		observability.IncError(observability.ErrorStore, "sink")
		a.abort(log, report, serr)
		return nil, serr
	}

	a.transition(log, report, StateDelivered,
		"records", batch.Len(),
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)
	observability.IncRunDelivered(batch.Len())
	a.finish(report)
	return batch, nil
}

func (a *Aggregator) transition(log *logging.Logger, report *RunReport, to State, kv ...any) {
	a.mu.Lock()
	from := a.state
	a.state = to
	report.State = to
	a.mu.Unlock()

	log.Info("run state changed", append([]any{"from", string(from), "to", string(to)}, kv...)...)
}

func (a *Aggregator) abort(log *logging.Logger, report *RunReport, err error) {
	report.Error = err.Error()
	a.mu.Lock()
	a.state = StateAborted
	report.State = StateAborted
	a.mu.Unlock()

	observability.IncRunAborted()
	log.Error("run aborted", "error", err.Error())
	a.finish(report)
}

func (a *Aggregator) finish(report *RunReport) {
	now := time.Now().UTC()
	report.FinishedAt = &now
	a.mu.Lock()
	a.last = report
	a.mu.Unlock()
}

func summarize(outcomes []listing.Outcome, contributions []normalize.Contribution) []AdapterSummary {
	out := make([]AdapterSummary, len(outcomes))
	for i, o := range outcomes {
		s := AdapterSummary{
			Adapter:    o.Adapter,
			Class:      o.Class,
			OK:         o.OK(),
			Kind:       o.Kind,
			Reason:     o.Reason(),
			Attempts:   o.Attempts,
			DurationMS: o.Duration.Milliseconds(),
		}
		if i < len(contributions) {
			s.Records = contributions[i].Records
			s.Filled = contributions[i].Filled
		}
		out[i] = s
	}
	return out
}
