package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

type StatsSnapshot struct {
	RunsStarted       uint64            `json:"runs_started"`
	RunsDelivered     uint64            `json:"runs_delivered"`
	RunsAborted       uint64            `json:"runs_aborted"`
	AdaptersSucceeded uint64            `json:"adapters_succeeded"`
	AdaptersFailed    uint64            `json:"adapters_failed"`
	AdaptersEmpty     uint64            `json:"adapters_empty"`
	RecordsPersisted  uint64            `json:"records_persisted"`
	Retries           uint64            `json:"retries"`
	AdapterSecondsAvg float64           `json:"adapter_seconds_avg"`
	LastRunAt         *time.Time        `json:"last_run_at,omitempty"`
	ErrorsByType      map[string]uint64 `json:"errors_by_type,omitempty"`
	FailuresByAdapter map[string]uint64 `json:"failures_by_adapter,omitempty"`
}

var (
	runsStarted       uint64
	runsDelivered     uint64
	runsAborted       uint64
	adaptersSucceeded uint64
	adaptersFailed    uint64
	adaptersEmpty     uint64
	recordsPersisted  uint64
	retries           uint64

	adapterCount uint64
	adapterNanos uint64

	statsMu           sync.Mutex
	lastRunAt         time.Time
	errorsByType      = map[string]uint64{}
	failuresByAdapter = map[string]uint64{}
)

func IncRunStarted() {
	atomic.AddUint64(&runsStarted, 1)
	statsMu.Lock()
	lastRunAt = time.Now().UTC()
	statsMu.Unlock()
}

func IncRunDelivered(records int) {
	atomic.AddUint64(&runsDelivered, 1)
	if records > 0 {
		atomic.AddUint64(&recordsPersisted, uint64(records))
	}
}

func IncRunAborted() {
	atomic.AddUint64(&runsAborted, 1)
}

func IncRetry(_ string) {
	atomic.AddUint64(&retries, 1)
}

// ObserveAdapter records one finished adapter invocation. kind is empty on success.
func ObserveAdapter(name, kind string, listings int, d time.Duration) {
	if d > 0 {
		atomic.AddUint64(&adapterCount, 1)
		atomic.AddUint64(&adapterNanos, uint64(d))
	}
	if kind == "" {
		atomic.AddUint64(&adaptersSucceeded, 1)
		if listings == 0 {
			atomic.AddUint64(&adaptersEmpty, 1)
		}
		return
	}
	atomic.AddUint64(&adaptersFailed, 1)
	IncError(kind, name)
}

func IncError(errType, adapter string) {
	if errType == "" {
		errType = ErrorUnknown
	}
	if adapter == "" {
		adapter = "unknown"
	}
	statsMu.Lock()
	errorsByType[errType]++
	failuresByAdapter[adapter]++
	statsMu.Unlock()
}

func Snapshot() StatsSnapshot {
	statsMu.Lock()
	typeCopy := copyMap(errorsByType)
	adapterCopy := copyMap(failuresByAdapter)
	var last *time.Time
	if !lastRunAt.IsZero() {
		t := lastRunAt
		last = &t
	}
	statsMu.Unlock()

	count := atomic.LoadUint64(&adapterCount)
	avg := 0.0
	if count > 0 {
		avg = float64(atomic.LoadUint64(&adapterNanos)) / float64(count) / 1e9
	}

	return StatsSnapshot{
		RunsStarted:       atomic.LoadUint64(&runsStarted),
		RunsDelivered:     atomic.LoadUint64(&runsDelivered),
		RunsAborted:       atomic.LoadUint64(&runsAborted),
		AdaptersSucceeded: atomic.LoadUint64(&adaptersSucceeded),
		AdaptersFailed:    atomic.LoadUint64(&adaptersFailed),
		AdaptersEmpty:     atomic.LoadUint64(&adaptersEmpty),
		RecordsPersisted:  atomic.LoadUint64(&recordsPersisted),
		Retries:           atomic.LoadUint64(&retries),
		AdapterSecondsAvg: avg,
		LastRunAt:         last,
		ErrorsByType:      typeCopy,
		FailuresByAdapter: adapterCopy,
	}
}

// Reset zeroes every counter. Tests use it to isolate assertions.
func Reset() {
	for _, p := range []*uint64{&runsStarted, &runsDelivered, &runsAborted, &adaptersSucceeded,
		&adaptersFailed, &adaptersEmpty, &recordsPersisted, &retries, &adapterCount, &adapterNanos} {
		atomic.StoreUint64(p, 0)
	}
	statsMu.Lock()
	lastRunAt = time.Time{}
	errorsByType = map[string]uint64{}
	failuresByAdapter = map[string]uint64{}
	statsMu.Unlock()
}

func copyMap(src map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
