// Package engine runs every registered adapter concurrently and turns each invocation into
// a listing.Outcome. Cheap and expensive adapters drain through separate bounded pools, each
// adapter gets one wall-clock budget covering all of its attempts, and nothing an adapter
// does (error, panic, hang) can stop the others from finishing.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/baxromumarov/job-aggregator/internal/adapter"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/listing"
	"github.com/baxromumarov/job-aggregator/internal/logging"
	"github.com/baxromumarov/job-aggregator/internal/observability"
)

var (
	ErrEmptyRegistry = errors.New("engine: adapter registry is empty")
	ErrInvalidPool   = errors.New("engine: invalid worker pool configuration")
)

// TimeoutError is recorded when an adapter produced nothing usable within its budget.
type TimeoutError struct {
	Budget time.Duration
	Last   error
}

func (e *TimeoutError) Error() string {
	if e.Last != nil && !errors.Is(e.Last, context.DeadlineExceeded) {
		return fmt.Sprintf("no result within %s (last error: %v)", e.Budget, e.Last)
	}
	return fmt.Sprintf("no result within %s", e.Budget)
}

func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// PanicError carries a recovered adapter panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("adapter panicked: %v", e.Value)
}

type Config struct {
	LightWorkers int
	HeavyWorkers int
	// Timeout is the per-adapter budget, shared by all attempts and backoff waits.
	Timeout time.Duration
	Retry   RetryPolicy
}

type Engine struct {
	cfg Config
	log *logging.Logger
}

func New(cfg Config, log *logging.Logger) (*Engine, error) {
	if cfg.LightWorkers < 1 || cfg.HeavyWorkers < 1 {
		return nil, fmt.Errorf("%w: pool sizes must be positive (light=%d heavy=%d)", ErrInvalidPool, cfg.LightWorkers, cfg.HeavyWorkers)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: adapter timeout must be positive", ErrInvalidPool)
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{cfg: cfg, log: log}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Run invokes every adapter in reg and returns one outcome per adapter, in registry order.
// It only returns an error when nothing could be dispatched.
func (e *Engine) Run(ctx context.Context, reg *adapter.Registry) ([]listing.Outcome, error) {
	adapters := reg.Adapters()
	if len(adapters) == 0 {
		return nil, ErrEmptyRegistry
	}

	var lightIdx, heavyIdx []int
	for i, a := range adapters {
		if a.Class() == adapter.Heavy {
			heavyIdx = append(heavyIdx, i)
		} else {
			lightIdx = append(lightIdx, i)
		}
	}

	e.log.Info("dispatching adapters",
		"total", len(adapters),
		"light", len(lightIdx),
		"heavy", len(heavyIdx),
		"light_workers", e.cfg.LightWorkers,
		"heavy_workers", e.cfg.HeavyWorkers,
		"timeout", e.cfg.Timeout.String(),
	)

	// Each slot is written by exactly one goroutine.
	outcomes := make([]listing.Outcome, len(adapters))

	var light, heavy errgroup.Group
	light.SetLimit(e.cfg.LightWorkers)
	heavy.SetLimit(e.cfg.HeavyWorkers)

	dispatch := func(g *errgroup.Group, idxs []int) {
		for _, i := range idxs {
			g.Go(func() error {
				outcomes[i] = e.invoke(ctx, adapters[i])
				return nil
			})
		}
	}

	// Go blocks while a pool is full, so each class gets its own dispatcher.
	heavyDispatched := make(chan struct{})
	go func() {
		defer close(heavyDispatched)
		dispatch(&heavy, heavyIdx)
	}()
	dispatch(&light, lightIdx)
	<-heavyDispatched

	_ = light.Wait()
	_ = heavy.Wait()

	return outcomes, nil
}

func (e *Engine) invoke(parent context.Context, a adapter.Adapter) listing.Outcome {
	start := time.Now()
	out := listing.Outcome{Adapter: a.Name(), Class: a.Class().String()}
	log := e.log.With("adapter", out.Adapter, "class", out.Class)

	ctx, cancel := context.WithTimeout(parent, e.cfg.Timeout)
	defer cancel()

	var (
		raws []listing.Raw
		err  error
	)
	for attempt := 1; ; attempt++ {
		out.Attempts = attempt
		raws, err = e.attempt(ctx, a)
		if err == nil || attempt >= e.cfg.Retry.MaxAttempts || !retryable(ctx, err) {
			break
		}

		delay := e.cfg.Retry.Backoff(attempt)
		observability.IncRetry(out.Adapter)
		log.Debug("adapter attempt failed, retrying", "attempt", attempt, "delay", delay.String(), "error", err)
		if werr := sleepWithContext(ctx, delay); werr != nil {
			break
		}
	}

	if err != nil && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = &TimeoutError{Budget: e.cfg.Timeout, Last: err}
	}

	out.Duration = time.Since(start)
	if err != nil {
		out.Err = err
		out.Kind = failureKind(err)
		observability.ObserveAdapter(out.Adapter, out.Kind, 0, out.Duration)
		log.Warn("adapter failed",
			"kind", out.Kind,
			"attempts", out.Attempts,
			"duration", out.Duration.String(),
			"error", err.Error(),
		)
		var pe *PanicError
		if errors.As(err, &pe) {
			log.Debug("adapter panic stack", "stack", string(pe.Stack))
		}
		return out
	}

	if raws == nil {
		raws = []listing.Raw{}
	}
	out.Listings = raws
	observability.ObserveAdapter(out.Adapter, "", len(raws), out.Duration)
	log.Debug("adapter finished", "listings", len(raws), "attempts", out.Attempts, "duration", out.Duration.String())
	return out
}

// attempt runs one Fetch. If ctx ends first the call is abandoned: the goroutine may keep
// running until the adapter notices cancellation, but nobody waits for it.
func (e *Engine) attempt(ctx context.Context, a adapter.Adapter) ([]listing.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		raws []listing.Raw
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: &PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()
		raws, err := a.Fetch(ctx)
		ch <- result{raws: raws, err: err}
	}()

	select {
	case res := <-ch:
		return res.raws, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if adapter.IsPermanent(err) {
		return false
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		return false
	}
	var fe *httpx.FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return true
}

func failureKind(err error) string {
	var pe *PanicError
	if errors.As(err, &pe) {
		return observability.ErrorPanic
	}
	return observability.ClassifyError(err)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
