package shutdown

import (
	"context"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/logging"
)

type Stoppable interface {
	Shutdown(ctx context.Context) error
}

// Watch stops every s once ctx is done. The returned channel is closed after the last
// Shutdown returns, so callers can wait for draining to finish before exiting.
func Watch(ctx context.Context, timeout time.Duration, log *logging.Logger, s ...Stoppable) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info("shutdown signal received")
		Stop(timeout, log, s...)
	}()
	return done
}

// Stop shuts every s down within timeout and logs the result.
func Stop(timeout time.Duration, log *logging.Logger, s ...Stoppable) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var failed bool
	for _, st := range s {
		if err := st.Shutdown(ctx); err != nil {
			failed = true
			log.Warn("graceful shutdown completed with error", "err", err)
		}
	}
	if !failed {
		log.Info("graceful shutdown completed successfully")
	}
}

// Func adapts a plain function to Stoppable.
type Func func(ctx context.Context) error

func (f Func) Shutdown(ctx context.Context) error {
	return f(ctx)
}
