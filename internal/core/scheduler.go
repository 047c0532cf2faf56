package core

import (
	"context"
	"errors"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/listing"
	"github.com/baxromumarov/job-aggregator/internal/logging"
)

type BatchRunner interface {
	RunBatch(ctx context.Context) (*listing.Batch, error)
}

// Scheduler runs a batch immediately and then once per interval until ctx is done.
type Scheduler struct {
	runner   BatchRunner
	interval time.Duration
	log      *logging.Logger
}

func NewScheduler(runner BatchRunner, interval time.Duration, log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Nop()
	}
	return &Scheduler{runner: runner, interval: interval, log: log}
}

func (s *Scheduler) Start(ctx context.Context) {
	go s.Run(ctx)
}

// Run blocks until ctx is done. A non-positive interval runs a single batch.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	batch, err := s.runner.RunBatch(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.log.Info("scheduler: previous run still in progress, skipping tick")
	case err != nil:
		s.log.Error("scheduler: run failed", "error", err.Error())
	default:
		s.log.Info("scheduler: run delivered", "records", batch.Len(), "scrape_date", batch.ScrapeDate())
	}
}
