package engine

import "time"

// RetryPolicy is applied identically to every adapter: up to MaxAttempts calls, waiting
// BaseDelay, 2*BaseDelay, 4*BaseDelay... (capped at MaxDelay) between them.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	shift := attempt - 1
	if shift > 20 {
		shift = 20
	}
	d := p.BaseDelay * time.Duration(1<<shift)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
