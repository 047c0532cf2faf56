package core

import (
	"errors"
	"fmt"
	"time"
)

type State string

const (
	StateIdle        State = "idle"
	StateDispatching State = "dispatching"
	StateCollecting  State = "collecting"
	StateReconciling State = "reconciling"
	StateStamped     State = "stamped"
	StateDelivered   State = "delivered"
	StateAborted     State = "aborted"
)

// Terminal reports whether a run in this state has finished.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateAborted
}

var ErrRunInProgress = errors.New("an aggregation run is already in progress")

// SinkError is returned when a stamped batch could not be persisted. Nothing from the batch
// was written.
type SinkError struct {
	ScrapeDate time.Time
	Records    int
	Err        error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("persist batch %s (%d records): %v", e.ScrapeDate.Format(time.RFC3339Nano), e.Records, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
