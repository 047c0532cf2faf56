package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/baxromumarov/job-aggregator/internal/listing"
)

// Class separates cheap HTTP/API sources from expensive ones (headless browsers,
// multi-page crawls) so each can get its own worker budget.
type Class int

const (
	Light Class = iota
	Heavy
)

func (c Class) String() string {
	switch c {
	case Heavy:
		return "heavy"
	default:
		return "light"
	}
}

// ParseClass maps a config value to a Class. Empty means Light.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "light", "http":
		return Light, nil
	case "heavy", "browser":
		return Heavy, nil
	default:
		return Light, fmt.Errorf("unknown adapter class %q", s)
	}
}

// Adapter fetches vacancies from one external source.
type Adapter interface {
	// Name is stable across runs and only used for logging and attribution.
	Name() string

	Class() Class

	// Fetch returns whatever listings the source currently exposes. It must honour ctx.
	Fetch(ctx context.Context) ([]listing.Raw, error)
}

// Func adapts a plain function into an Adapter.
type Func struct {
	ID      string
	Cost    Class
	FetchFn func(ctx context.Context) ([]listing.Raw, error)
}

func (f Func) Name() string { return f.ID }
func (f Func) Class() Class { return f.Cost }

func (f Func) Fetch(ctx context.Context) ([]listing.Raw, error) {
	if f.FetchFn == nil {
		return nil, nil
	}
	return f.FetchFn(ctx)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying (bad configuration, 404, unparseable payload).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

var _ Adapter = Func{}
