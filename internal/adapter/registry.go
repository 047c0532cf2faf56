package adapter

import (
	"errors"
	"fmt"
	"strings"
)

// Registry is the ordered set of adapters polled in a run.
type Registry struct {
	adapters []Adapter
	names    map[string]struct{}
}

func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{names: make(map[string]struct{}, len(adapters))}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends a, rejecting nil adapters, blank names and duplicates.
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return errors.New("registry: nil adapter")
	}
	name := strings.TrimSpace(a.Name())
	if name == "" {
		return errors.New("registry: adapter name is required")
	}
	if _, ok := r.names[name]; ok {
		return fmt.Errorf("registry: duplicate adapter %q", name)
	}
	r.names[name] = struct{}{}
	r.adapters = append(r.adapters, a)
	return nil
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.adapters)
}

// Adapters returns the registered adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	if r == nil {
		return nil
	}
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// CountByClass reports how many adapters fall in each cost class.
func (r *Registry) CountByClass() map[Class]int {
	counts := map[Class]int{}
	for _, a := range r.Adapters() {
		counts[a.Class()]++
	}
	return counts
}
