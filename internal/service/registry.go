package service

import (
	"errors"
	"fmt"
	"iter"
)

// ErrDuplicateName is returned by Register when a service with the same
// name already exists.
var ErrDuplicateName = errors.New("duplicate service name")

// Registry owns all service records. Insertion order is preserved and is
// the startup order. The registry is not safe for concurrent use; the
// supervisor loop is its sole writer.
type Registry struct {
	order  []*Record
	byName map[string]*Record
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Record)}
}

// Register appends a new record for spec in the stopped state.
func (g *Registry) Register(spec Spec) (*Record, error) {
	if spec.Name == "" {
		return nil, errors.New("empty service name")
	}
	if _, ok := g.byName[spec.Name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, spec.Name)
	}
	rec := &Record{Spec: spec, State: StateStopped}
	g.order = append(g.order, rec)
	g.byName[spec.Name] = rec
	return rec, nil
}

// FindByName returns the record for name, or nil when unknown.
func (g *Registry) FindByName(name string) *Record {
	return g.byName[name]
}

// FindByPID returns the record whose running instance has the given pid,
// or nil. Exits of reparented orphans have no matching record.
func (g *Registry) FindByPID(pid int) *Record {
	if pid <= 0 {
		return nil
	}
	for _, rec := range g.order {
		if rec.PID == pid {
			return rec
		}
	}
	return nil
}

// All iterates records in registration order.
func (g *Registry) All() iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		for _, rec := range g.order {
			if !yield(rec) {
				return
			}
		}
	}
}

// Len returns the number of registered services.
func (g *Registry) Len() int { return len(g.order) }
