// Package registry is the process-wide index of registered entities (the
// pool). It is the single source of truth for what exists: every component
// that needs an entity looks it up here. Construct one registry at process
// start and pass it by reference; there is no ambient global.
package registry

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/artpar/modbase/core/convention"
	"github.com/artpar/modbase/core/events"
)

// Kind is the namespace an entity is registered under. Entities backed by
// tables live under KindEntity; transient pools use the other kinds.
type Kind string

const (
	KindEntity Kind = "entity"
	KindReport Kind = "report"
	KindWizard Kind = "wizard"
)

// entry is one registered descriptor with its registration metadata.
type entry struct {
	module  string
	kind    Kind
	derived convention.Derived
	order   int
}

// Registry maps (module, kind, logical name) to entity descriptors.
// Writes happen only during the single-threaded load phase; afterwards the
// registry is a read-only lookup structure shared across workers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry // by logical name
	ordered []*entry          // registration order
	bus     *events.Bus
}

// New creates a new registry. The bus may be nil; then no events are emitted.
func New(bus *events.Bus) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		bus:     bus,
	}
}

// Register adds a descriptor under (module, kind, logical name).
// Registering an identical descriptor under the same key twice is a no-op.
// The owning module may re-register an evolved descriptor under the same key;
// the descriptor is replaced in place, which is how update picks up changed
// field sets without restarting the process. A different module or kind
// claiming the name fails with DuplicateEntityError.
// New registrations and replacements publish an EntityRegistered event.
func (r *Registry) Register(ctx context.Context, module string, kind Kind, derived convention.Derived) error {
	name := derived.Source.Name

	r.mu.Lock()
	existing, ok := r.entries[name]
	if ok {
		if existing.module != module || existing.kind != kind {
			r.mu.Unlock()
			return &DuplicateEntityError{Name: name, Module: module, Registered: existing.module}
		}
		if existing.derived.Source.Equal(derived.Source) {
			r.mu.Unlock()
			return nil
		}
		existing.derived = derived
		r.mu.Unlock()
	} else {
		e := &entry{module: module, kind: kind, derived: derived, order: len(r.ordered)}
		r.entries[name] = e
		r.ordered = append(r.ordered, e)
		r.mu.Unlock()
	}

	if r.bus != nil {
		r.bus.Publish(ctx, events.Event{
			Name:   events.EntityRegistered,
			Module: module,
			Entity: name,
		})
	}
	return nil
}

// Lookup returns the descriptor registered under a logical name.
func (r *Registry) Lookup(name string) (convention.Derived, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return convention.Derived{}, &UnknownEntityError{Name: name}
	}
	return e.derived, nil
}

// Has reports whether a logical name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// AllOf returns the descriptors registered under a kind, in registration
// order. The sequence is restartable: each range loop walks a snapshot from
// the beginning.
func (r *Registry) AllOf(kind Kind) iter.Seq[convention.Derived] {
	return func(yield func(convention.Derived) bool) {
		r.mu.RLock()
		snapshot := make([]*entry, len(r.ordered))
		copy(snapshot, r.ordered)
		r.mu.RUnlock()

		for _, e := range snapshot {
			if e.kind != kind {
				continue
			}
			if !yield(e.derived) {
				return
			}
		}
	}
}

// Of returns the descriptors a module registered, in registration order.
func (r *Registry) Of(module string) []convention.Derived {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []convention.Derived
	for _, e := range r.ordered {
		if e.module == module {
			out = append(out, e.derived)
		}
	}
	return out
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// DuplicateEntityError reports a logical name already claimed under a
// different registration key.
type DuplicateEntityError struct {
	Name       string
	Module     string
	Registered string
}

func (e *DuplicateEntityError) Error() string {
	if e.Module != e.Registered {
		return fmt.Sprintf("entity %q already registered by module %q", e.Name, e.Registered)
	}
	return fmt.Sprintf("entity %q already registered under another kind", e.Name)
}

// UnknownEntityError reports a lookup of an unregistered logical name.
type UnknownEntityError struct {
	Name string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity %q", e.Name)
}
