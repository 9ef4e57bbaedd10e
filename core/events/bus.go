// Package events provides a small publish/subscribe bus. The registry and
// loader publish load pipeline events; metrics and state persistence
// subscribe.
package events

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Event names published by the platform.
const (
	// EntityRegistered is published once per newly registered entity.
	// Idempotent re-registrations do not publish.
	EntityRegistered = "entity.registered"

	// SchemaSynchronized is published after a module's schema batch commits.
	// Data carries "tables_created" and "columns_added" counts.
	SchemaSynchronized = "schema.synchronized"

	// ModuleInitialized is published when a module reaches initialized.
	ModuleInitialized = "module.initialized"
)

// Event represents a published event.
type Event struct {
	// Name is the event name (e.g. "entity.registered").
	Name string

	// Module is the module that triggered the event.
	Module string

	// Entity is the logical name of the entity involved, if any.
	Entity string

	// Data carries the event payload.
	Data map[string]any
}

// Handler is a function that processes an event.
type Handler func(ctx context.Context, event Event) error

// Bus is a synchronous publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event name.
// Supports wildcard subscriptions:
//   - "entity.registered" - exact match
//   - "entity.*" - all entity events
//   - "*" - all events
func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Publish emits an event to all matching handlers, synchronously and in
// registration order. Handler errors are logged, not propagated; the bus
// never aborts a publish partway.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.logger.Debug().
		Str("event", event.Name).
		Str("module", event.Module).
		Str("entity", event.Entity).
		Msg("event emitted")

	var matched []Handler

	if handlers, ok := b.handlers[event.Name]; ok {
		matched = append(matched, handlers...)
	}

	// Prefix wildcard (e.g. "entity.*")
	if i := strings.IndexByte(event.Name, '.'); i > 0 {
		if handlers, ok := b.handlers[event.Name[:i]+".*"]; ok {
			matched = append(matched, handlers...)
		}
	}

	if handlers, ok := b.handlers["*"]; ok {
		matched = append(matched, handlers...)
	}

	for _, handler := range matched {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Msg("event handler error")
		}
	}
}

// HasSubscribers checks if any handlers are registered for an event.
func (b *Bus) HasSubscribers(event string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.handlers[event]) > 0 {
		return true
	}
	if i := strings.IndexByte(event, '.'); i > 0 {
		if len(b.handlers[event[:i]+".*"]) > 0 {
			return true
		}
	}
	return len(b.handlers["*"]) > 0
}
