// Package loader resolves module dependencies and drives the load sequence:
// register entities, synchronize storage, process metadata files. Loading is
// single-threaded and runs once per process; a module either reaches
// initialized or its failure is reported with its name attached.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/artpar/modbase/core/convention"
	"github.com/artpar/modbase/core/events"
	"github.com/artpar/modbase/core/registry"
	"github.com/artpar/modbase/core/schema"
	"github.com/artpar/modbase/core/storage"
	"github.com/artpar/modbase/core/ui"
	"github.com/rs/zerolog"
)

// Mode selects install or update semantics.
type Mode int

const (
	// ModeInstall loads modules that are not yet initialized.
	ModeInstall Mode = iota

	// ModeUpdate re-runs synchronization and metadata processing for
	// modules that are already initialized. Both passes are idempotent.
	ModeUpdate
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeUpdate {
		return "update"
	}
	return "install"
}

// RegisterFunc is a module's registration hook. It is invoked in dependency
// order and registers the module's entities with the pool.
type RegisterFunc func(ctx context.Context, env Env) error

// Env is what a registration hook gets to work with.
type Env struct {
	Module   string
	Registry *registry.Registry
	Catalog  *schema.Catalog
}

// Module is a declared module: its descriptor, the directory its file
// references resolve against, and its registration hook.
type Module struct {
	Desc schema.Module

	// Dir is the base directory for the descriptor's file lists. Empty for
	// code-embedded modules.
	Dir string

	// Register is the registration hook. When nil, a file-driven hook is
	// derived from the descriptor's entity file list.
	Register RegisterFunc

	state schema.ModuleState
	order int
}

// Name returns the module name.
func (m *Module) Name() string { return m.Desc.Name }

// State returns the module's lifecycle state.
func (m *Module) State() schema.ModuleState { return m.state }

// Restore sets the lifecycle state from persisted records, so a module
// installed by an earlier process keeps its install/update semantics.
func (m *Module) Restore(state schema.ModuleState) { m.state = state }

// Loader owns module lifecycle state and runs the load sequence.
type Loader struct {
	registry *registry.Registry
	catalog  *schema.Catalog
	store    storage.Store
	ui       *ui.Registry
	bus      *events.Bus
	logger   zerolog.Logger

	modules map[string]*Module
	decl    []*Module
}

// New creates a loader. The bus carries the load pipeline events
// (entity.registered, schema.synchronized, module.initialized) to whoever
// subscribes; the loader itself only publishes.
func New(reg *registry.Registry, catalog *schema.Catalog, store storage.Store, uiReg *ui.Registry, bus *events.Bus, logger zerolog.Logger) *Loader {
	return &Loader{
		registry: reg,
		catalog:  catalog,
		store:    store,
		ui:       uiReg,
		bus:      bus,
		logger:   logger,
		modules:  make(map[string]*Module),
	}
}

// Declare adds a module to the declared set. Declaration order is the
// tie-break for topological ordering.
func (l *Loader) Declare(m *Module) error {
	name := m.Desc.Name
	if name == "" {
		return errors.New("module name is required")
	}
	if _, exists := l.modules[name]; exists {
		return fmt.Errorf("module %q already declared", name)
	}

	if m.Register == nil {
		m.Register = fileRegister(m)
	}

	m.order = len(l.decl)
	l.modules[name] = m
	l.decl = append(l.decl, m)
	return nil
}

// Module returns a declared module by name.
func (l *Loader) Module(name string) (*Module, bool) {
	m, ok := l.modules[name]
	return m, ok
}

// Load loads the named module set in dependency order. Every dependency must
// be inside the set. A module failure aborts its dependent subtree but
// independent modules keep loading; the returned error joins one ModuleError
// per failed module. Modules initialized before a failure stay initialized.
func (l *Loader) Load(ctx context.Context, names []string, mode Mode) error {
	set := make(map[string]*Module, len(names))
	for _, name := range names {
		m, ok := l.modules[name]
		if !ok {
			return &MissingDependencyError{Module: name, Dependency: name}
		}
		set[name] = m
	}

	order, err := l.resolve(set)
	if err != nil {
		return err
	}

	var errs []error
	failed := make(map[string]bool)

	for _, m := range order {
		if dep := failedDependency(m, failed); dep != "" {
			l.logger.Warn().
				Str("module", m.Name()).
				Str("failed_dependency", dep).
				Msg("skipping module, dependency failed")
			failed[m.Name()] = true
			continue
		}

		if err := l.loadOne(ctx, m, mode); err != nil {
			failed[m.Name()] = true
			errs = append(errs, &ModuleError{Module: m.Name(), Err: err})
		}
	}

	return errors.Join(errs...)
}

// resolve builds the dependency graph over the set and returns a topological
// order, declaration order breaking ties.
func (l *Loader) resolve(set map[string]*Module) ([]*Module, error) {
	indegree := make(map[string]int, len(set))
	dependents := make(map[string][]string, len(set))

	for name, m := range set {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, dep := range m.Desc.Depends {
			if _, ok := set[dep]; !ok {
				return nil, &MissingDependencyError{Module: name, Dependency: dep}
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []*Module
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, set[name])
		}
	}

	var order []*Module
	for len(ready) > 0 {
		// Pick the earliest-declared ready module.
		best := 0
		for i, m := range ready {
			if m.order < ready[best].order {
				best = i
			}
		}
		m := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, m)

		for _, dep := range dependents[m.Name()] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, set[dep])
			}
		}
	}

	if len(order) != len(set) {
		var cycle []string
		for name, deg := range indegree {
			if deg > 0 {
				cycle = append(cycle, name)
			}
		}
		return nil, &CyclicDependencyError{Modules: cycle}
	}

	return order, nil
}

// loadOne runs the full load sequence for one module.
func (l *Loader) loadOne(ctx context.Context, m *Module, mode Mode) error {
	switch mode {
	case ModeInstall:
		if m.state == schema.StateInitialized {
			return fmt.Errorf("already initialized; use update")
		}
	case ModeUpdate:
		if m.state != schema.StateInitialized {
			return fmt.Errorf("not initialized; use install")
		}
	}

	l.logger.Info().
		Str("module", m.Name()).
		Str("mode", mode.String()).
		Msg("loading module")

	// A failure restores the state held on entry: a module that was
	// initialized stays initialized, since synchronization rolls back.
	prev := m.state
	m.state = schema.StateResolving

	if err := m.Register(ctx, Env{Module: m.Name(), Registry: l.registry, Catalog: l.catalog}); err != nil {
		m.state = prev
		return fmt.Errorf("register: %w", err)
	}
	m.state = schema.StateLoaded

	// An update with no new registrations still re-synchronizes everything
	// the module owns; synchronization is a no-op at the fixed point.
	toSync := l.registry.Of(m.Name())
	if len(toSync) > 0 {
		result, err := l.store.Synchronize(ctx, toSync...)
		if err != nil {
			m.state = prev
			return fmt.Errorf("synchronize: %w", err)
		}
		if !result.Empty() {
			l.logger.Info().
				Str("module", m.Name()).
				Strs("tables_created", result.TablesCreated).
				Strs("columns_added", result.ColumnsAdded).
				Msg("schema synchronized")
		}
		l.bus.Publish(ctx, events.Event{
			Name:   events.SchemaSynchronized,
			Module: m.Name(),
			Data: map[string]any{
				"tables_created": len(result.TablesCreated),
				"columns_added":  len(result.ColumnsAdded),
			},
		})
	}

	if err := l.processData(ctx, m); err != nil {
		m.state = prev
		return err
	}

	m.state = schema.StateInitialized
	l.bus.Publish(ctx, events.Event{
		Name:   events.ModuleInitialized,
		Module: m.Name(),
		Data:   map[string]any{"mode": mode.String()},
	})
	return nil
}

// processData commits the module's metadata files as one batch.
func (l *Loader) processData(ctx context.Context, m *Module) error {
	if len(m.Desc.Data) == 0 {
		return nil
	}

	var batch ui.Batch
	for _, file := range m.Desc.Data {
		df, err := schema.ParseDataFile(filepath.Join(m.Dir, file))
		if err != nil {
			return err
		}
		batch.Add(df)
	}

	if err := l.ui.Commit(&batch); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	return nil
}

// fileRegister derives a registration hook from the descriptor's entity
// file list.
func fileRegister(m *Module) RegisterFunc {
	return func(ctx context.Context, env Env) error {
		for _, file := range m.Desc.Entities {
			entities, err := schema.ParseEntitiesFile(filepath.Join(m.Dir, file), env.Catalog)
			if err != nil {
				return err
			}
			for _, e := range entities {
				if err := registerEntity(ctx, env, e); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// RegisterEntity derives and registers one entity declaration. Embedded
// modules call this from their hooks.
func RegisterEntity(ctx context.Context, env Env, e schema.Entity) error {
	return registerEntity(ctx, env, e)
}

func registerEntity(ctx context.Context, env Env, e schema.Entity) error {
	if err := schema.ValidateEntity(e, env.Catalog); err != nil {
		return err
	}

	d, err := convention.Derive(e, env.Catalog)
	if err != nil {
		return err
	}
	return env.Registry.Register(ctx, env.Module, registry.KindEntity, d)
}

// failedDependency returns the first dependency of m that failed, if any.
func failedDependency(m *Module, failed map[string]bool) string {
	for _, dep := range m.Desc.Depends {
		if failed[dep] {
			return dep
		}
	}
	return ""
}
