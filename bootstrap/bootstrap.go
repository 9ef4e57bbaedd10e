// Package bootstrap wires all dependencies: logger, database, catalog, event
// bus, registries, loader, and the introspection server. The registry and UI
// tree are constructed here once and passed by reference; teardown closes
// the database and stops the server.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/modbase/adapters/metrics"
	"github.com/artpar/modbase/config"
	"github.com/artpar/modbase/core/events"
	"github.com/artpar/modbase/core/loader"
	"github.com/artpar/modbase/core/registry"
	"github.com/artpar/modbase/core/schema"
	"github.com/artpar/modbase/core/storage"
	"github.com/artpar/modbase/core/ui"
	"github.com/artpar/modbase/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// App holds the wired application.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Catalog  *schema.Catalog
	Bus      *events.Bus
	Registry *registry.Registry
	UI       *ui.Registry
	Store    *storage.SQLiteStore
	Records  *storage.Records
	States   *storage.ModuleStates
	Loader   *loader.Loader
	Metrics  *metrics.Collector
}

// Options tweak wiring for tests and embedders.
type Options struct {
	// Registerer for metrics. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// New wires the application from configuration.
func New(cfg *config.Config, opts Options) (*App, error) {
	logger := newLogger(cfg.Logging)

	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Catalog: schema.NewCatalog(),
		Bus:     events.NewBus(logger),
		Store:   store,
		Metrics: metrics.New(registerer),
	}

	a.Registry = registry.New(a.Bus)
	a.UI = ui.New(a.Registry)
	a.Records = storage.NewRecords(store, a.Registry)
	a.States = storage.NewModuleStates(store)
	a.Loader = loader.New(a.Registry, a.Catalog, store, a.UI, a.Bus, logger)

	if err := a.States.Ensure(context.Background()); err != nil {
		store.Close()
		return nil, err
	}

	a.wireMetrics()
	a.wireStatePersistence()

	return a, nil
}

// wireStatePersistence records initialized modules in the system table.
func (a *App) wireStatePersistence() {
	a.Bus.Subscribe(events.ModuleInitialized, func(ctx context.Context, e events.Event) error {
		var version string
		if m, ok := a.Loader.Module(e.Module); ok {
			version = m.Desc.Version
		}
		return a.States.Set(ctx, e.Module, version, schema.StateInitialized.String())
	})
}

// wireMetrics feeds the collectors from load pipeline events.
func (a *App) wireMetrics() {
	a.Bus.Subscribe(events.EntityRegistered, func(ctx context.Context, e events.Event) error {
		a.Metrics.EntitiesRegistered.Inc()
		return nil
	})

	a.Bus.Subscribe(events.SchemaSynchronized, func(ctx context.Context, e events.Event) error {
		if n, ok := e.Data["tables_created"].(int); ok {
			a.Metrics.TablesCreated.Add(float64(n))
		}
		if n, ok := e.Data["columns_added"].(int); ok {
			a.Metrics.ColumnsAdded.Add(float64(n))
		}
		return nil
	})

	a.Bus.Subscribe(events.ModuleInitialized, func(ctx context.Context, e events.Event) error {
		mode, _ := e.Data["mode"].(string)
		a.Metrics.ModulesLoaded.WithLabelValues(mode).Inc()
		a.Metrics.MenuItems.Set(float64(a.UI.Len()))
		return nil
	})
}

// Install discovers and loads the named modules in install mode.
// With no names, every discovered module is installed.
func (a *App) Install(ctx context.Context, names []string) error {
	return a.load(ctx, names, loader.ModeInstall)
}

// Update re-loads the named modules in update mode.
func (a *App) Update(ctx context.Context, names []string) error {
	return a.load(ctx, names, loader.ModeUpdate)
}

func (a *App) load(ctx context.Context, names []string, mode loader.Mode) error {
	discovered, err := a.DiscoverModules()
	if err != nil {
		return err
	}

	if len(names) == 0 {
		names = discovered
	}

	if err := a.Loader.Load(ctx, names, mode); err != nil {
		a.Metrics.ModuleLoadErrors.WithLabelValues(mode.String()).Inc()
		return err
	}
	return nil
}

// DiscoverModules declares every module found under the modules directory.
// Each subdirectory holding a module.yaml is a module. Re-discovery skips
// modules already declared. Returns the discovered names.
func (a *App) DiscoverModules() ([]string, error) {
	dir := a.Config.Modules.Dir

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read modules dir %s: %w", dir, err)
	}

	persisted, err := a.States.All(context.Background())
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		descPath := filepath.Join(dir, entry.Name(), "module.yaml")
		if _, err := os.Stat(descPath); err != nil {
			continue
		}

		mod, err := schema.ParseModuleFile(descPath)
		if err != nil {
			return nil, err
		}
		names = append(names, mod.Name)

		if existing, declared := a.Loader.Module(mod.Name); declared {
			// Watch mode re-discovers: pick up an edited descriptor so the
			// next update sees new dependencies and file lists.
			existing.Desc = mod
			continue
		}

		m := &loader.Module{
			Desc: mod,
			Dir:  filepath.Join(dir, entry.Name()),
		}
		if err := a.Loader.Declare(m); err != nil {
			return nil, err
		}

		if persisted[mod.Name] == schema.StateInitialized.String() {
			m.Restore(schema.StateInitialized)
		}

		a.Logger.Debug().
			Str("module", mod.Name).
			Str("version", mod.Version).
			Strs("depends", mod.Depends).
			Msg("module discovered")
	}

	return names, nil
}

// Serve runs the introspection server until ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	handler := web.New(a.Registry, a.UI, a.Logger)

	srv := &http.Server{
		Addr:         a.Config.Addr(),
		Handler:      handler.Router(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Msg("introspection server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases held resources.
func (a *App) Close() error {
	return a.Store.Close()
}

// newLogger builds the zerolog logger from config.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(output).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}
