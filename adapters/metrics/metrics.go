// Package metrics provides Prometheus metrics for the load pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics.
type Collector struct {
	// Load pipeline metrics
	ModulesLoaded      *prometheus.CounterVec
	ModuleLoadErrors   *prometheus.CounterVec
	EntitiesRegistered prometheus.Counter

	// Schema synchronization metrics
	TablesCreated prometheus.Counter
	ColumnsAdded  prometheus.Counter

	// UI tree metrics
	MenuItems prometheus.Gauge
}

// New creates a collector registered against reg. Pass
// prometheus.DefaultRegisterer in production; tests use their own registry.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		ModulesLoaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "modbase",
				Name:      "modules_loaded_total",
				Help:      "Modules successfully initialized, by mode",
			},
			[]string{"mode"},
		),
		ModuleLoadErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "modbase",
				Name:      "module_load_errors_total",
				Help:      "Module load failures, by mode",
			},
			[]string{"mode"},
		),
		EntitiesRegistered: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "modbase",
				Name:      "entities_registered_total",
				Help:      "Entities registered into the pool",
			},
		),
		TablesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "modbase",
				Name:      "tables_created_total",
				Help:      "Tables created by schema synchronization",
			},
		),
		ColumnsAdded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "modbase",
				Name:      "columns_added_total",
				Help:      "Columns added by schema synchronization",
			},
		),
		MenuItems: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "modbase",
				Name:      "menu_items",
				Help:      "Menu items in the committed UI tree",
			},
		),
	}
}
