// Package web serves the read-only introspection API: registered entity
// schemas, the committed menu tree, health, and Prometheus metrics. The
// registries are immutable once loading finishes, so handlers read without
// coordination.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/artpar/modbase/core/convention"
	"github.com/artpar/modbase/core/registry"
	"github.com/artpar/modbase/core/ui"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handler serves the introspection endpoints.
type Handler struct {
	entities *registry.Registry
	menus    *ui.Registry
	logger   zerolog.Logger
}

// New creates an introspection handler.
func New(entities *registry.Registry, menus *ui.Registry, logger zerolog.Logger) *Handler {
	return &Handler{entities: entities, menus: menus, logger: logger}
}

// Router returns the introspection router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.Health)
	r.Get("/schema", h.SchemaList)
	r.Get("/schema/{name}", h.SchemaDetail)
	r.Get("/menu", h.MenuTree)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Health reports liveness and registry sizes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"entities":   h.entities.Len(),
		"menu_items": h.menus.Len(),
	})
}

// entitySummary is the list form of a registered entity.
type entitySummary struct {
	Name   string `json:"name"`
	Label  string `json:"label,omitempty"`
	Table  string `json:"table"`
	Fields int    `json:"fields"`
}

// SchemaList returns every registered entity.
func (h *Handler) SchemaList(w http.ResponseWriter, r *http.Request) {
	var out []entitySummary
	for d := range h.entities.AllOf(registry.KindEntity) {
		out = append(out, entitySummary{
			Name:   d.Source.Name,
			Label:  d.Source.Label,
			Table:  d.Table,
			Fields: len(d.Source.Fields),
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entities": out, "count": len(out)})
}

// columnSchema describes one derived column.
type columnSchema struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	SQLType  string `json:"sql_type"`
	Required bool   `json:"required,omitempty"`
	Default  any    `json:"default,omitempty"`
	Ref      string `json:"ref,omitempty"`
	Audit    bool   `json:"audit,omitempty"`
}

// SchemaDetail returns one entity's derived schema.
func (h *Handler) SchemaDetail(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	d, err := h.entities.Lookup(name)
	if err != nil {
		h.writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"name":    d.Source.Name,
		"label":   d.Source.Label,
		"table":   d.Table,
		"columns": columnSchemas(d),
	})
}

func columnSchemas(d convention.Derived) []columnSchema {
	out := make([]columnSchema, 0, len(d.Columns))
	for _, c := range d.Columns {
		out = append(out, columnSchema{
			Name:     c.Name,
			Kind:     string(c.Kind),
			SQLType:  c.SQLType,
			Required: c.Required,
			Default:  c.Default,
			Ref:      c.Ref,
			Audit:    c.Audit,
		})
	}
	return out
}

// menuNode is the JSON form of a menu tree node.
type menuNode struct {
	ID       string     `json:"id"`
	Name     string     `json:"name,omitempty"`
	Sequence int        `json:"sequence"`
	Action   string     `json:"action,omitempty"`
	Children []menuNode `json:"children,omitempty"`
}

// MenuTree returns the committed menu forest.
func (h *Handler) MenuTree(w http.ResponseWriter, r *http.Request) {
	roots := h.menus.Tree()
	h.writeJSON(w, http.StatusOK, map[string]any{"menu": menuNodes(roots)})
}

func menuNodes(nodes []*ui.Node) []menuNode {
	out := make([]menuNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, menuNode{
			ID:       n.Item.ID,
			Name:     n.Item.Name,
			Sequence: n.Item.Sequence,
			Action:   n.Item.Action,
			Children: menuNodes(n.Children),
		})
	}
	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("write response")
	}
}
