// Package convention derives the storage form of a declared entity.
// It resolves every field kind through the catalog, appends the implicit
// audit fields, and fixes the table name.
package convention

import (
	"fmt"

	"github.com/artpar/modbase/core/schema"
)

// Derived is the fully-expanded form of an entity used by storage and the
// registry. It is immutable after derivation.
type Derived struct {
	// Source is the original entity declaration.
	Source schema.Entity

	// Table is the database table name, derived from the logical name.
	Table string

	// Columns contains one entry per declared field, in declaration order,
	// followed by the five implicit audit columns.
	Columns []Column
}

// Column is a fully-derived column with its storage mapping applied.
type Column struct {
	// Name of the column.
	Name string

	// Kind is the semantic field kind.
	Kind schema.FieldKind

	// SQLType is the SQLite column type.
	SQLType string

	// Required indicates the column is NOT NULL.
	Required bool

	// Default value, if declared.
	Default any

	// ZeroLiteral is the backfill literal used when this column is added
	// to a table that already holds rows.
	ZeroLiteral string

	// Ref is the target entity logical name for reference columns.
	Ref string

	// Audit marks the implicit columns appended by derivation.
	Audit bool
}

// Derive expands an entity declaration into its storage form.
// Fails if any field kind is missing from the catalog.
func Derive(e schema.Entity, catalog *schema.Catalog) (Derived, error) {
	d := Derived{
		Source:  e,
		Table:   e.TableName(),
		Columns: make([]Column, 0, len(e.Fields)+len(schema.AuditFieldNames)),
	}

	// Surrogate key first.
	d.Columns = append(d.Columns, Column{
		Name:    "id",
		Kind:    schema.KindText,
		SQLType: "TEXT",
		Audit:   true,
	})

	for _, f := range e.Fields {
		spec, err := catalog.Resolve(f.Kind)
		if err != nil {
			return Derived{}, fmt.Errorf("entity %q field %q: %w", e.Name, f.Name, err)
		}

		d.Columns = append(d.Columns, Column{
			Name:        f.Name,
			Kind:        f.Kind,
			SQLType:     spec.SQLType,
			Required:    f.Required,
			Default:     f.Default,
			ZeroLiteral: spec.ZeroLiteral,
			Ref:         f.To,
		})
	}

	// Remaining audit columns: timestamps, then writer references.
	for _, name := range []string{"created_at", "updated_at"} {
		d.Columns = append(d.Columns, Column{
			Name:    name,
			Kind:    schema.KindDatetime,
			SQLType: "TEXT",
			Audit:   true,
		})
	}
	for _, name := range []string{"created_by", "updated_by"} {
		d.Columns = append(d.Columns, Column{
			Name:    name,
			Kind:    schema.KindReference,
			SQLType: "TEXT",
			Audit:   true,
		})
	}

	return d, nil
}

// Column returns the derived column with the given name.
func (d Derived) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Declared returns the non-audit columns in declaration order.
func (d Derived) Declared() []Column {
	declared := make([]Column, 0, len(d.Columns))
	for _, c := range d.Columns {
		if !c.Audit {
			declared = append(declared, c)
		}
	}
	return declared
}
