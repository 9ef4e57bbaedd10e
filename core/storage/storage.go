// Package storage reconciles derived entities with the actual SQLite schema
// and provides an explicit record repository over the synchronized tables.
//
// Synchronization is append-only by design: it creates missing tables and
// adds missing columns, and never drops, renames, or retypes anything. It is
// safe to run repeatedly; a second run over an unchanged entity is a no-op.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/artpar/modbase/core/convention"
	"github.com/artpar/modbase/core/schema"
)

// Store reconciles entity descriptors with the physical schema.
type Store interface {
	// Synchronize reconciles a batch of entities in one transaction.
	// A failure rolls the whole batch back.
	Synchronize(ctx context.Context, entities ...convention.Derived) (SyncResult, error)

	// Columns returns the actual columns of a table, empty if it is absent.
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)

	// Close closes the storage connection.
	Close() error
}

// SyncResult reports what a synchronization run changed.
type SyncResult struct {
	// TablesCreated lists tables created by this run.
	TablesCreated []string

	// ColumnsAdded lists added columns as "table.column".
	ColumnsAdded []string
}

// Empty reports whether the run changed nothing (the fixed point).
func (r SyncResult) Empty() bool {
	return len(r.TablesCreated) == 0 && len(r.ColumnsAdded) == 0
}

// ColumnInfo describes an actual column found by introspection.
type ColumnInfo struct {
	Name    string
	SQLType string
	NotNull bool
	Primary bool
}

// SchemaConflictError reports a declared column whose type conflicts with
// the column already present in the table. Resolving it requires an explicit
// migration; synchronization never alters existing types.
type SchemaConflictError struct {
	Table    string
	Column   string
	Declared string
	Actual   string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("schema conflict on %s.%s: declared type %s, table has %s",
		e.Table, e.Column, e.Declared, e.Actual)
}

// BuildCreateTableSQL generates the CREATE TABLE statement for a derived
// entity: one column per declared field plus the audit columns, with the
// surrogate key as primary key.
func BuildCreateTableSQL(d convention.Derived) string {
	var columns []string
	var constraints []string

	for _, c := range d.Columns {
		columns = append(columns, buildColumnDef(c))

		if c.Ref != "" && !c.Audit {
			refTable := strings.ReplaceAll(c.Ref, ".", "_")
			constraints = append(constraints, fmt.Sprintf(
				"FOREIGN KEY(%s) REFERENCES %s(id)", c.Name, refTable,
			))
		}

		if c.Kind == schema.KindSelection {
			if f, ok := d.Source.Field(c.Name); ok && len(f.Values) > 0 {
				values := make([]string, len(f.Values))
				for i, v := range f.Values {
					values[i] = quoteString(v)
				}
				constraints = append(constraints, fmt.Sprintf(
					"CHECK(%s IN (%s))", c.Name, strings.Join(values, ", "),
				))
			}
		}
	}

	sql := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s",
		d.Table,
		strings.Join(columns, ",\n  "),
	)

	if len(constraints) > 0 {
		sql += ",\n  " + strings.Join(constraints, ",\n  ")
	}

	sql += "\n)"
	return sql
}

// BuildAddColumnSQL generates the ALTER TABLE statement that appends one
// missing column. Required columns get a resolved default so existing rows
// stay valid.
func BuildAddColumnSQL(table string, c convention.Column) string {
	def := buildColumnDef(c)

	// ALTER TABLE ADD COLUMN only accepts constant defaults; backfill the
	// timestamp columns with the empty literal and let inserts fill them.
	def = strings.Replace(def, "DEFAULT CURRENT_TIMESTAMP", "DEFAULT ''", 1)

	if c.Required && c.Default == nil && !strings.Contains(def, "DEFAULT") {
		def += " DEFAULT " + c.ZeroLiteral
	}

	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, def)
}

// buildColumnDef builds one column definition.
func buildColumnDef(c convention.Column) string {
	parts := []string{c.Name, c.SQLType}

	if c.Name == "id" {
		parts = append(parts, "PRIMARY KEY")
	}

	if c.Required {
		parts = append(parts, "NOT NULL")
	}

	if c.Default != nil {
		if lit := formatDefault(c.Default); lit != "" {
			parts = append(parts, "DEFAULT "+lit)
		}
	}

	// Timestamps fill themselves on insert.
	if c.Name == "created_at" || c.Name == "updated_at" {
		parts = append(parts, "DEFAULT CURRENT_TIMESTAMP")
	}

	return strings.Join(parts, " ")
}

// formatDefault formats a declared default value as a SQL literal.
func formatDefault(val any) string {
	switch v := val.(type) {
	case string:
		return quoteString(v)
	case int, int32, int64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%v", v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
