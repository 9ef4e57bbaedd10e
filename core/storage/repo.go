package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/artpar/modbase/core/convention"
	"github.com/artpar/modbase/core/registry"
	"github.com/artpar/modbase/core/schema"
	"github.com/google/uuid"
)

// Records is the explicit repository over synchronized tables. Every
// synchronization point with the database is a method call here; records are
// plain maps, not live objects.
type Records struct {
	db  *sql.DB
	reg *registry.Registry
}

// NewRecords creates a record repository backed by a store's connection.
func NewRecords(store *SQLiteStore, reg *registry.Registry) *Records {
	return &Records{db: store.DB(), reg: reg}
}

// Load reads one record by surrogate id. Returns nil when absent.
func (r *Records) Load(ctx context.Context, entity string, id string) (map[string]any, error) {
	d, err := r.reg.Lookup(entity)
	if err != nil {
		return nil, err
	}

	columns := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		columns[i] = c.Name
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE id = ?",
		strings.Join(columns, ", "), d.Table,
	)

	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := r.db.QueryRowContext(ctx, query, id).Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load %s %s: %w", entity, id, err)
	}

	record := make(map[string]any, len(columns))
	for i, c := range d.Columns {
		record[c.Name] = fromDB(values[i], c)
	}
	return record, nil
}

// Save writes a record. Without an "id" value it inserts a new row with a
// generated surrogate id; with one it updates the existing row. The audit
// columns are maintained here and cannot be set by callers.
func (r *Records) Save(ctx context.Context, entity string, actor string, values map[string]any) (string, error) {
	d, err := r.reg.Lookup(entity)
	if err != nil {
		return "", err
	}

	id, _ := values["id"].(string)
	if id == "" {
		return r.insert(ctx, d, actor, values)
	}
	return id, r.update(ctx, d, actor, id, values)
}

// Delete removes a record by surrogate id.
func (r *Records) Delete(ctx context.Context, entity string, id string) error {
	d, err := r.reg.Lookup(entity)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ?", d.Table), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", entity, id, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("record not found: %s %s", entity, id)
	}
	return nil
}

func (r *Records) insert(ctx context.Context, d convention.Derived, actor string, values map[string]any) (string, error) {
	id := uuid.New().String()

	columns := []string{"id", "created_by", "updated_by"}
	placeholders := []string{"?", "?", "?"}
	args := []any{id, actor, actor}

	for _, c := range d.Declared() {
		val, exists := values[c.Name]
		if !exists {
			if c.Default != nil {
				val = c.Default
			} else if c.Required {
				return "", fmt.Errorf("entity %s: required field %q not provided", d.Source.Name, c.Name)
			} else {
				continue
			}
		}

		columns = append(columns, c.Name)
		placeholders = append(placeholders, "?")
		args = append(args, toDB(val, c))
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		d.Table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	if _, err := r.db.ExecContext(ctx, insertSQL, args...); err != nil {
		return "", fmt.Errorf("insert %s: %w", d.Source.Name, err)
	}
	return id, nil
}

func (r *Records) update(ctx context.Context, d convention.Derived, actor string, id string, values map[string]any) error {
	var sets []string
	var args []any

	for _, c := range d.Declared() {
		val, exists := values[c.Name]
		if !exists {
			continue
		}
		sets = append(sets, c.Name+" = ?")
		args = append(args, toDB(val, c))
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = CURRENT_TIMESTAMP", "updated_by = ?")
	args = append(args, actor, id)

	updateSQL := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = ?",
		d.Table, strings.Join(sets, ", "),
	)

	result, err := r.db.ExecContext(ctx, updateSQL, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", d.Source.Name, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("record not found: %s %s", d.Source.Name, id)
	}
	return nil
}

// toDB converts a Go value to its database form.
func toDB(val any, c convention.Column) any {
	if val == nil {
		return nil
	}

	switch c.Kind {
	case schema.KindBoolean:
		switch v := val.(type) {
		case bool:
			if v {
				return 1
			}
			return 0
		case string:
			if v == "true" || v == "1" {
				return 1
			}
			return 0
		default:
			return 0
		}
	case schema.KindBinary:
		if s, ok := val.(string); ok {
			return []byte(s)
		}
		return val
	default:
		return val
	}
}

// fromDB converts a database value back to its Go form.
func fromDB(val any, c convention.Column) any {
	if val == nil {
		return nil
	}

	switch c.Kind {
	case schema.KindBoolean:
		switch v := val.(type) {
		case int64:
			return v != 0
		case int:
			return v != 0
		default:
			return false
		}
	case schema.KindBinary:
		return val
	default:
		if b, ok := val.([]byte); ok {
			return string(b)
		}
		return val
	}
}
