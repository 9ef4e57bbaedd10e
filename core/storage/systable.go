package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ModuleStates persists module lifecycle state across processes, so install
// and update keep their semantics between runs.
type ModuleStates struct {
	db *sql.DB
}

// NewModuleStates creates the state table accessor.
func NewModuleStates(store *SQLiteStore) *ModuleStates {
	return &ModuleStates{db: store.DB()}
}

// Ensure creates the system table if absent.
func (m *ModuleStates) Ensure(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS system_modules (
  name TEXT PRIMARY KEY,
  version TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL,
  installed_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT DEFAULT CURRENT_TIMESTAMP
)`)
	if err != nil {
		return fmt.Errorf("create system_modules: %w", err)
	}
	return nil
}

// All returns the persisted state of every known module.
func (m *ModuleStates) All(ctx context.Context) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT name, state FROM system_modules")
	if err != nil {
		return nil, fmt.Errorf("read system_modules: %w", err)
	}
	defer rows.Close()

	states := make(map[string]string)
	for rows.Next() {
		var name, state string
		if err := rows.Scan(&name, &state); err != nil {
			return nil, err
		}
		states[name] = state
	}
	return states, rows.Err()
}

// Set upserts one module's state.
func (m *ModuleStates) Set(ctx context.Context, name, version, state string) error {
	_, err := m.db.ExecContext(ctx, `INSERT INTO system_modules (name, version, state)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  version = excluded.version,
  state = excluded.state,
  updated_at = CURRENT_TIMESTAMP`, name, version, state)
	if err != nil {
		return fmt.Errorf("save module state %s: %w", name, err)
	}
	return nil
}
