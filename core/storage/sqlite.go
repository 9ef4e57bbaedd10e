package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/artpar/modbase/core/convention"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store with SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens a SQLite database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStoreFromDB wraps an existing connection.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Synchronize reconciles a batch of entities with the physical schema inside
// one transaction. Tables are created if absent; existing tables only gain
// missing columns. A conflict or failure rolls back the whole batch, leaving
// the schema in its prior state.
func (s *SQLiteStore) Synchronize(ctx context.Context, entities ...convention.Derived) (SyncResult, error) {
	var result SyncResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SyncResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range entities {
		existing, err := tableColumns(ctx, tx, d.Table)
		if err != nil {
			return SyncResult{}, fmt.Errorf("introspect table %s: %w", d.Table, err)
		}

		if existing == nil {
			if _, err := tx.ExecContext(ctx, BuildCreateTableSQL(d)); err != nil {
				return SyncResult{}, fmt.Errorf("create table %s: %w", d.Table, err)
			}
			result.TablesCreated = append(result.TablesCreated, d.Table)
			continue
		}

		byName := make(map[string]ColumnInfo, len(existing))
		for _, col := range existing {
			byName[col.Name] = col
		}

		for _, c := range d.Columns {
			actual, ok := byName[c.Name]
			if !ok {
				if _, err := tx.ExecContext(ctx, BuildAddColumnSQL(d.Table, c)); err != nil {
					return SyncResult{}, fmt.Errorf("add column %s.%s: %w", d.Table, c.Name, err)
				}
				result.ColumnsAdded = append(result.ColumnsAdded, d.Table+"."+c.Name)
				continue
			}

			if !strings.EqualFold(actual.SQLType, c.SQLType) {
				return SyncResult{}, &SchemaConflictError{
					Table:    d.Table,
					Column:   c.Name,
					Declared: c.SQLType,
					Actual:   actual.SQLType,
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return SyncResult{}, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

// Columns returns the actual columns of a table, or nil if it is absent.
func (s *SQLiteStore) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	return tableColumns(ctx, s.db, table)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// querier covers *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// tableColumns introspects a table via PRAGMA table_info.
// Returns nil (no error) when the table does not exist.
func tableColumns(ctx context.Context, q querier, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			cid     int
			name    string
			sqlType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &sqlType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, ColumnInfo{
			Name:    name,
			SQLType: sqlType,
			NotNull: notNull != 0,
			Primary: pk != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return columns, nil
}
