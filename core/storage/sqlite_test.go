package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/artpar/modbase/core/convention"
	"github.com/artpar/modbase/core/schema"
)

func memStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every pooled connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStoreFromDB(db)
}

func derive(t *testing.T, e schema.Entity) convention.Derived {
	t.Helper()
	d, err := convention.Derive(e, schema.NewCatalog())
	if err != nil {
		t.Fatalf("derive %s: %v", e.Name, err)
	}
	return d
}

func book() schema.Entity {
	return schema.Entity{
		Name: "library.book",
		Fields: []schema.Field{
			{Name: "title", Kind: schema.KindText, Required: true},
			{Name: "isbn", Kind: schema.KindText},
			{Name: "subject", Kind: schema.KindText},
			{Name: "abstract", Kind: schema.KindLongText},
		},
	}
}

func columnNames(t *testing.T, store *SQLiteStore, table string) []string {
	t.Helper()
	cols, err := store.Columns(context.Background(), table)
	if err != nil {
		t.Fatalf("Columns(%s): %v", table, err)
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func TestSynchronizeCreatesTable(t *testing.T) {
	store := memStore(t)
	ctx := context.Background()

	result, err := store.Synchronize(ctx, derive(t, book()))
	if err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
	if len(result.TablesCreated) != 1 || result.TablesCreated[0] != "library_book" {
		t.Errorf("TablesCreated = %v, want [library_book]", result.TablesCreated)
	}

	// Declared fields plus the five audit columns.
	names := columnNames(t, store, "library_book")
	if len(names) != 9 {
		t.Fatalf("got %d columns, want 9: %v", len(names), names)
	}

	want := []string{"id", "title", "isbn", "subject", "abstract",
		"created_at", "updated_at", "created_by", "updated_by"}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("column[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestSynchronizeFixedPoint(t *testing.T) {
	store := memStore(t)
	ctx := context.Background()

	if _, err := store.Synchronize(ctx, derive(t, book())); err != nil {
		t.Fatalf("first Synchronize failed: %v", err)
	}

	result, err := store.Synchronize(ctx, derive(t, book()))
	if err != nil {
		t.Fatalf("second Synchronize failed: %v", err)
	}
	if !result.Empty() {
		t.Errorf("second run changed schema: %+v", result)
	}
}

func TestSynchronizeAddsColumn(t *testing.T) {
	store := memStore(t)
	ctx := context.Background()

	if _, err := store.Synchronize(ctx, derive(t, book())); err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}

	// Existing rows must survive a required column addition.
	_, err := store.DB().ExecContext(ctx,
		"INSERT INTO library_book (id, title) VALUES ('b1', 'Dune')")
	if err != nil {
		t.Fatalf("insert row: %v", err)
	}

	grown := book()
	grown.Fields = append(grown.Fields,
		schema.Field{Name: "pages", Kind: schema.KindInteger, Required: true},
		schema.Field{Name: "archived", Kind: schema.KindBoolean},
	)

	result, err := store.Synchronize(ctx, derive(t, grown))
	if err != nil {
		t.Fatalf("Synchronize after growth failed: %v", err)
	}
	if len(result.ColumnsAdded) != 2 {
		t.Errorf("ColumnsAdded = %v, want 2 entries", result.ColumnsAdded)
	}

	var pages int
	err = store.DB().QueryRowContext(ctx,
		"SELECT pages FROM library_book WHERE id = 'b1'").Scan(&pages)
	if err != nil {
		t.Fatalf("read backfilled column: %v", err)
	}
	if pages != 0 {
		t.Errorf("backfilled pages = %d, want 0", pages)
	}
}

func TestSynchronizeAddsAuditColumns(t *testing.T) {
	store := memStore(t)
	ctx := context.Background()

	// A table that predates the platform: declared fields only, no audit
	// columns. The timestamp defaults must survive the ADD COLUMN path,
	// which only accepts constant defaults.
	_, err := store.DB().ExecContext(ctx, `CREATE TABLE library_book (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  isbn TEXT,
  subject TEXT,
  abstract TEXT
)`)
	if err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	_, err = store.DB().ExecContext(ctx,
		"INSERT INTO library_book (id, title) VALUES ('b1', 'Dune')")
	if err != nil {
		t.Fatalf("insert row: %v", err)
	}

	result, err := store.Synchronize(ctx, derive(t, book()))
	if err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
	if len(result.ColumnsAdded) != 4 {
		t.Errorf("ColumnsAdded = %v, want the 4 missing audit columns", result.ColumnsAdded)
	}

	names := columnNames(t, store, "library_book")
	if len(names) != 9 {
		t.Errorf("got %d columns, want 9: %v", len(names), names)
	}
}

func TestSynchronizeTypeConflict(t *testing.T) {
	store := memStore(t)
	ctx := context.Background()

	if _, err := store.Synchronize(ctx, derive(t, book())); err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}

	changed := book()
	changed.Fields[1].Kind = schema.KindInteger // isbn TEXT -> INTEGER

	_, err := store.Synchronize(ctx, derive(t, changed))
	var conflict *SchemaConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SchemaConflictError, got %v", err)
	}
	if conflict.Table != "library_book" || conflict.Column != "isbn" {
		t.Errorf("conflict = %+v, want library_book.isbn", conflict)
	}
}

func TestSynchronizeRollsBackBatch(t *testing.T) {
	store := memStore(t)
	ctx := context.Background()

	if _, err := store.Synchronize(ctx, derive(t, book())); err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}

	// One good entity and one conflicting one in the same batch: neither
	// change may land.
	member := schema.Entity{Name: "library.member", Fields: []schema.Field{
		{Name: "login", Kind: schema.KindText, Required: true},
	}}
	conflicting := book()
	conflicting.Fields[0].Kind = schema.KindInteger

	_, err := store.Synchronize(ctx, derive(t, member), derive(t, conflicting))
	if err == nil {
		t.Fatal("expected batch to fail")
	}

	cols, err := store.Columns(ctx, "library_member")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if cols != nil {
		t.Errorf("library_member created despite batch failure: %v", cols)
	}
}

func TestColumnsAbsentTable(t *testing.T) {
	store := memStore(t)

	cols, err := store.Columns(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if cols != nil {
		t.Errorf("got %v, want nil for absent table", cols)
	}
}

func TestModuleStates(t *testing.T) {
	store := memStore(t)
	ctx := context.Background()

	states := NewModuleStates(store)
	if err := states.Ensure(ctx); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	if err := states.Set(ctx, "library", "1.0", "initialized"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := states.Set(ctx, "library", "1.1", "initialized"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	all, err := states.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if all["library"] != "initialized" {
		t.Errorf("state = %q, want initialized", all["library"])
	}
	if len(all) != 1 {
		t.Errorf("got %d states, want 1", len(all))
	}
}
