package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/artpar/modbase/core/registry"
	"github.com/artpar/modbase/core/schema"
)

func recordsEnv(t *testing.T) (*Records, *SQLiteStore) {
	t.Helper()
	store := memStore(t)
	reg := registry.New(nil)
	ctx := context.Background()

	e := schema.Entity{
		Name: "library.book",
		Fields: []schema.Field{
			{Name: "title", Kind: schema.KindText, Required: true},
			{Name: "isbn", Kind: schema.KindText},
			{Name: "available", Kind: schema.KindBoolean, Default: true},
			{Name: "pages", Kind: schema.KindInteger},
		},
	}
	d := derive(t, e)
	if err := reg.Register(ctx, "library", registry.KindEntity, d); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := store.Synchronize(ctx, d); err != nil {
		t.Fatalf("synchronize: %v", err)
	}

	return NewRecords(store, reg), store
}

func TestRecordsSaveAndLoad(t *testing.T) {
	records, _ := recordsEnv(t)
	ctx := context.Background()

	id, err := records.Save(ctx, "library.book", "admin", map[string]any{
		"title": "Dune",
		"isbn":  "9780441013593",
		"pages": 412,
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id == "" {
		t.Fatal("insert returned empty id")
	}

	rec, err := records.Load(ctx, "library.book", id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec == nil {
		t.Fatal("record not found after insert")
	}

	if rec["title"] != "Dune" {
		t.Errorf("title = %v, want Dune", rec["title"])
	}
	if rec["pages"] != int64(412) {
		t.Errorf("pages = %v (%T), want 412", rec["pages"], rec["pages"])
	}
	// Declared default applied on insert, read back as bool.
	if rec["available"] != true {
		t.Errorf("available = %v, want true", rec["available"])
	}
	if rec["created_by"] != "admin" || rec["updated_by"] != "admin" {
		t.Errorf("audit actors = %v/%v, want admin", rec["created_by"], rec["updated_by"])
	}
	if rec["created_at"] == nil || rec["updated_at"] == nil {
		t.Error("audit timestamps not set")
	}
}

func TestRecordsSaveRequiredMissing(t *testing.T) {
	records, _ := recordsEnv(t)

	_, err := records.Save(context.Background(), "library.book", "admin", map[string]any{
		"isbn": "123",
	})
	if err == nil || !strings.Contains(err.Error(), "title") {
		t.Errorf("err = %v, want required title failure", err)
	}
}

func TestRecordsUpdate(t *testing.T) {
	records, _ := recordsEnv(t)
	ctx := context.Background()

	id, err := records.Save(ctx, "library.book", "admin", map[string]any{"title": "Dune"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	same, err := records.Save(ctx, "library.book", "editor", map[string]any{
		"id":        id,
		"title":     "Dune Messiah",
		"available": false,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if same != id {
		t.Errorf("update returned id %q, want %q", same, id)
	}

	rec, err := records.Load(ctx, "library.book", id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec["title"] != "Dune Messiah" {
		t.Errorf("title = %v, want Dune Messiah", rec["title"])
	}
	if rec["available"] != false {
		t.Errorf("available = %v, want false", rec["available"])
	}
	if rec["created_by"] != "admin" || rec["updated_by"] != "editor" {
		t.Errorf("audit actors = %v/%v, want admin/editor", rec["created_by"], rec["updated_by"])
	}
}

func TestRecordsUpdateMissing(t *testing.T) {
	records, _ := recordsEnv(t)

	_, err := records.Save(context.Background(), "library.book", "admin", map[string]any{
		"id":    "no-such-id",
		"title": "Ghost",
	})
	if err == nil {
		t.Error("expected error updating absent record")
	}
}

func TestRecordsDelete(t *testing.T) {
	records, _ := recordsEnv(t)
	ctx := context.Background()

	id, err := records.Save(ctx, "library.book", "admin", map[string]any{"title": "Dune"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := records.Delete(ctx, "library.book", id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	rec, err := records.Load(ctx, "library.book", id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec != nil {
		t.Errorf("record survived delete: %v", rec)
	}

	if err := records.Delete(ctx, "library.book", id); err == nil {
		t.Error("expected error deleting absent record")
	}
}

func TestRecordsUnknownEntity(t *testing.T) {
	records, _ := recordsEnv(t)

	if _, err := records.Load(context.Background(), "library.missing", "x"); err == nil {
		t.Error("expected error for unknown entity")
	}
}
