package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/modbase/config"
	"github.com/artpar/modbase/core/loader"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func writeModule(t *testing.T, dir, name string, files map[string]string) {
	t.Helper()
	modDir := filepath.Join(dir, name)
	if err := os.MkdirAll(modDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for file, content := range files {
		if err := os.WriteFile(filepath.Join(modDir, file), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	writeModule(t, filepath.Join(dir, "modules"), "base", map[string]string{
		"module.yaml": `name: base
version: "1.0"
entities:
  - entities.yaml
data:
  - menu.xml
`,
		"entities.yaml": `- name: base.user
  fields:
    - name: login
      kind: text
      required: true
    - name: active
      kind: boolean
      default: true
`,
		"menu.xml": `<data>
  <menuitem id="menu_settings" name="Settings" sequence="100"/>
</data>`,
	})

	writeModule(t, filepath.Join(dir, "modules"), "library", map[string]string{
		"module.yaml": `name: library
version: "1.0"
depends:
  - base
entities:
  - entities.yaml
data:
  - menu.xml
`,
		"entities.yaml": `- name: library.book
  fields:
    - name: title
      kind: text
      required: true
    - name: isbn
      kind: text
    - name: subject
      kind: text
    - name: abstract
      kind: longtext
`,
		"menu.xml": `<data>
  <action id="act_library_window" name="Books" entity="library.book" view-mode="list,form"/>
  <menuitem id="menu_library" name="Library" sequence="10"/>
  <menuitem id="menu_books" name="Books" parent="menu_library" sequence="10" action="act_library_window"/>
</data>`,
	})

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "modbase.db")
	cfg.Modules.Dir = filepath.Join(dir, "modules")
	cfg.Logging.Format = "json"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := New(cfg, Options{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

func TestInstallEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)
	ctx := context.Background()

	if err := app.Install(ctx, nil); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	// Entities from both modules are registered.
	if app.Registry.Len() != 2 {
		t.Errorf("Registry.Len = %d, want 2", app.Registry.Len())
	}

	// Declared fields plus the audit columns landed in storage.
	cols, err := app.Store.Columns(ctx, "library_book")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if len(cols) != 9 {
		t.Errorf("library_book has %d columns, want 9", len(cols))
	}

	// The menu forest spans both modules.
	roots := app.UI.Tree()
	if len(roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(roots))
	}
	if roots[0].Item.ID != "menu_library" || roots[1].Item.ID != "menu_settings" {
		t.Errorf("roots = %q, %q", roots[0].Item.ID, roots[1].Item.ID)
	}
	if len(roots[0].Children) != 1 || roots[0].Children[0].Item.ID != "menu_books" {
		t.Errorf("library children = %v", roots[0].Children)
	}

	if got := testutil.ToFloat64(app.Metrics.EntitiesRegistered); got != 2 {
		t.Errorf("entities_registered = %v, want 2", got)
	}
	if got := testutil.ToFloat64(app.Metrics.MenuItems); got != 3 {
		t.Errorf("menu_items gauge = %v, want 3", got)
	}
}

func TestRecordsThroughApp(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)
	ctx := context.Background()

	if err := app.Install(ctx, nil); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	id, err := app.Records.Save(ctx, "library.book", "admin", map[string]any{
		"title": "Dune",
		"isbn":  "9780441013593",
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rec, err := app.Records.Load(ctx, "library.book", id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec["title"] != "Dune" || rec["created_by"] != "admin" {
		t.Errorf("record = %v", rec)
	}
}

func TestStatePersistsAcrossProcesses(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first := newTestApp(t, cfg)
	if err := first.Install(ctx, nil); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// A fresh process sees the modules as initialized: install is rejected,
	// update succeeds and changes nothing.
	second := newTestApp(t, cfg)

	err := second.Install(ctx, nil)
	var modErr *loader.ModuleError
	if !errors.As(err, &modErr) {
		t.Fatalf("expected ModuleError reinstalling, got %v", err)
	}

	if err := second.Update(ctx, nil); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	cols, err := second.Store.Columns(ctx, "library_book")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if len(cols) != 9 {
		t.Errorf("library_book has %d columns after update, want 9", len(cols))
	}
}

func TestUpdatePicksUpNewField(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first := newTestApp(t, cfg)
	if err := first.Install(ctx, nil); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The module author adds a field between releases.
	entities := `- name: library.book
  fields:
    - name: title
      kind: text
      required: true
    - name: isbn
      kind: text
    - name: subject
      kind: text
    - name: abstract
      kind: longtext
    - name: pages
      kind: integer
`
	path := filepath.Join(cfg.Modules.Dir, "library", "entities.yaml")
	if err := os.WriteFile(path, []byte(entities), 0o644); err != nil {
		t.Fatal(err)
	}

	second := newTestApp(t, cfg)
	if err := second.Update(ctx, []string{"base", "library"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	cols, err := second.Store.Columns(ctx, "library_book")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if len(cols) != 10 {
		t.Errorf("library_book has %d columns, want 10 after update", len(cols))
	}
}

func TestUpdateInSameProcess(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)
	ctx := context.Background()

	if err := app.Install(ctx, nil); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	// Watch mode edits happen while the process keeps running: a new entity
	// field and a new metadata file referenced from an edited module.yaml.
	libDir := filepath.Join(cfg.Modules.Dir, "library")
	entities := `- name: library.book
  fields:
    - name: title
      kind: text
      required: true
    - name: isbn
      kind: text
    - name: subject
      kind: text
    - name: abstract
      kind: longtext
    - name: pages
      kind: integer
`
	if err := os.WriteFile(filepath.Join(libDir, "entities.yaml"), []byte(entities), 0o644); err != nil {
		t.Fatal(err)
	}
	extra := `<data>
  <menuitem id="menu_archive" name="Archive" parent="menu_library" sequence="90"/>
</data>`
	if err := os.WriteFile(filepath.Join(libDir, "extra.xml"), []byte(extra), 0o644); err != nil {
		t.Fatal(err)
	}
	desc := `name: library
version: "1.1"
depends:
  - base
entities:
  - entities.yaml
data:
  - menu.xml
  - extra.xml
`
	if err := os.WriteFile(filepath.Join(libDir, "module.yaml"), []byte(desc), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := app.Update(ctx, nil); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	cols, err := app.Store.Columns(ctx, "library_book")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if len(cols) != 10 {
		t.Errorf("library_book has %d columns, want 10 after update", len(cols))
	}

	if _, ok := app.UI.Item("menu_archive"); !ok {
		t.Error("edited module.yaml not re-read: extra.xml item missing")
	}
}

func TestInstallSubset(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)
	ctx := context.Background()

	// The dependency must be in the load set.
	if err := app.Install(ctx, []string{"library"}); err == nil {
		t.Error("expected error installing library without base")
	}

	if err := app.Install(ctx, []string{"base"}); err != nil {
		t.Fatalf("installing base alone failed: %v", err)
	}
	if app.Registry.Len() != 1 {
		t.Errorf("Registry.Len = %d, want 1", app.Registry.Len())
	}
}
