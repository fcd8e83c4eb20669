package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	processes "github.com/goliatone/go-processes"
	_ "github.com/mattn/go-sqlite3"
)

func TestSources_ReturnsPostgresAndSQLite(t *testing.T) {
	sources, err := Sources()
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	found := map[string]bool{}
	for _, source := range sources {
		matches, globErr := fs.Glob(source.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", source.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", source.Dialect)
		}
		found[source.Dialect] = true
	}
	if !found[DialectPostgres] || !found[DialectSQLite] {
		t.Fatalf("expected postgres and sqlite sources, got %v", found)
	}
}

func TestSources_RejectsRootWithoutMigrations(t *testing.T) {
	empty := fstest.MapFS{"README.md": &fstest.MapFile{Data: []byte("nothing")}}
	if _, err := Sources(empty); err == nil {
		t.Fatalf("expected missing migration tree to fail")
	}
}

func TestNormalizeDialect(t *testing.T) {
	cases := map[string]string{
		"sqlite3":    DialectSQLite,
		" SQLite ":   DialectSQLite,
		"pg":         DialectPostgres,
		"postgresql": DialectPostgres,
		"mysql":      "",
	}
	for input, want := range cases {
		if got := NormalizeDialect(input); got != want {
			t.Fatalf("NormalizeDialect(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestRegister_FiltersByDialect(t *testing.T) {
	var calls []string
	var labels []string
	plan, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		calls = append(calls, dialect)
		labels = append(labels, label)
		return nil
	}, WithDialects("sqlite3"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 1 || calls[0] != DialectSQLite {
		t.Fatalf("expected a single sqlite registration, got %v", calls)
	}
	if labels[0] != DefaultLabel || plan.Label != DefaultLabel {
		t.Fatalf("expected default label, got %q", labels[0])
	}
}

func TestRegister_WrapsRegisterErrors(t *testing.T) {
	boom := errors.New("runner unavailable")
	_, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		return boom
	}, WithLabel("ledger"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped register error, got %v", err)
	}
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected nil register function to fail")
	}
}

func TestRegister_UsesCustomSources(t *testing.T) {
	custom := fstest.MapFS{"00001_custom.up.sql": &fstest.MapFile{Data: []byte("SELECT 1;")}}
	var got fs.FS
	_, err := Register(context.Background(), func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		got = fsys
		return nil
	}, WithSources(Source{Dialect: "sqlite3", Path: "custom", FS: custom}), WithDialects(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := fs.ReadFile(got, "00001_custom.up.sql"); err != nil {
		t.Fatalf("expected custom source to be registered: %v", err)
	}
}

func TestForDialect_SkipsOtherDialects(t *testing.T) {
	var registered []fs.FS
	fn := ForDialect("sqlite3", func(fsys fs.FS) { registered = append(registered, fsys) })
	if _, err := Register(context.Background(), fn); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(registered) != 1 {
		t.Fatalf("expected only the sqlite source, got %d", len(registered))
	}
	if _, err := fs.ReadFile(registered[0], "00001_process_runs.up.sql"); err != nil {
		t.Fatalf("expected sqlite migration in registered source: %v", err)
	}
	if err := ForDialect(DialectSQLite, nil)(context.Background(), DialectSQLite, DefaultLabel, fstest.MapFS{}); err == nil {
		t.Fatalf("expected nil registrar to fail")
	}
}

func TestProcessRunsMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := processes.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_process_runs.up.sql",
		"data/sql/migrations/00001_process_runs.down.sql",
		"data/sql/migrations/sqlite/00001_process_runs.up.sql",
		"data/sql/migrations/sqlite/00001_process_runs.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteProcessRunsMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-process-runs?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	sqliteMigrations, err := fs.Sub(processes.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_process_runs.up.sql"); err != nil {
		t.Fatalf("apply up migration: %v", err)
	}

	insert := `INSERT INTO process_runs (id, process_id, process_name, status, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insert, "run-1", 1, "funding-calculation", "Successful", "2026-01-01T00:00:00Z", "2026-01-01T00:00:01Z"); err != nil {
		t.Fatalf("insert valid run: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "run-2", 1, "funding-calculation", "Exploded", "2026-01-01T00:00:00Z", "2026-01-01T00:00:01Z"); err == nil {
		t.Fatalf("expected status check constraint to reject unknown status")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_process_runs.down.sql"); err != nil {
		t.Fatalf("apply down migration: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'process_runs'",
	).Scan(&count); err != nil {
		t.Fatalf("inspect sqlite master: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected process_runs to be dropped")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
