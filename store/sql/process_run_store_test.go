package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-processes/core"
	processmigrations "github.com/goliatone/go-processes/migrations"
	sqlstore "github.com/goliatone/go-processes/store/sql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-processes-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"process_runs",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "process_runs" {
		t.Fatalf("expected process_runs table, got %q", tableName)
	}
}

func TestProcessRunStore_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.ProcessRunStore()

	startedAt := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	result := core.NewPartialResult(3, 2, 3, "closure: 2 of 3 records processed", []string{"PATCH accounts(b): 404"})
	saved, err := store.Save(ctx, core.NewProcessRun(core.RunRecord{
		ProcessID:   3,
		ProcessName: "inactive-record-closure",
		Parameters:  core.ProcessParameter{CallerID: "user-1", TriggeredBy: "scheduler"},
		Result:      result,
		StartedAt:   startedAt,
		Duration:    2 * time.Second,
	}))
	if err != nil {
		t.Fatalf("save run: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected an id to be assigned")
	}

	got, err := store.GetRun(ctx, saved.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.ProcessID != 3 || got.Status != core.ProcessStatusPartialSuccess || got.TotalProcessed != 2 || got.TotalRecords != 3 {
		t.Fatalf("unexpected run %#v", got)
	}
	if len(got.Errors) != 1 || got.Errors[0] != "PATCH accounts(b): 404" {
		t.Fatalf("expected errors to round trip, got %v", got.Errors)
	}
	if got.CallerID != "user-1" || got.TriggeredBy != "scheduler" || got.DurationMS != 2000 {
		t.Fatalf("unexpected audit fields %#v", got)
	}
	if rebuilt := got.Result(); rebuilt.Status != result.Status || rebuilt.ResultMessage != result.ResultMessage {
		t.Fatalf("expected stored run to rebuild the result, got %#v", rebuilt)
	}

	if _, err := store.GetRun(ctx, "missing"); !core.IsRunNotFound(err) {
		t.Fatalf("expected run not found, got %v", err)
	}
	if _, err := store.GetRun(ctx, " "); !core.IsValidationFailed(err) {
		t.Fatalf("expected blank id to fail validation, got %v", err)
	}
}

func TestProcessRunStore_ListFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewProcessRunStore(client.DB())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	seed := []core.ProcessRun{
		{ProcessID: 1, ProcessName: "funding-calculation", Status: core.ProcessStatusSuccessful, CompletedAt: base.Add(1 * time.Hour)},
		{ProcessID: 1, ProcessName: "funding-calculation", Status: core.ProcessStatusFailed, CompletedAt: base.Add(2 * time.Hour), CallerID: "user-2"},
		{ProcessID: 2, ProcessName: "good-standing-verification", Status: core.ProcessStatusSuccessful, CompletedAt: base.Add(3 * time.Hour)},
		{ProcessID: 1, ProcessName: "funding-calculation", Status: core.ProcessStatusCompleted, CompletedAt: base.Add(4 * time.Hour)},
	}
	for _, run := range seed {
		if _, err := store.Save(ctx, run); err != nil {
			t.Fatalf("seed run: %v", err)
		}
	}

	page, err := store.ListRuns(ctx, core.ProcessRunFilter{ProcessID: 1, PerPage: 2})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || !page.HasNext {
		t.Fatalf("unexpected first page %#v", page)
	}
	if page.Items[0].Status != core.ProcessStatusCompleted {
		t.Fatalf("expected newest run first, got %s", page.Items[0].Status)
	}

	second, err := store.ListRuns(ctx, core.ProcessRunFilter{ProcessID: 1, Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Items) != 1 || second.HasNext {
		t.Fatalf("unexpected second page %#v", second)
	}

	failed, err := store.ListRuns(ctx, core.ProcessRunFilter{Status: core.ProcessStatusFailed, CallerID: "user-2"})
	if err != nil {
		t.Fatalf("list failed runs: %v", err)
	}
	if failed.Total != 1 || failed.Items[0].ProcessID != 1 {
		t.Fatalf("unexpected failed runs %#v", failed)
	}

	pruned, err := store.Prune(ctx, base.Add(150*time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 2 {
		t.Fatalf("expected two runs pruned, got %d", pruned)
	}
}

func TestProcessRunStore_RejectsInvalidRuns(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewProcessRunStore(client.DB())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Save(context.Background(), core.ProcessRun{Status: core.ProcessStatusFailed}); !core.IsValidationFailed(err) {
		t.Fatalf("expected missing process id to fail validation, got %v", err)
	}
	if _, err := store.Save(context.Background(), core.ProcessRun{ProcessID: 1}); !core.IsValidationFailed(err) {
		t.Fatalf("expected missing status to fail validation, got %v", err)
	}
}

func TestDispatcherRecordsRunsThroughStore(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewProcessRunStore(client.DB())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	dispatcher, err := core.NewDispatcher(core.DefaultConfig(),
		core.WithProcessProviders(fixedProcess{}),
		core.WithRunRecorder(store),
	)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if _, err := dispatcher.RunProcessByID(ctx, 9, core.ProcessParameter{CallerID: "user-9"}); err != nil {
		t.Fatalf("run process: %v", err)
	}

	page, err := store.ListRuns(ctx, core.ProcessRunFilter{ProcessID: 9})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if page.Total != 1 || page.Items[0].ProcessName != "fixed" || page.Items[0].CallerID != "user-9" {
		t.Fatalf("expected recorded run, got %#v", page)
	}
}

func TestOpenDB_SelectsDialect(t *testing.T) {
	db, err := sqlstore.OpenDB("sqlite", "file:open-db-test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = db.Close() }()
	if db.Dialect().Name() != dialect.SQLite {
		t.Fatalf("expected sqlite dialect, got %v", db.Dialect().Name())
	}
	factory, err := sqlstore.NewRepositoryFactoryFromDB(db)
	if err != nil {
		t.Fatalf("factory from db: %v", err)
	}
	if factory.DB() != db || factory.ProcessRunStore() == nil {
		t.Fatalf("expected factory to expose the db and the run store")
	}
	if _, err := sqlstore.OpenDB("oracle", "dsn"); err == nil {
		t.Fatalf("expected unsupported driver to fail")
	}
	if _, err := sqlstore.OpenDB("postgres", ""); err == nil {
		t.Fatalf("expected empty dsn to fail")
	}
}

type fixedProcess struct{}

func (fixedProcess) ID() int { return 9 }

func (fixedProcess) Name() string { return "fixed" }

func (fixedProcess) Run(context.Context, core.ProcessParameter) core.ProcessResult {
	return core.NewSuccessfulResult(9, 1, 1, "fixed: 1 record processed")
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:processes-test-%d?mode=memory&cache=shared",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = processmigrations.Register(ctx,
		processmigrations.ForDialect(processmigrations.DialectSQLite, func(fsys fs.FS) {
			client.RegisterSQLMigrations(fsys)
		}),
		processmigrations.WithDialects(processmigrations.DialectSQLite),
	)
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
