// Package migrations registers the embedded run ledger schema with a
// migration runner, one source per SQL dialect.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	processes "github.com/goliatone/go-processes"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultLabel = "go-processes"

	migrationsDir = "data/sql/migrations"
)

// Source is the migration set for one dialect.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// Plan describes what Register handed to the runner.
type Plan struct {
	Label    string
	Dialects []string
	Sources  []Source
}

type RegisterFunc func(ctx context.Context, dialect string, label string, fsys fs.FS) error

type Option func(*Plan)

func WithLabel(label string) Option {
	return func(p *Plan) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			p.Label = trimmed
		}
	}
}

// WithDialects limits registration to the given dialects. Driver names such
// as "sqlite3" or "pg" are accepted.
func WithDialects(dialects ...string) Option {
	return func(p *Plan) {
		next := make([]string, 0, len(dialects))
		for _, dialect := range dialects {
			if normalized := NormalizeDialect(dialect); normalized != "" && !slices.Contains(next, normalized) {
				next = append(next, normalized)
			}
		}
		if len(next) > 0 {
			p.Dialects = next
		}
	}
}

func WithSources(sources ...Source) Option {
	return func(p *Plan) {
		next := make([]Source, 0, len(sources))
		for _, source := range sources {
			dialect := NormalizeDialect(source.Dialect)
			if dialect == "" || source.FS == nil {
				continue
			}
			next = append(next, Source{Dialect: dialect, Path: source.Path, FS: source.FS})
		}
		if len(next) > 0 {
			p.Sources = next
		}
	}
}

// NormalizeDialect maps database driver names onto the dialects that ship
// migrations. Unknown names map to "".
func NormalizeDialect(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg", "pgx":
		return DialectPostgres
	case "sqlite", "sqlite3":
		return DialectSQLite
	default:
		return ""
	}
}

// Sources resolves the per-dialect migration trees from root, defaulting to
// the module's embedded filesystem. Every dialect must carry at least one
// *.up.sql file.
func Sources(root ...fs.FS) ([]Source, error) {
	base := processes.GetMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		base = root[0]
	}
	postgresFS, err := fs.Sub(base, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", migrationsDir, err)
	}
	sqliteFS, err := fs.Sub(postgresFS, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite migrations: %w", err)
	}
	sources := []Source{
		{Dialect: DialectPostgres, Path: migrationsDir, FS: postgresFS},
		{Dialect: DialectSQLite, Path: migrationsDir + "/" + DialectSQLite, FS: sqliteFS},
	}
	for _, source := range sources {
		matches, globErr := fs.Glob(source.FS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, globErr)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s has no *.up.sql files", source.Path)
		}
	}
	return sources, nil
}

// Register hands each selected dialect source to fn.
func Register(ctx context.Context, fn RegisterFunc, opts ...Option) (Plan, error) {
	plan := Plan{
		Label:    DefaultLabel,
		Dialects: []string{DialectPostgres, DialectSQLite},
	}
	if fn == nil {
		return plan, fmt.Errorf("migrations: register function is required")
	}
	sources, err := Sources()
	if err != nil {
		return plan, err
	}
	plan.Sources = sources
	for _, opt := range opts {
		if opt != nil {
			opt(&plan)
		}
	}

	for _, source := range plan.Sources {
		if !slices.Contains(plan.Dialects, source.Dialect) {
			continue
		}
		if err := fn(ctx, source.Dialect, plan.Label, source.FS); err != nil {
			return plan, fmt.Errorf("migrations: register %s from %s: %w", source.Dialect, source.Path, err)
		}
	}
	return plan, nil
}

// ForDialect adapts a single-dialect registrar, such as a persistence
// client's RegisterSQLMigrations, into a RegisterFunc that ignores every
// other dialect.
func ForDialect(dialect string, register func(fsys fs.FS)) RegisterFunc {
	want := NormalizeDialect(dialect)
	return func(_ context.Context, got string, _ string, fsys fs.FS) error {
		if register == nil {
			return fmt.Errorf("migrations: registrar for %s is nil", dialect)
		}
		if got != want {
			return nil
		}
		register(fsys)
		return nil
	}
}
