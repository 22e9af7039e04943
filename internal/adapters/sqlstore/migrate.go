package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations for the store's backend.
//   - If targetVersion < 0, it migrates to the latest version.
//   - If targetVersion == 0, it rolls back all migrations.
//   - If targetVersion > 0, it migrates up or down to that version.
func (s *Store) Migrate(ctx context.Context, targetVersion int64) error {
	var dialect goose.Dialect
	switch s.Backend {
	case BackendSQLite:
		dialect = goose.DialectSQLite3
	case BackendMySQL:
		dialect = goose.DialectMySQL
	default:
		return fmt.Errorf("unsupported backend: %s", s.Backend)
	}

	fsys, err := fs.Sub(migrationsFS, "migrations/"+s.Backend)
	if err != nil {
		return fmt.Errorf("failed to access migrations directory: %w", err)
	}
	p, err := goose.NewProvider(dialect, s.DB, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case targetVersion < 0:
		results, err = p.Up(ctx)
	case targetVersion >= current:
		results, err = p.UpTo(ctx, targetVersion)
	default:
		results, err = p.DownTo(ctx, targetVersion)
	}
	if err != nil {
		return fmt.Errorf("failed to migrate from version %d: %w", current, err)
	}
	if len(results) == 0 {
		log.Printf("%s schema already at version %d", s.Backend, current)
		return nil
	}
	for _, r := range results {
		log.Printf("%s migration %s applied in %s", s.Backend, r.Source.Path, r.Duration)
	}
	return nil
}
