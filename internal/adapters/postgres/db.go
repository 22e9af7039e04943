// Package postgres implements the repositories and the regrade queue on
// PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"gradekey/internal/ports"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, url string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() { db.Pool.Close() }

// Migrate applies the embedded schema migrations. A negative targetVersion
// migrates to the latest version; otherwise the schema moves up or down to it.
func (db *DB) Migrate(ctx context.Context, targetVersion int64) error {
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer func() { _ = sqlDB.Close() }()

	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to access migrations directory: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
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
	for _, r := range results {
		log.Printf("postgres migration %s applied in %s", r.Source.Path, r.Duration)
	}
	return nil
}

// Exams, Corrections, AuditLog and Jobs expose the pool through one type
// per port, since the ports share method names.
func (db *DB) Exams() *Exams             { return &Exams{db: db} }
func (db *DB) Corrections() *Corrections { return &Corrections{db: db} }
func (db *DB) AuditLog() *AuditLog       { return &AuditLog{db: db} }
func (db *DB) Jobs() *Jobs               { return &Jobs{db: db} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var (
	_ ports.ExamRepository       = &Exams{}
	_ ports.CorrectionRepository = &Corrections{}
	_ ports.AuditLog             = &AuditLog{}
	_ ports.JobRepository        = &Jobs{}
)
