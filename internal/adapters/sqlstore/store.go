// Package sqlstore persists exams, corrections, grading key history and
// regrade jobs through database/sql. SQLite (modernc) and MySQL are supported;
// Postgres has its own pgx-based adapter.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"gradekey/internal/ports"
)

var (
	_ ports.ExamRepository       = &Exams{}
	_ ports.CorrectionRepository = &Corrections{}
	_ ports.AuditLog             = &AuditLog{}
	_ ports.JobRepository        = &Jobs{}
)

const (
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// Store bundles one connection with the repository for each port.
type Store struct {
	DB      *sql.DB
	Backend string

	Exams       *Exams
	Corrections *Corrections
	AuditLog    *AuditLog
	Jobs        *Jobs
}

// Open connects to backend and verifies the connection. It does not migrate.
func Open(ctx context.Context, backend, dsn string) (*Store, error) {
	var db *sql.DB
	var err error

	switch backend {
	case BackendSQLite:
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		// SQLite allows one writer; a single connection also keeps ":memory:"
		// databases alive across queries.
		db.SetMaxOpenConns(1)

	case BackendMySQL:
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL database: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		DB:          db,
		Backend:     backend,
		Exams:       &Exams{db: db},
		Corrections: &Corrections{db: db, dup: duplicateKey(backend)},
		AuditLog:    &AuditLog{db: db},
		Jobs:        &Jobs{db: db},
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// duplicateKey returns a predicate recognising unique-constraint violations
// of the given backend.
func duplicateKey(backend string) func(error) bool {
	if backend == BackendMySQL {
		return func(err error) bool {
			var me *mysql.MySQLError
			return errors.As(err, &me) && me.Number == 1062
		}
	}
	return func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return false
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
