package cli

import (
	"context"
	"fmt"
	"log"

	"gradekey/internal/adapters/memory"
	"gradekey/internal/adapters/postgres"
	"gradekey/internal/adapters/sqlstore"
	"gradekey/internal/audit"
	"gradekey/internal/config"
	"gradekey/internal/grading"
	"gradekey/internal/ports"
	"gradekey/internal/services/corrections"
	"gradekey/internal/services/keys"
)

// backend bundles the repositories of one storage backend.
type backend struct {
	exams       ports.ExamRepository
	corrections ports.CorrectionRepository
	audit       ports.AuditLog
	jobs        ports.JobRepository

	// migrate is nil for backends without a schema.
	migrate func(ctx context.Context, targetVersion int64) error
	close   func()
}

func openBackend(ctx context.Context, c config.Config) (*backend, error) {
	switch c.DBBackend {
	case config.BackendMemory:
		store := memory.New()
		return &backend{
			exams:       store.Exams,
			corrections: store.Corrections,
			audit:       audit.NewMemoryLog(),
			jobs:        store.Jobs,
			close:       func() {},
		}, nil
	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db connect error: %w", err)
		}
		return &backend{
			exams:       db.Exams(),
			corrections: db.Corrections(),
			audit:       db.AuditLog(),
			jobs:        db.Jobs(),
			migrate:     db.Migrate,
			close:       db.Close,
		}, nil
	case config.BackendSQLite, config.BackendMySQL:
		s, err := sqlstore.Open(ctx, c.DBBackend, c.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &backend{
			exams:       s.Exams,
			corrections: s.Corrections,
			audit:       s.AuditLog,
			jobs:        s.Jobs,
			migrate:     s.Migrate,
			close: func() {
				if err := s.Close(); err != nil {
					log.Printf("close %s store: %v", c.DBBackend, err)
				}
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", c.DBBackend)
	}
}

// newServices builds the key engine and the correction service around one
// resolver so both apply the configured overflow policy.
func newServices(be *backend, c config.Config) (*keys.Engine, *corrections.Service) {
	resolver := grading.NewResolver(grading.WithOverflowPolicy(grading.OverflowPolicy(c.OverflowPolicy)))
	engine := keys.New(be.audit, keys.WithResolver(resolver))
	svc := corrections.New(be.exams, be.corrections, corrections.WithResolver(resolver))
	return engine, svc
}
