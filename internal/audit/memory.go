// Package audit holds the in-process AuditLog used by tests and the memory backend.
package audit

import (
	"context"
	"sync"

	"gradekey/internal/domain"
	"gradekey/internal/ports"
)

var _ ports.AuditLog = &MemoryLog{}

// MemoryLog keeps change records per key id. Records handed in or out are
// deep-copied so callers cannot rewrite history.
type MemoryLog struct {
	mu      sync.RWMutex
	records map[string][]domain.ChangeRecord
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{records: map[string][]domain.ChangeRecord{}}
}

func (l *MemoryLog) Append(_ context.Context, keyID string, rec domain.ChangeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[keyID] = append(l.records[keyID], copyRecord(rec))
	return nil
}

func (l *MemoryLog) History(_ context.Context, keyID string) ([]domain.ChangeRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.records[keyID]
	out := make([]domain.ChangeRecord, len(src))
	for i, r := range src {
		out[i] = copyRecord(r)
	}
	return out, nil
}

func copyRecord(r domain.ChangeRecord) domain.ChangeRecord {
	r.PreviousKey = r.PreviousKey.Clone()
	r.NewKey = r.NewKey.Clone()
	if r.Reason != nil {
		v := *r.Reason
		r.Reason = &v
	}
	if r.ChangedBy != nil {
		v := *r.ChangedBy
		r.ChangedBy = &v
	}
	return r
}
