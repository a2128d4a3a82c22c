package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultMemoryAuditEntries = 10000

// MemoryAuditLog keeps the most recent audit entries in process. It backs
// the history endpoint when MongoDB is disabled.
type MemoryAuditLog struct {
	mu         sync.RWMutex
	logs       []*AuditLog
	maxEntries int
}

func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{maxEntries: defaultMemoryAuditEntries}
}

func (m *MemoryAuditLog) CreateAuditLog(_ context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	if len(m.logs) > m.maxEntries {
		m.logs = m.logs[len(m.logs)-m.maxEntries:]
	}
	return nil
}

func (m *MemoryAuditLog) GetAuditLogs(_ context.Context, entityType, entityID string, limit int64) ([]*AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*AuditLog, 0)
	for _, l := range m.logs {
		if l.EntityType == entityType && l.EntityID == entityID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
