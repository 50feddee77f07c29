package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
)

// DefaultAuditCapacity bounds the in-memory audit ring.
const DefaultAuditCapacity = 2000

// MemoryAuditLog keeps the newest rows in a ring buffer.
type MemoryAuditLog struct {
	mu    sync.RWMutex
	buf   []models.SnapshotRecord
	start int
	size  int
}

var (
	_ domrepo.AuditLog    = (*MemoryAuditLog)(nil)
	_ domrepo.AuditReader = (*MemoryAuditLog)(nil)
)

func NewMemoryAuditLog(capacity int) *MemoryAuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &MemoryAuditLog{buf: make([]models.SnapshotRecord, capacity)}
}

// RecordSnapshot appends rec, overwriting the oldest row when full.
func (m *MemoryAuditLog) RecordSnapshot(_ context.Context, rec models.SnapshotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := (m.start + m.size) % len(m.buf)
	m.buf[idx] = rec
	if m.size < len(m.buf) {
		m.size++
	} else {
		m.start = (m.start + 1) % len(m.buf)
	}
	return nil
}

// Recent returns up to limit rows, newest first. limit <= 0 returns all.
func (m *MemoryAuditLog) Recent(limit int) []models.SnapshotRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := m.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.SnapshotRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, m.at(m.size-1-i))
	}
	return out
}

func (m *MemoryAuditLog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// ExportCSV writes all rows oldest first.
func (m *MemoryAuditLog) ExportCSV(w io.Writer) error {
	m.mu.RLock()
	rows := make([]models.SnapshotRecord, 0, m.size)
	for i := 0; i < m.size; i++ {
		rows = append(rows, m.at(i))
	}
	m.mu.RUnlock()

	cw := csv.NewWriter(w)
	if err := cw.Write(models.CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.CSVRow()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (m *MemoryAuditLog) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.start, m.size = 0, 0
	clear(m.buf)
}

func (m *MemoryAuditLog) at(i int) models.SnapshotRecord {
	return m.buf[(m.start+i)%len(m.buf)]
}
