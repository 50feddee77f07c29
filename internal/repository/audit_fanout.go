package repository

import (
	"context"
	"errors"
	"fmt"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
)

// NamedAuditLog tags a backend for error reporting and metrics.
type NamedAuditLog struct {
	Name string
	Log  domrepo.AuditLog
}

// FanoutAuditLog writes to every backend in order. A failing backend does
// not stop the others; the errors are joined.
type FanoutAuditLog struct {
	backends []NamedAuditLog
	metrics  domrepo.Metrics
}

var _ domrepo.AuditLog = (*FanoutAuditLog)(nil)

func NewFanoutAuditLog(metrics domrepo.Metrics, backends ...NamedAuditLog) *FanoutAuditLog {
	return &FanoutAuditLog{backends: backends, metrics: metrics}
}

func (f *FanoutAuditLog) RecordSnapshot(ctx context.Context, rec models.SnapshotRecord) error {
	var errs []error
	for _, b := range f.backends {
		if err := b.Log.RecordSnapshot(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
			if f.metrics != nil {
				f.metrics.RecordError("audit_" + b.Name)
			}
			continue
		}
		if f.metrics != nil {
			f.metrics.RecordSnapshot(b.Name)
		}
	}
	return errors.Join(errs...)
}

// Backends lists the configured backend names.
func (f *FanoutAuditLog) Backends() []string {
	out := make([]string, len(f.backends))
	for i, b := range f.backends {
		out[i] = b.Name
	}
	return out
}
