package usecase

import (
	"context"
	"sync"
	"time"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"

	"github.com/google/uuid"
)

// SnapshotRecorder turns evaluations into audit rows. Automatic snapshots
// are written once per instrument per minute key. Writes are serialized.
type SnapshotRecorder struct {
	log domrepo.AuditLog
	loc *time.Location
	ids func() string

	mu   sync.Mutex
	last map[string]string
}

func NewSnapshotRecorder(log domrepo.AuditLog, loc *time.Location) *SnapshotRecorder {
	if loc == nil {
		loc = time.UTC
	}
	return &SnapshotRecorder{
		log:  log,
		loc:  loc,
		ids:  uuid.NewString,
		last: make(map[string]string),
	}
}

// Auto records ev unless a row for its minute was already written. The
// minute is claimed only after the audit log accepts the row, so a failed
// write is retried on the next evaluation in the same minute.
func (r *SnapshotRecorder) Auto(ctx context.Context, ev models.Evaluation) (models.SnapshotRecord, bool, error) {
	minute := ev.Timestamp.In(r.loc).Format(models.MinuteKeyLayout)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last[ev.Instrument] == minute {
		return models.SnapshotRecord{}, false, nil
	}
	rec, err := r.write(ctx, ev)
	if err != nil {
		return rec, true, err
	}
	r.last[ev.Instrument] = minute
	return rec, true, nil
}

// Force records ev regardless of the minute key.
func (r *SnapshotRecorder) Force(ctx context.Context, ev models.Evaluation) (models.SnapshotRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.write(ctx, ev)
	if err == nil {
		r.last[ev.Instrument] = ev.Timestamp.In(r.loc).Format(models.MinuteKeyLayout)
	}
	return rec, err
}

func (r *SnapshotRecorder) write(ctx context.Context, ev models.Evaluation) (models.SnapshotRecord, error) {
	ev.Timestamp = ev.Timestamp.In(r.loc)
	rec := models.NewSnapshotRecord(r.ids(), ev)
	return rec, r.log.RecordSnapshot(ctx, rec)
}
