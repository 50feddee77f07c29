package usecase

import (
	"context"
	"time"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
	applogger "MacroGate/pkg/logger"
)

// Scheduler evaluates every instrument on a fixed interval, snapshots the
// result and pushes it to live subscribers.
type Scheduler struct {
	evaluator *Evaluator
	recorder  *SnapshotRecorder
	publisher domrepo.EvaluationPublisher
	narrative models.Narrative
	interval  time.Duration
	autoAudit bool
	l         *applogger.Logger
}

func NewScheduler(ev *Evaluator, rec *SnapshotRecorder, pub domrepo.EvaluationPublisher, n models.Narrative, interval time.Duration, autoAudit bool, l *applogger.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Scheduler{
		evaluator: ev,
		recorder:  rec,
		publisher: pub,
		narrative: n,
		interval:  interval,
		autoAudit: autoAudit,
		l:         l.Component("scheduler"),
	}
}

// Run ticks until ctx is cancelled. The first tick runs immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	s.l.Info("scheduler started", applogger.Duration("interval_ms", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.l.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one cycle.
func (s *Scheduler) Tick(ctx context.Context) {
	evs, err := s.evaluator.EvaluateAll(ctx, s.narrative)
	if err != nil {
		s.l.Error("scheduled evaluation failed", applogger.Error(err))
		return
	}
	for _, ev := range evs {
		if s.autoAudit && s.recorder != nil {
			if _, _, err := s.recorder.Auto(ctx, ev); err != nil {
				s.l.Warn("auto snapshot failed", applogger.String("instrument", ev.Instrument), applogger.Error(err))
			}
		}
		if s.publisher != nil {
			s.publisher.Broadcast(ev)
		}
	}
}
