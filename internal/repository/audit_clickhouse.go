package repository

import (
	"context"
	"database/sql"
	"fmt"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
)

// CHAuditLog appends audit rows to a ClickHouse MergeTree table.
type CHAuditLog struct {
	db    *sql.DB
	table string
}

var _ domrepo.AuditLog = (*CHAuditLog)(nil)

func NewCHAuditLog(db *sql.DB, table string) *CHAuditLog {
	return &CHAuditLog{db: db, table: table}
}

// AuditSchema returns the DDL for the audit table.
func AuditSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id            UUID,
            ts            DateTime64(3, 'UTC'),
            instrument    LowCardinality(String),
            session_phase LowCardinality(String),
            verdict       LowCardinality(String),
            fakeout       LowCardinality(String),
            event_risk    LowCardinality(String),
            next_event    String,
            exec_score    UInt8,
            clarity       LowCardinality(String),
            whipsaw       LowCardinality(String),
            breakout      LowCardinality(String),
            data_quality  LowCardinality(String),
            direction     LowCardinality(String),
            confidence    UInt8,
            dxy           Float64,
            dxy_state     LowCardinality(String),
            us10y         Float64,
            us10y_state   LowCardinality(String),
            vix           Float64,
            vix_state     LowCardinality(String)
        ) ENGINE = MergeTree
        ORDER BY (instrument, ts)`, table)}
}

func (s *CHAuditLog) RecordSnapshot(ctx context.Context, r models.SnapshotRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, ts, instrument, session_phase, verdict, fakeout, event_risk, next_event,
        exec_score, clarity, whipsaw, breakout, data_quality, direction, confidence,
        dxy, dxy_state, us10y, us10y_state, vix, vix_state)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err := s.db.ExecContext(ctx, q,
		r.ID, r.Timestamp.UTC(), r.Instrument, string(r.SessionPhase), string(r.Verdict),
		string(r.Fakeout), string(r.EventRisk), r.NextEvent,
		uint8(r.ExecScore), string(r.Clarity), string(r.Whipsaw), string(r.Breakout),
		string(r.DataQuality), string(r.Direction), uint8(r.Confidence),
		r.DXY, string(r.DXYState), r.US10Y, string(r.US10YState), r.VIX, string(r.VIXState),
	)
	if err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}
