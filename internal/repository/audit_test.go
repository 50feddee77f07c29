package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"testing"

	"MacroGate/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(i int) models.SnapshotRecord {
	return models.SnapshotRecord{
		ID:         fmt.Sprintf("id-%d", i),
		Timestamp:  t0,
		TS:         t0.Format(models.SnapshotTimeLayout),
		Instrument: "EURUSD",
		Verdict:    models.VerdictProceed,
		ExecScore:  80 + i,
		DXY:        104.2,
	}
}

func TestMemoryAuditLogRing(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAuditLog(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.RecordSnapshot(ctx, record(i)))
	}

	assert.Equal(t, 3, m.Len())
	recent := m.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "id-4", recent[0].ID)
	assert.Equal(t, "id-3", recent[1].ID)
	assert.Len(t, m.Recent(0), 3)

	m.Clear()
	assert.Zero(t, m.Len())
	assert.Empty(t, m.Recent(10))
}

func TestMemoryAuditLogExportCSV(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAuditLog(0)
	require.NoError(t, m.RecordSnapshot(ctx, record(1)))
	require.NoError(t, m.RecordSnapshot(ctx, record(2)))

	var buf bytes.Buffer
	require.NoError(t, m.ExportCSV(&buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.CSVHeader, rows[0])
	assert.Equal(t, "id-1", rows[1][0])
	assert.Equal(t, "81", rows[1][8])
	assert.Equal(t, "104.2", rows[1][15])
}

func TestCHAuditLogInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := record(1)
	mock.ExpectExec(`INSERT INTO execution_audit`).
		WithArgs(rec.ID, rec.Timestamp, "EURUSD", sqlmock.AnyArg(), "PROCEED",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), uint8(81),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), uint8(0),
			104.2, sqlmock.AnyArg(), 0.0, sqlmock.AnyArg(), 0.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewCHAuditLog(db, "execution_audit").RecordSnapshot(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCHAuditLogInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO execution_audit`).WillReturnError(errors.New("readonly"))
	err = NewCHAuditLog(db, "execution_audit").RecordSnapshot(context.Background(), record(1))
	assert.ErrorContains(t, err, "readonly")
}

func TestAuditSchemaNamesTable(t *testing.T) {
	stmts := AuditSchema("audit_x")
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS audit_x")
	assert.Contains(t, stmts[0], "MergeTree")
}

type stubPublisher struct {
	topic string
	key   []byte
	value interface{}
	err   error
}

func (p *stubPublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func TestKafkaAuditPublisherKeysByInstrument(t *testing.T) {
	p := &stubPublisher{}
	rec := record(1)
	require.NoError(t, NewKafkaAuditPublisher(p, "macrogate.audit").RecordSnapshot(context.Background(), rec))
	assert.Equal(t, "macrogate.audit", p.topic)
	assert.Equal(t, []byte("EURUSD"), p.key)
	assert.Equal(t, rec, p.value)
}

type countingMetrics struct {
	snapshots map[string]int
	errors    map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{snapshots: map[string]int{}, errors: map[string]int{}}
}

func (m *countingMetrics) RecordEvaluation(string, string, int) {}
func (m *countingMetrics) RecordBias(string, string, int)       {}
func (m *countingMetrics) RecordDriver(string, float64)         {}
func (m *countingMetrics) RecordSnapshot(backend string)        { m.snapshots[backend]++ }
func (m *countingMetrics) RecordError(kind string)              { m.errors[kind]++ }
func (m *countingMetrics) RecordLatency(string, float64)        {}

func TestFanoutAuditLogContinuesPastFailures(t *testing.T) {
	mem := NewMemoryAuditLog(10)
	metrics := newCountingMetrics()
	f := NewFanoutAuditLog(metrics,
		NamedAuditLog{Name: "kafka", Log: NewKafkaAuditPublisher(&stubPublisher{err: errors.New("no leader")}, "t")},
		NamedAuditLog{Name: "memory", Log: mem},
	)

	err := f.RecordSnapshot(context.Background(), record(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka: no leader")
	assert.Equal(t, 1, mem.Len())
	assert.Equal(t, 1, metrics.snapshots["memory"])
	assert.Equal(t, 1, metrics.errors["audit_kafka"])
	assert.Equal(t, []string{"kafka", "memory"}, f.Backends())
}
