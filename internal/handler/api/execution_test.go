package api

import (
	"encoding/csv"
	"net/http"
	"strings"
	"testing"

	"MacroGate/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluationEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.doJSON(http.MethodGet, "/api/evaluation?instrument=eurusd", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ev models.Evaluation
	decode(t, rec, &ev)
	assert.Equal(t, "EURUSD", ev.Instrument)
	assert.Equal(t, models.Narrative{Pressure: "Low", Frequency: "Normal"}, ev.Narrative)
	assert.NotEmpty(t, ev.Verdict.Label)
	assert.Equal(t, "private, max-age=15", rec.Header().Get("Cache-Control"))
}

func TestVerdictAndBiasViews(t *testing.T) {
	f := newFixture(t)

	rec := f.doJSON(http.MethodGet, "/api/verdict?pressure=High", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var v verdictView
	decode(t, rec, &v)
	assert.Equal(t, "EURUSD", v.Instrument)
	assert.GreaterOrEqual(t, v.Verdict.Score, 0)
	assert.LessOrEqual(t, v.Verdict.Score, 100)

	rec = f.doJSON(http.MethodGet, "/api/bias", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var b models.DirectionalBias
	decode(t, rec, &b)
	assert.NotEmpty(t, b.Direction)

	rec = f.doJSON(http.MethodGet, "/api/regimes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var r regimesView
	decode(t, rec, &r)
	assert.NotEmpty(t, r.Metrics)
}

func TestEvaluationRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	rec := f.doJSON(http.MethodGet, "/api/evaluation?pressure=Extreme", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.doJSON(http.MethodGet, "/api/evaluation?at=yesterday-ish", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"at"`)

	rec = f.doJSON(http.MethodGet, "/api/evaluation?instrument=GBPUSD", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.doJSON(http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var s sessionView
	decode(t, rec, &s)
	assert.Equal(t, "America/New_York", s.Timezone)
	assert.Equal(t, "2024-03-05 10:00:00", s.Time)
	assert.NotEmpty(t, s.Phase)
}

func TestAuditLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.doJSON(http.MethodPost, "/api/audit/snapshot", `{"instrument":"EURUSD"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var snap models.SnapshotRecord
	decode(t, rec, &snap)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "EURUSD", snap.Instrument)

	// Manual snapshots are never deduplicated.
	rec = f.doJSON(http.MethodPost, "/api/audit/snapshot", `{"instrument":"EURUSD"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, f.audit.Len())

	rec = f.doJSON(http.MethodGet, "/api/audit?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows  []models.SnapshotRecord `json:"rows"`
		Total int64                   `json:"total"`
	}
	decode(t, rec, &list)
	assert.Len(t, list.Rows, 1)
	assert.EqualValues(t, 2, list.Total)

	rec = f.doJSON(http.MethodGet, "/api/audit/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "execution_audit_20240305_1500.csv")
	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.CSVHeader, rows[0])

	rec = f.doJSON(http.MethodDelete, "/api/audit", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, f.audit.Len())
}

func TestAuditListValidatesLimit(t *testing.T) {
	f := newFixture(t)
	rec := f.doJSON(http.MethodGet, "/api/audit?limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
