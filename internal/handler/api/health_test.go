package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgch "MacroGate/pkg/clickhouse"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadinessReportsEachBackend(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	ch := pkgch.NewClientFromDB(db)

	h := NewReadinessHandler(map[string]HealthCheck{
		"clickhouse": ch.Health,
		"redis":      func(context.Context) error { return errors.New("dial tcp: connection refused") },
	})
	e := echo.New()
	h.RegisterRoutes(e)

	mock.ExpectPing()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var rows []readiness
	decode(t, rec, &rows)
	require.Len(t, rows, 2)
	assert.Equal(t, readiness{Name: "clickhouse", Status: "ok"}, rows[0])
	assert.Equal(t, "down", rows[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadinessWithNoBackends(t *testing.T) {
	e := echo.New()
	NewReadinessHandler(nil).RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
