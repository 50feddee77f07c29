package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MacroGate/internal/domain/models"
	"MacroGate/internal/middleware"
	"MacroGate/internal/repository"
	"MacroGate/internal/services/execution"
	"MacroGate/internal/usecase"
	pkgcache "MacroGate/pkg/cache"
	xhttp "MacroGate/pkg/http"
	applogger "MacroGate/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// 10:00 New York.
var t0 = time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type barSource struct{}

func (barSource) FetchSeries(_ context.Context, _ string) ([]models.Bar, error) {
	bars := make([]models.Bar, 30)
	for i := range bars {
		p := 100 + float64(i)*0.01
		bars[i] = models.Bar{
			Time:  t0.Add(-time.Duration(len(bars)-i) * 5 * time.Minute),
			Open:  p,
			High:  p + 0.05,
			Low:   p - 0.05,
			Close: p + 0.01,
		}
	}
	return bars, nil
}

func (barSource) FetchLastPrice(context.Context, string) (float64, error) { return 100.3, nil }

type fixture struct {
	server   *xhttp.Server
	audit    *repository.MemoryAuditLog
	calendar *repository.CalendarStore
	presets  *repository.PresetStore
	hub      *middleware.EvaluationHub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine, err := execution.NewEngine(execution.DefaultPolicy())
	require.NoError(t, err)

	clock := fixedClock{t: t0}
	drivers := usecase.DriverSpecs{
		DXY:   models.InstrumentSpec{ID: "DXY", Tickers: []string{"DX-Y.NYB"}, FallbackPrice: 104.2},
		US10Y: models.InstrumentSpec{ID: "US10Y", Tickers: []string{"^TNX"}, FallbackPrice: 4.25},
		VIX:   models.InstrumentSpec{ID: "VIX", Tickers: []string{"^VIX"}, FallbackPrice: 14.5},
	}
	instruments := []models.InstrumentSpec{
		{ID: "EURUSD", Kind: models.KindInverseDollar, Tickers: []string{"EURUSD=X"}, FallbackPrice: 1.08},
	}

	kv := pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0))
	t.Cleanup(func() { _ = kv.Close() })

	f := &fixture{
		audit:    repository.NewMemoryAuditLog(10),
		calendar: repository.NewCalendarStore(),
		presets:  repository.NewPresetStore(kv),
		hub:      middleware.NewEvaluationHub(nil, applogger.Nop()),
	}
	l := applogger.Nop()
	evaluator := usecase.NewEvaluator(engine, barSource{}, f.calendar, drivers, instruments, nil, clock, l)
	recorder := usecase.NewSnapshotRecorder(f.audit, engine.Location())
	calendarUC := usecase.NewCalendarUseCase(f.calendar, f.presets, engine.Location(), clock, l)

	f.server = xhttp.NewServer(xhttp.Handlers{
		NewExecutionHandler(l, evaluator, recorder, f.audit, models.Narrative{Pressure: "Low", Frequency: "Normal"}, clock),
		NewCalendarHandler(l, calendarUC),
		NewStreamHandler(l, f.hub, []string{"*"}, time.Second),
	}, xhttp.WithLogger(l))
	return f
}

func (f *fixture) do(method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	f.server.Echo().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) doJSON(method, target, body string) *httptest.ResponseRecorder {
	ct := ""
	if body != "" {
		ct = echo.MIMEApplicationJSON
	}
	return f.do(method, target, ct, body)
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) int {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if dest != nil {
		require.NoError(t, json.Unmarshal(env.Data, dest))
	}
	return env.Status
}
