package server

import (
	"context"
	"testing"
	"time"

	"MacroGate/internal/domain/models"
	"MacroGate/internal/middleware"
	"MacroGate/internal/repository"
	"MacroGate/internal/services/execution"
	"MacroGate/internal/usecase"
	"MacroGate/pkg/config"
	xhttp "MacroGate/pkg/http"
	applogger "MacroGate/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flatSource struct{}

func (flatSource) FetchSeries(context.Context, string) ([]models.Bar, error) {
	now := time.Now()
	bars := make([]models.Bar, 12)
	for i := range bars {
		bars[i] = models.Bar{Time: now.Add(-time.Duration(12-i) * 5 * time.Minute), Open: 1, High: 1.01, Low: 0.99, Close: 1}
	}
	return bars, nil
}

func (flatSource) FetchLastPrice(context.Context, string) (float64, error) { return 1, nil }

type countingSweeper struct{ n chan struct{} }

func (s *countingSweeper) Sweep() int {
	select {
	case s.n <- struct{}{}:
	default:
	}
	return 0
}

func TestAppRunsUntilCancelled(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Cache.TTL = 10 * time.Millisecond

	engine, err := execution.NewEngine(cfg.Engine.Policy)
	require.NoError(t, err)
	l := applogger.Nop()
	calendar := repository.NewCalendarStore()
	audit := repository.NewMemoryAuditLog(10)
	drivers := usecase.DriverSpecs{DXY: cfg.Drivers.DXY, US10Y: cfg.Drivers.US10Y, VIX: cfg.Drivers.VIX}
	evaluator := usecase.NewEvaluator(engine, flatSource{}, calendar, drivers, cfg.Instruments, nil, nil, l)
	recorder := usecase.NewSnapshotRecorder(audit, engine.Location())
	hub := middleware.NewEvaluationHub(nil, l)
	scheduler := usecase.NewScheduler(evaluator, recorder, hub, cfg.Engine.Narrative(), time.Hour, true, l)
	srv := xhttp.NewServer(nil, xhttp.WithHost(cfg.Server.Host), xhttp.WithPort(0), xhttp.WithLogger(l))

	sub, err := hub.Subscribe()
	require.NoError(t, err)
	sweeper := &countingSweeper{n: make(chan struct{}, 1)}

	app := New(cfg, l, srv, scheduler, nil, hub, Infra{Sweeper: sweeper})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.RunContext(ctx) }()

	select {
	case msg := <-sub.C():
		assert.Contains(t, string(msg), `"instrument":"EURUSD"`)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not broadcast")
	}
	select {
	case <-sweeper.n:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper never ran")
	}

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, len(cfg.Instruments), audit.Len())
	_, err = hub.Subscribe()
	assert.ErrorIs(t, err, middleware.ErrHubClosed)
}
