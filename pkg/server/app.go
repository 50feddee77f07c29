package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MacroGate/internal/middleware"
	"MacroGate/internal/usecase"
	pkgcache "MacroGate/pkg/cache"
	pkgch "MacroGate/pkg/clickhouse"
	"MacroGate/pkg/config"
	xhttp "MacroGate/pkg/http"
	pkgkafka "MacroGate/pkg/kafka"
	applogger "MacroGate/pkg/logger"
)

// Sweeper drops expired entries from a process-local cache.
type Sweeper interface {
	Sweep() int
}

// Infra groups the optional infrastructure clients. Any of them may be nil
// when the configuration does not enable it.
type Infra struct {
	Producer   *pkgkafka.Producer
	Consumer   *pkgkafka.Consumer
	ClickHouse *pkgch.Client
	Redis      *pkgcache.RedisCache
	KV         pkgcache.Service
	Sweeper    Sweeper
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	l         *applogger.Logger
	server    *xhttp.Server
	scheduler *usecase.Scheduler
	feed      pkgkafka.MessageHandler
	hub       *middleware.EvaluationHub
	infra     Infra
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	server *xhttp.Server,
	scheduler *usecase.Scheduler,
	feed *usecase.CalendarFeedHandler,
	hub *middleware.EvaluationHub,
	infra Infra,
) *App {
	a := &App{
		cfg:       cfg,
		l:         l.Component("app"),
		server:    server,
		scheduler: scheduler,
		hub:       hub,
		infra:     infra,
	}
	if feed != nil {
		a.feed = feed
	}
	return a
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts down when ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.server.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.scheduler.Run(runCtx)
	}()

	if a.infra.Consumer != nil && a.feed != nil {
		a.infra.Consumer.RegisterHandler(a.feed)
		if err := a.infra.Consumer.Start(); err != nil {
			a.l.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.l.Info("kafka consumer started", applogger.String("topic", a.feed.Topic()))
		}
	}

	if a.infra.Sweeper != nil {
		go a.sweep(runCtx, a.cfg.Cache.TTL)
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	cancel()
	<-done
	return a.shutdown()
}

func (a *App) sweep(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.infra.Sweeper.Sweep(); n > 0 {
				a.l.Debug("series cache swept", applogger.Int("expired", n))
			}
		}
	}
}

// shutdown stops HTTP first so no request touches a closed backend.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	a.hub.Close()

	if c := a.infra.Consumer; c != nil {
		if err := c.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if p := a.infra.Producer; p != nil {
		if err := p.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if ch := a.infra.ClickHouse; ch != nil {
		if err := ch.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if c, ok := a.infra.KV.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if r := a.infra.Redis; r != nil && a.infra.KV != pkgcache.Service(r) {
		if err := r.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
