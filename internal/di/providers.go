package di

import (
	"context"
	"fmt"
	"time"

	domrepo "MacroGate/internal/domain/repository"
	"MacroGate/internal/handler/api"
	"MacroGate/internal/middleware"
	"MacroGate/internal/repository"
	icache "MacroGate/internal/service/cache"
	"MacroGate/internal/service/marketdata"
	"MacroGate/internal/services/execution"
	"MacroGate/internal/usecase"
	pkgcache "MacroGate/pkg/cache"
	pkgch "MacroGate/pkg/clickhouse"
	"MacroGate/pkg/config"
	xhttp "MacroGate/pkg/http"
	pkgkafka "MacroGate/pkg/kafka"
	applogger "MacroGate/pkg/logger"
	"MacroGate/pkg/metrics"
	"MacroGate/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideLogger builds the root logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideRegistry returns the registry served at /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.NewWithRegistry(reg)
}

func ProvideEngine(cfg *config.Config) (*execution.Engine, error) {
	return execution.NewEngine(cfg.Engine.Policy)
}

// ProvideClickHouseClient connects only when an audit or bar backend needs it.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	if !cfg.Audit.Has("clickhouse") && cfg.MarketData.Source != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecution),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	stmts := []string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}
	if cfg.Audit.Has("clickhouse") {
		stmts = append(stmts, repository.AuditSchema(qualified(cfg, cfg.Audit.Table))...)
	}
	if cfg.MarketData.Source == "clickhouse" {
		stmts = append(stmts, repository.BarsSchema(qualified(cfg, cfg.MarketData.BarsTable))...)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("database", cfg.ClickHouse.Database))
	return client, nil
}

func qualified(cfg *config.Config, table string) string {
	return cfg.ClickHouse.Database + "." + table
}

// ProvideRedisCache connects when the cache backend is redis or layered.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if cfg.Cache.Backend == "memory" {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideKV is the key-value store behind presets and, for the redis and
// layered backends, the series cache.
func ProvideKV(cfg *config.Config, rc *pkgcache.RedisCache) pkgcache.Service {
	switch cfg.Cache.Backend {
	case "redis":
		return rc
	case "layered":
		return pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredMemory(cfg.Cache.MaxSize, cfg.Cache.TTL))
	default:
		return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Cache.MaxSize))
	}
}

// ProvideTTLCache is only used with the memory backend.
func ProvideTTLCache(cfg *config.Config) *icache.TTLCache {
	if cfg.Cache.Backend != "memory" {
		return nil
	}
	return icache.NewTTLCache()
}

// ProvideSeriesSource picks the upstream and wraps it in the bucketed cache.
func ProvideSeriesSource(
	cfg *config.Config,
	ch *pkgch.Client,
	kv pkgcache.Service,
	ttl *icache.TTLCache,
	l *applogger.Logger,
) (domrepo.SeriesSource, error) {
	var upstream domrepo.SeriesSource
	switch cfg.MarketData.Source {
	case "clickhouse":
		src := repository.NewCHSeriesSource(ch.DB(), qualified(cfg, cfg.MarketData.BarsTable),
			domrepo.NormalizeInterval(cfg.MarketData.Interval), cfg.MarketData.Lookback)
		src.SetLogger(l)
		upstream = src
	default:
		md := cfg.MarketData
		client, err := marketdata.NewClient(
			marketdata.WithBaseURL(md.BaseURL),
			marketdata.WithChartWindow(md.Range, md.Interval),
			marketdata.WithRateLimit(md.Rate, md.Burst),
			marketdata.WithRetry(md.Retry.InitialInterval, md.Retry.MaxInterval, md.Retry.MaxElapsed),
			marketdata.WithBreaker(md.Breaker.MaxRequests, md.Breaker.Interval, md.Breaker.Timeout, md.Breaker.FailureThreshold),
			marketdata.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(md.Timeout), xhttp.WithUserAgent(md.UserAgent))),
			marketdata.WithChartReuse(md.ChartReuse),
			marketdata.WithLogger(l),
		)
		if err != nil {
			return nil, fmt.Errorf("market data client: %w", err)
		}
		upstream = client
	}

	var bc icache.BytesCache = icache.NewServiceBytes(kv)
	if ttl != nil {
		bc = ttl
	}
	return icache.NewCachedSeriesSource(upstream, bc, cfg.Cache.Bucket, cfg.Cache.TTL, l), nil
}

func ProvideCalendarStore() *repository.CalendarStore {
	return repository.NewCalendarStore()
}

func ProvidePresetStore(kv pkgcache.Service) *repository.PresetStore {
	return repository.NewPresetStore(kv)
}

func ProvideMemoryAudit(cfg *config.Config) *repository.MemoryAuditLog {
	return repository.NewMemoryAuditLog(cfg.Audit.Capacity)
}

// ProvideKafkaProducer creates a producer when Kafka audit is enabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Audit.Has("kafka") {
		return nil, nil
	}
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(p.Compression),
		pkgkafka.WithRequiredAcks(p.RequiredAcks),
		pkgkafka.WithMaxAttempts(p.MaxAttempts),
		pkgkafka.WithBatching(p.BatchSize, p.Linger),
		pkgkafka.WithWriteTimeout(p.WriteTimeout),
		pkgkafka.WithAsync(p.Async),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAuditLog fans snapshots out to the configured backends, memory
// always first so the API can read them back.
func ProvideAuditLog(
	cfg *config.Config,
	mem *repository.MemoryAuditLog,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	m *metrics.Recorder,
) domrepo.AuditLog {
	backends := []repository.NamedAuditLog{{Name: "memory", Log: mem}}
	if cfg.Audit.Has("clickhouse") && ch != nil {
		backends = append(backends, repository.NamedAuditLog{
			Name: "clickhouse",
			Log:  repository.NewCHAuditLog(ch.DB(), qualified(cfg, cfg.Audit.Table)),
		})
	}
	if cfg.Audit.Has("kafka") && producer != nil {
		backends = append(backends, repository.NamedAuditLog{
			Name: "kafka",
			Log:  repository.NewKafkaAuditPublisher(producer, cfg.Kafka.AuditTopic),
		})
	}
	return repository.NewFanoutAuditLog(m, backends...)
}

func ProvideEvaluator(
	cfg *config.Config,
	engine *execution.Engine,
	source domrepo.SeriesSource,
	calendar *repository.CalendarStore,
	m *metrics.Recorder,
	l *applogger.Logger,
) *usecase.Evaluator {
	drivers := usecase.DriverSpecs{DXY: cfg.Drivers.DXY, US10Y: cfg.Drivers.US10Y, VIX: cfg.Drivers.VIX}
	return usecase.NewEvaluator(engine, source, calendar, drivers, cfg.Instruments, m, domrepo.SystemClock{}, l)
}

func ProvideSnapshotRecorder(audit domrepo.AuditLog, engine *execution.Engine) *usecase.SnapshotRecorder {
	return usecase.NewSnapshotRecorder(audit, engine.Location())
}

func ProvideEvaluationHub(cfg *config.Config, m *metrics.Recorder, l *applogger.Logger) *middleware.EvaluationHub {
	return middleware.NewEvaluationHub(m, l,
		middleware.WithClientBuffer(cfg.Stream.ClientBuffer),
		middleware.WithMinInterval(cfg.Stream.MinInterval),
	)
}

func ProvideScheduler(
	cfg *config.Config,
	ev *usecase.Evaluator,
	rec *usecase.SnapshotRecorder,
	hub *middleware.EvaluationHub,
	l *applogger.Logger,
) *usecase.Scheduler {
	return usecase.NewScheduler(ev, rec, hub, cfg.Engine.Narrative(), cfg.Engine.Interval, !cfg.Audit.ManualOnly, l)
}

func ProvideCalendarUseCase(
	calendar *repository.CalendarStore,
	presets *repository.PresetStore,
	engine *execution.Engine,
	l *applogger.Logger,
) *usecase.CalendarUseCase {
	return usecase.NewCalendarUseCase(calendar, presets, engine.Location(), domrepo.SystemClock{}, l)
}

// ProvideKafkaConsumer creates the calendar feed consumer when enabled.
func ProvideKafkaConsumer(cfg *config.Config, reg *prometheus.Registry, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	c := cfg.Kafka.Consumer
	if !c.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideCalendarFeedHandler(
	cfg *config.Config,
	uc *usecase.CalendarUseCase,
	calendar *repository.CalendarStore,
	m *metrics.Recorder,
	l *applogger.Logger,
) *usecase.CalendarFeedHandler {
	if !cfg.Kafka.Consumer.Enabled {
		return nil
	}
	return usecase.NewCalendarFeedHandler(cfg.Kafka.CalendarTopic, uc, calendar, m, l)
}

func ProvideHandlers(
	cfg *config.Config,
	l *applogger.Logger,
	ev *usecase.Evaluator,
	rec *usecase.SnapshotRecorder,
	mem *repository.MemoryAuditLog,
	calendar *usecase.CalendarUseCase,
	hub *middleware.EvaluationHub,
	ch *pkgch.Client,
	rc *pkgcache.RedisCache,
) xhttp.Handlers {
	checks := map[string]api.HealthCheck{}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error { return rc.Client().Ping(ctx).Err() }
	}
	return xhttp.Handlers{
		api.NewReadinessHandler(checks),
		api.NewExecutionHandler(l, ev, rec, mem, cfg.Engine.Narrative(), domrepo.SystemClock{}),
		api.NewCalendarHandler(l, calendar),
		api.NewStreamHandler(l, hub, cfg.Server.AllowOrigins, cfg.Stream.PingInterval),
	}
}

func ProvideHTTPServer(
	cfg *config.Config,
	handlers xhttp.Handlers,
	reg *prometheus.Registry,
	m *metrics.Recorder,
	l *applogger.Logger,
) *xhttp.Server {
	return xhttp.NewServer(handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.AllowOrigins...),
		xhttp.WithLogger(l),
		xhttp.WithMetrics(m, reg, cfg.Metrics.SlowThreshold),
	)
}

func ProvideInfra(
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	ch *pkgch.Client,
	rc *pkgcache.RedisCache,
	kv pkgcache.Service,
	ttl *icache.TTLCache,
) server.Infra {
	infra := server.Infra{Producer: producer, Consumer: consumer, ClickHouse: ch, Redis: rc, KV: kv}
	if ttl != nil {
		infra.Sweeper = ttl
	}
	return infra
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	scheduler *usecase.Scheduler,
	feed *usecase.CalendarFeedHandler,
	hub *middleware.EvaluationHub,
	infra server.Infra,
) *server.App {
	return server.New(cfg, l, srv, scheduler, feed, hub, infra)
}
