package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"MacroGate/internal/domain/models"
	"MacroGate/internal/services/execution"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string                  `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Server      ServerConfig            `yaml:"server"`
	Metrics     MetricsConfig           `yaml:"metrics"`
	Log         LogConfig               `yaml:"log"`
	Engine      EngineConfig            `yaml:"engine"`
	Drivers     DriversConfig           `yaml:"drivers"`
	Instruments []models.InstrumentSpec `yaml:"instruments" validate:"dive"`
	MarketData  MarketDataConfig        `yaml:"marketdata"`
	Cache       CacheConfig             `yaml:"cache"`
	Audit       AuditConfig             `yaml:"audit"`
	Kafka       KafkaConfig             `yaml:"kafka"`
	ClickHouse  ClickHouseConfig        `yaml:"clickhouse"`
	Redis       RedisConfig             `yaml:"redis"`
	Stream      StreamConfig            `yaml:"stream"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	AllowOrigins    []string      `yaml:"allow_origins"`
}

type MetricsConfig struct {
	SlowThreshold time.Duration `yaml:"slow_threshold" default:"1s"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

// EngineConfig embeds the decision policy next to scheduling knobs.
type EngineConfig struct {
	execution.Policy `yaml:",inline"`

	Interval  time.Duration `yaml:"interval" default:"60s" validate:"gte=1s"`
	Pressure  string        `yaml:"pressure" default:"Low" validate:"oneof=Low Moderate High"`
	Frequency string        `yaml:"frequency" default:"Normal" validate:"oneof=Normal Elevated"`
}

// Narrative is the default narrative for scheduled evaluations.
func (e EngineConfig) Narrative() models.Narrative {
	return models.Narrative{
		Pressure:  models.NarrativePressure(e.Pressure),
		Frequency: models.HeadlineFrequency(e.Frequency),
	}
}

type DriversConfig struct {
	DXY   models.InstrumentSpec `yaml:"dxy"`
	US10Y models.InstrumentSpec `yaml:"us10y"`
	VIX   models.InstrumentSpec `yaml:"vix"`
}

type MarketDataConfig struct {
	Source    string        `yaml:"source" default:"yahoo" validate:"oneof=yahoo clickhouse"`
	BaseURL   string        `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"required,url"`
	Range     string        `yaml:"range" default:"5d"`
	Interval  string        `yaml:"interval" default:"5m"`
	Timeout   time.Duration `yaml:"timeout" default:"10s"`
	UserAgent string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; MacroGate/1.0)"`
	Rate      float64       `yaml:"rate_per_second" default:"2" validate:"gt=0"`
	Burst     int           `yaml:"burst" default:"4" validate:"gte=1"`
	Retry     RetryConfig   `yaml:"retry"`
	Breaker   BreakerConfig `yaml:"breaker"`
	BarsTable string        `yaml:"bars_table" default:"market_bars"`
	Lookback  time.Duration `yaml:"lookback" default:"120h"`
	// ChartReuse lets FetchSeries and FetchLastPrice share one chart response.
	ChartReuse time.Duration `yaml:"chart_reuse" default:"15s"`
}

type RetryConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval" default:"300ms"`
	MaxInterval     time.Duration `yaml:"max_interval" default:"3s"`
	MaxElapsed      time.Duration `yaml:"max_elapsed" default:"10s"`
}

type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" default:"1"`
	Interval         time.Duration `yaml:"interval" default:"60s"`
	Timeout          time.Duration `yaml:"timeout" default:"30s"`
	FailureThreshold uint32        `yaml:"failure_threshold" default:"5"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
	TTL     time.Duration `yaml:"ttl" default:"60s"`
	Bucket  time.Duration `yaml:"bucket" default:"60s" validate:"gte=1s"`
	MaxSize int           `yaml:"max_size" default:"1000"`
}

type AuditConfig struct {
	Backends   []string `yaml:"backends" validate:"dive,oneof=memory clickhouse kafka"`
	Capacity   int      `yaml:"capacity" default:"2000" validate:"gte=1"`
	Table      string   `yaml:"table" default:"execution_audit"`
	ManualOnly bool     `yaml:"manual_only"`
}

// Has reports whether backend is enabled.
func (a AuditConfig) Has(backend string) bool {
	for _, b := range a.Backends {
		if b == backend {
			return true
		}
	}
	return false
}

type KafkaConfig struct {
	Brokers       []string       `yaml:"brokers"`
	AuditTopic    string         `yaml:"audit_topic" default:"macrogate.audit"`
	CalendarTopic string         `yaml:"calendar_topic" default:"macrogate.calendar"`
	Producer      ProducerConfig `yaml:"producer"`
	Consumer      ConsumerConfig `yaml:"consumer"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type ProducerConfig struct {
	RequiredAcks int           `yaml:"required_acks" default:"-1"`
	Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	MaxAttempts  int           `yaml:"max_attempts" default:"5"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	Linger       time.Duration `yaml:"linger" default:"50ms"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	Async        bool          `yaml:"async"`
}

type ConsumerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	GroupID    string        `yaml:"group_id" default:"macrogate-calendar"`
	Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
	BufferSize int           `yaml:"buffer_size" default:"64"`
	RetryMax   int           `yaml:"retry_max" default:"3"`
	BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
	BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
	DLQTopic   string        `yaml:"dlq_topic" default:"macrogate.calendar.dlq"`
}

type ClickHouseConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" default:"9000"`
	Database     string        `yaml:"database" default:"macrogate"`
	User         string        `yaml:"user" default:"default"`
	Password     string        `yaml:"password"`
	UseHTTP      bool          `yaml:"use_http"`
	AsyncInsert  bool          `yaml:"async_insert"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecution time.Duration `yaml:"max_execution_time" default:"30s"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"macrogate"`
}

// StreamConfig tunes the websocket evaluation stream.
type StreamConfig struct {
	ClientBuffer int           `yaml:"client_buffer" default:"16" validate:"gte=1"`
	MinInterval  time.Duration `yaml:"min_interval" default:"1s"`
	PingInterval time.Duration `yaml:"ping_interval" default:"30s" validate:"gte=1s"`
}

// Default returns a config with every default applied.
func Default() *Config {
	c := &Config{}
	_ = c.applyDefaults()
	return c
}

// Load reads and parses a YAML configuration file. An empty path yields
// the defaults. Defaults are set before decoding, so a value written in
// the file wins even when it is zero.
func Load(path string) (*Config, error) {
	c := &Config{}
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		c.fillTables()
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads an optional .env file, then the YAML config, then
// applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("MACROGATE_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("MARKETDATA_BASE_URL"); v != "" {
		c.MarketData.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Engine.ApplyDefaults(); err != nil {
		return err
	}
	c.fillTables()
	return nil
}

// fillTables restores list-valued settings a file left empty.
func (c *Config) fillTables() {
	if len(c.Engine.Sessions) == 0 {
		c.Engine.Sessions = execution.DefaultSessions()
	}
	fillDriver(&c.Drivers.DXY, "DXY", 104.20, "DX-Y.NYB", "DX=F")
	fillDriver(&c.Drivers.US10Y, "US10Y", 4.25, "^TNX")
	fillDriver(&c.Drivers.VIX, "VIX", 14.50, "^VIX")
	if len(c.Instruments) == 0 {
		c.Instruments = DefaultInstruments()
	}
	if len(c.Audit.Backends) == 0 {
		c.Audit.Backends = []string{"memory"}
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{"*"}
	}
}

// DefaultInstruments are the two tradable instruments the engine knows.
func DefaultInstruments() []models.InstrumentSpec {
	return []models.InstrumentSpec{
		{ID: "EURUSD", Kind: models.KindInverseDollar, Tickers: []string{"EURUSD=X"}, FallbackPrice: 1.08},
		{ID: "XAUUSD", Kind: models.KindRateLed, Tickers: []string{"XAUUSD=X", "GC=F"}, FallbackPrice: 2000},
	}
}

func fillDriver(s *models.InstrumentSpec, id string, fallback float64, tickers ...string) {
	if s.ID == "" {
		s.ID = id
	}
	if len(s.Tickers) == 0 {
		s.Tickers = tickers
	}
	if s.FallbackPrice == 0 {
		s.FallbackPrice = fallback
	}
}

// Instrument looks up a tradable instrument by ID.
func (c *Config) Instrument(id string) (models.InstrumentSpec, bool) {
	for _, in := range c.Instruments {
		if strings.EqualFold(in.ID, id) {
			return in, true
		}
	}
	return models.InstrumentSpec{}, false
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}()

// Validate checks struct tags, the engine policy and cross-section rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Engine.Policy.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Instruments))
	for i, in := range c.Instruments {
		if in.Kind == "" {
			return fmt.Errorf("instruments[%d].kind is required", i)
		}
		if seen[in.ID] {
			return fmt.Errorf("instruments[%d]: duplicate id %q", i, in.ID)
		}
		seen[in.ID] = true
	}
	if (c.Audit.Has("kafka") || c.Kafka.Consumer.Enabled) && !c.Kafka.Enabled() {
		return fmt.Errorf("kafka.brokers is required when kafka audit or the calendar consumer is enabled")
	}
	if (c.Audit.Has("clickhouse") || c.MarketData.Source == "clickhouse") && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when a clickhouse backend is enabled")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
