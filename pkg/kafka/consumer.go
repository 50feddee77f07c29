package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	applogger "MacroGate/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// PermanentError marks a handler failure that retrying cannot fix
// (malformed payload). The message goes straight to the DLQ.
func PermanentError(err error) error {
	return backoff.Permanent(err)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer wraps Kafka readers with a worker pool. Every (topic, partition)
// is pinned to one worker queue, so messages of a partition are handled and
// committed in offset order.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *applogger.Logger
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	queues   []chan kafka.Message
	dlq      messageWriter
	metrics  *consumerMetrics
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "macrogate",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    1 << 20,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := newConsumer(cfg)
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

func newConsumer(cfg *ConsumerConfig) *Consumer {
	l := cfg.Logger
	if l == nil {
		l = applogger.Nop()
	}
	workers := cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	queues := make([]chan kafka.Message, workers)
	for i := range queues {
		queues[i] = make(chan kafka.Message, cfg.BufferSize)
	}
	return &Consumer{
		cfg:      cfg,
		log:      l.Component("kafka_consumer"),
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		stopChan: make(chan struct{}),
		queues:   queues,
		metrics:  newConsumerMetrics(cfg.Registerer),
	}
}

// RegisterHandler registers a message handler for its topic. Must be
// called before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start starts the Kafka readers and workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
	}

	c.startWorkers()
	for topic, reader := range c.readers {
		c.wg.Add(1)
		go c.consumeMessages(topic, reader)
	}

	c.log.Info("kafka consumer started",
		applogger.Int("workers", len(c.queues)),
		applogger.String("group", c.cfg.GroupID))
	return nil
}

// Stop stops the consumer gracefully.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error

	c.stopOnce.Do(func() {
		close(c.stopChan)
		stopErr = c.waitForWg(ctx)

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Warn("close reader", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("close dlq writer", applogger.Error(err))
			}
		}
		if stopErr == nil {
			c.log.Info("kafka consumer stopped")
		}
	})

	return stopErr
}

func (c *Consumer) waitForWg(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (c *Consumer) consumeMessages(topic string, reader *kafka.Reader) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := reader.FetchMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				c.log.Warn("fetch message", applogger.String("topic", topic), applogger.Error(err))
			}
			continue
		}

		if !c.dispatch(msg) {
			return
		}
	}
}

func (c *Consumer) startWorkers() {
	for _, q := range c.queues {
		c.wg.Add(1)
		go c.messageWorker(q)
	}
}

// dispatch queues msg on the worker owning its partition. It returns false
// once the consumer is stopping.
func (c *Consumer) dispatch(msg kafka.Message) bool {
	q := c.queues[c.shard(msg.Topic, msg.Partition)]
	select {
	case q <- msg:
		c.metrics.queue(msg.Topic, len(q))
		return true
	case <-c.stopChan:
		return false
	}
}

func (c *Consumer) shard(topic string, partition int) int {
	h := fnv.New32a()
	h.Write([]byte(topic))
	h.Write([]byte(strconv.Itoa(partition)))
	return int(h.Sum32() % uint32(len(c.queues)))
}

func (c *Consumer) messageWorker(q <-chan kafka.Message) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		case msg := <-q:
			if c.process(msg) {
				if reader := c.readers[msg.Topic]; reader != nil {
					c.commit(reader, msg)
				}
			}
		}
	}
}

// process runs the handler with retries and reports whether the offset
// may be committed: on success, or once the message was parked in the DLQ.
func (c *Consumer) process(msg kafka.Message) (commit bool) {
	handler, ok := c.handlers[msg.Topic]
	if !ok {
		return false
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic in message handler", applogger.String("topic", msg.Topic), applogger.Any("panic", r))
			c.metrics.result(msg.Topic, "panic")
			commit = c.toDLQ(msg, fmt.Errorf("panic: %v", r))
		}
	}()

	ctx, cancel := c.stopContext()
	defer cancel()

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return handler.Handle(ctx, msg.Value)
	}, backoff.WithContext(backoff.WithMaxRetries(c.backoff(), uint64(c.cfg.RetryMax)), ctx))
	c.metrics.latency(msg.Topic, time.Since(start))

	if err == nil {
		c.metrics.result(msg.Topic, "ok")
		return true
	}
	c.log.Warn("message handling failed",
		applogger.String("topic", msg.Topic),
		applogger.Int("attempts", attempts),
		applogger.Error(err))
	c.metrics.result(msg.Topic, "failed")
	return c.toDLQ(msg, err)
}

func (c *Consumer) toDLQ(msg kafka.Message, cause error) bool {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return false
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   msg.Key,
		Value: msg.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(msg.Topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.log.Error("write to dlq", applogger.String("dlq_topic", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	c.metrics.result(msg.Topic, "dlq")
	return true
}

func (c *Consumer) commit(reader *kafka.Reader, msg kafka.Message) {
	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return reader.CommitMessages(ctx, msg)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithMaxRetries(b, 2)); err != nil {
		c.log.Error("commit offset", applogger.String("topic", msg.Topic), applogger.Error(err))
	}
}

func (c *Consumer) backoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BackoffMin
	b.MaxInterval = c.cfg.BackoffMax
	b.MaxElapsedTime = 0
	return b
}

// stopContext is cancelled when the consumer stops.
func (c *Consumer) stopContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-c.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

type consumerMetrics struct {
	depth   *prometheus.GaugeVec
	handled *prometheus.CounterVec
	handle  *prometheus.HistogramVec
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &consumerMetrics{
		depth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "macrogate_kafka_consumer_queue_depth",
			Help: "Number of messages waiting in consumer queue",
		}, []string{"topic"}),
		handled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "macrogate_kafka_consumer_messages_total",
			Help: "Consumed messages by outcome",
		}, []string{"topic", "result"}),
		handle: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "macrogate_kafka_consumer_handle_seconds",
			Help: "Handling time per message including retries",
		}, []string{"topic"}),
	}
}

func (m *consumerMetrics) queue(topic string, n int) {
	if m != nil {
		m.depth.WithLabelValues(topic).Set(float64(n))
	}
}

func (m *consumerMetrics) result(topic, result string) {
	if m != nil {
		m.handled.WithLabelValues(topic, result).Inc()
	}
}

func (m *consumerMetrics) latency(topic string, d time.Duration) {
	if m != nil {
		m.handle.WithLabelValues(topic).Observe(d.Seconds())
	}
}
