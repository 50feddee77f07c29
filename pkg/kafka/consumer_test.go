package kafka

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	topic string
	calls int
	errs  []error
	panic bool
}

func (h *stubHandler) Topic() string { return h.topic }

func (h *stubHandler) Handle(_ context.Context, _ []byte) error {
	h.calls++
	if h.panic {
		panic("boom")
	}
	if len(h.errs) == 0 {
		return nil
	}
	err := h.errs[0]
	h.errs = h.errs[1:]
	return err
}

type stubWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *stubWriter) Close() error { return nil }

func testConsumer(reg prometheus.Registerer, dlq string) *Consumer {
	return newConsumer(&ConsumerConfig{
		BufferSize: 1,
		RetryMax:   2,
		BackoffMin: time.Millisecond,
		BackoffMax: 2 * time.Millisecond,
		DLQTopic:   dlq,
		Registerer: reg,
	})
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer()
	require.Error(t, err)
}

func TestProcessRetriesThenSucceeds(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := testConsumer(reg, "")
	h := &stubHandler{topic: "calendar", errs: []error{errors.New("flaky")}}
	c.RegisterHandler(h)

	assert.True(t, c.process(kafka.Message{Topic: "calendar", Value: []byte("{}")}))
	assert.Equal(t, 2, h.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.handled.WithLabelValues("calendar", "ok")))
}

func TestProcessExhaustedGoesToDLQ(t *testing.T) {
	c := testConsumer(nil, "calendar.dlq")
	w := &stubWriter{}
	c.dlq = w
	fail := errors.New("down")
	h := &stubHandler{topic: "calendar", errs: []error{fail, fail, fail, fail}}
	c.RegisterHandler(h)

	assert.True(t, c.process(kafka.Message{Topic: "calendar", Key: []byte("k"), Value: []byte("x")}))
	assert.Equal(t, 3, h.calls)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "calendar.dlq", w.msgs[0].Topic)
	assert.Equal(t, []byte("x"), w.msgs[0].Value)
	assert.Equal(t, "source_topic", w.msgs[0].Headers[0].Key)
}

func TestProcessPermanentErrorSkipsRetries(t *testing.T) {
	c := testConsumer(nil, "")
	h := &stubHandler{topic: "calendar", errs: []error{PermanentError(errors.New("bad json"))}}
	c.RegisterHandler(h)

	assert.False(t, c.process(kafka.Message{Topic: "calendar"}))
	assert.Equal(t, 1, h.calls)
}

func TestProcessRecoversPanic(t *testing.T) {
	c := testConsumer(nil, "calendar.dlq")
	w := &stubWriter{}
	c.dlq = w
	c.RegisterHandler(&stubHandler{topic: "calendar", panic: true})

	require.NotPanics(t, func() {
		assert.True(t, c.process(kafka.Message{Topic: "calendar"}))
	})
	assert.Len(t, w.msgs, 1)
}

func TestProcessUnknownTopic(t *testing.T) {
	c := testConsumer(nil, "")
	assert.False(t, c.process(kafka.Message{Topic: "nope"}))
}

func TestRegisterHandlerIgnoresDuplicate(t *testing.T) {
	c := testConsumer(nil, "")
	first := &stubHandler{topic: "calendar"}
	c.RegisterHandler(first)
	c.RegisterHandler(&stubHandler{topic: "calendar"})
	assert.Same(t, first, c.handlers["calendar"])
}

func TestShardIsStablePerPartition(t *testing.T) {
	c := newConsumer(&ConsumerConfig{WorkerCount: 4, BufferSize: 1})
	assert.Equal(t, c.shard("calendar", 3), c.shard("calendar", 3))
	for p := 0; p < 16; p++ {
		s := c.shard("calendar", p)
		assert.True(t, s >= 0 && s < 4)
	}
}

type offsetRecorder struct {
	mu      sync.Mutex
	offsets []int64
}

func (r *offsetRecorder) Topic() string { return "calendar" }

func (r *offsetRecorder) Handle(_ context.Context, b []byte) error {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.offsets = append(r.offsets, n)
	r.mu.Unlock()
	return nil
}

func (r *offsetRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.offsets)
}

func TestWorkersKeepPartitionOrder(t *testing.T) {
	c := newConsumer(&ConsumerConfig{WorkerCount: 4, BufferSize: 8, RetryMax: 1, BackoffMin: time.Millisecond, BackoffMax: time.Millisecond})
	rec := &offsetRecorder{}
	c.RegisterHandler(rec)
	c.startWorkers()

	const total = 2000
	for i := 0; i < total; i++ {
		require.True(t, c.dispatch(kafka.Message{Topic: "calendar", Partition: 0, Offset: int64(i), Value: []byte(strconv.Itoa(i))}))
	}
	require.Eventually(t, func() bool { return rec.len() == total }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	for i, off := range rec.offsets {
		require.Equal(t, int64(i), off)
	}
}

func TestDispatchAfterStop(t *testing.T) {
	c := newConsumer(&ConsumerConfig{WorkerCount: 1})
	require.NoError(t, c.Stop(context.Background()))
	assert.False(t, c.dispatch(kafka.Message{Topic: "calendar"}))
}
