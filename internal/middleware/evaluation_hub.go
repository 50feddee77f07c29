package middleware

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
	applogger "MacroGate/pkg/logger"
)

var ErrHubClosed = errors.New("evaluation hub closed")

// Subscriber receives encoded evaluations. C is closed when the subscriber
// is dropped or the hub closes.
type Subscriber struct {
	ch   chan []byte
	once sync.Once
}

func (s *Subscriber) C() <-chan []byte { return s.ch }

func (s *Subscriber) close() { s.once.Do(func() { close(s.ch) }) }

// EvaluationHub sits between the scheduler and streaming clients. It
// validates and throttles evaluations per instrument, encodes each one once
// and fans it out to bounded per-client buffers. A client whose buffer is
// full is dropped instead of blocking the others.
type EvaluationHub struct {
	metrics     domrepo.Metrics
	l           *applogger.Logger
	bufSize     int
	minInterval time.Duration
	now         func() time.Time

	mu       sync.Mutex
	subs     map[*Subscriber]struct{}
	lastSent map[string]time.Time
	closed   bool
}

var _ domrepo.EvaluationPublisher = (*EvaluationHub)(nil)

type HubOption func(*EvaluationHub)

// WithClientBuffer sets the per-client queue length.
func WithClientBuffer(n int) HubOption {
	return func(h *EvaluationHub) {
		if n > 0 {
			h.bufSize = n
		}
	}
}

// WithMinInterval throttles broadcasts per instrument.
func WithMinInterval(d time.Duration) HubOption {
	return func(h *EvaluationHub) {
		h.minInterval = d
	}
}

func NewEvaluationHub(metrics domrepo.Metrics, l *applogger.Logger, opts ...HubOption) *EvaluationHub {
	if l == nil {
		l = applogger.Nop()
	}
	h := &EvaluationHub{
		metrics:  metrics,
		l:        l.Component("evaluation_hub"),
		bufSize:  16,
		now:      time.Now,
		subs:     make(map[*Subscriber]struct{}),
		lastSent: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new client.
func (h *EvaluationHub) Subscribe() (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	s := &Subscriber{ch: make(chan []byte, h.bufSize)}
	h.subs[s] = struct{}{}
	return s, nil
}

func (h *EvaluationHub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		s.close()
	}
}

// Len is the number of connected subscribers.
func (h *EvaluationHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast never blocks.
func (h *EvaluationHub) Broadcast(ev models.Evaluation) {
	if ev.Instrument == "" {
		h.recordError("stream_invalid")
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		h.recordError("stream_encode")
		h.l.Error("encode evaluation", applogger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || !h.allowLocked(ev.Instrument) {
		return
	}
	for s := range h.subs {
		select {
		case s.ch <- b:
		default:
			delete(h.subs, s)
			s.close()
			h.recordError("stream_slow_client")
			h.l.Warn("dropped slow stream client", applogger.Int("remaining", len(h.subs)))
		}
	}
}

// Close disconnects every subscriber.
func (h *EvaluationHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		s.close()
	}
	h.subs = map[*Subscriber]struct{}{}
}

func (h *EvaluationHub) allowLocked(instrument string) bool {
	if h.minInterval <= 0 {
		return true
	}
	now := h.now()
	if last, ok := h.lastSent[instrument]; ok && now.Sub(last) < h.minInterval {
		return false
	}
	h.lastSent[instrument] = now
	return true
}

func (h *EvaluationHub) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}
