package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
	pkghttp "MacroGate/pkg/http"
	pkgkafka "MacroGate/pkg/kafka"
	applogger "MacroGate/pkg/logger"
)

// CalendarFeedMessage is the payload on the calendar topic.
type CalendarFeedMessage struct {
	Events  []models.CalendarEventInput `json:"events" validate:"dive"`
	Replace bool                        `json:"replace"`
}

// CalendarFeedHandler applies calendar updates published to Kafka.
type CalendarFeedHandler struct {
	topic    string
	calendar *CalendarUseCase
	store    domrepo.CalendarStore
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

var _ pkgkafka.MessageHandler = (*CalendarFeedHandler)(nil)

func NewCalendarFeedHandler(topic string, calendar *CalendarUseCase, store domrepo.CalendarStore, metrics domrepo.Metrics, l *applogger.Logger) *CalendarFeedHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &CalendarFeedHandler{topic: topic, calendar: calendar, store: store, metrics: metrics, l: l.Component("calendar_feed")}
}

func (h *CalendarFeedHandler) Topic() string { return h.topic }

// Handle never retries bad payloads; they are marked permanent.
func (h *CalendarFeedHandler) Handle(ctx context.Context, b []byte) error {
	var m CalendarFeedMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.fail("calendar_feed_unmarshal")
		return pkgkafka.PermanentError(fmt.Errorf("decode calendar message: %w", err))
	}
	if errs := pkghttp.ValidateStruct(ctx, &m); len(errs) > 0 {
		h.fail("calendar_feed_validate")
		return pkgkafka.PermanentError(fmt.Errorf("invalid calendar message: %s %s", errs[0].Field, errs[0].Message))
	}
	events, err := h.calendar.ConvertInputs(m.Events)
	if err != nil {
		h.fail("calendar_feed_validate")
		return pkgkafka.PermanentError(err)
	}

	if m.Replace {
		h.store.Replace(events)
	} else {
		h.store.Add(events...)
	}
	h.l.Info("calendar feed applied",
		applogger.Int("events", len(events)),
		applogger.Bool("replace", m.Replace))
	return nil
}

func (h *CalendarFeedHandler) fail(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}
