package repository

import (
	"context"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
)

// Publisher is the subset of pkg/kafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaAuditPublisher streams audit rows, keyed by instrument.
type KafkaAuditPublisher struct {
	producer Publisher
	topic    string
}

var _ domrepo.AuditLog = (*KafkaAuditPublisher)(nil)

func NewKafkaAuditPublisher(producer Publisher, topic string) *KafkaAuditPublisher {
	return &KafkaAuditPublisher{producer: producer, topic: topic}
}

func (p *KafkaAuditPublisher) RecordSnapshot(ctx context.Context, rec models.SnapshotRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.Instrument), rec)
}
