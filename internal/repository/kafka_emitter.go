package repository

import (
	"context"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	pkgkafka "PlanSentry/pkg/kafka"
)

// KafkaEmitter publishes execution events keyed by symbol so that events for
// one symbol stay ordered within a partition.
type KafkaEmitter struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.ExecutionEmitter = (*KafkaEmitter)(nil)

func NewKafkaEmitter(producer *pkgkafka.Producer, topic string) *KafkaEmitter {
	return &KafkaEmitter{producer: producer, topic: topic}
}

func (e *KafkaEmitter) Emit(ctx context.Context, ev models.ExecutionEvent) error {
	return e.producer.Publish(ctx, e.topic, []byte(ev.Symbol), ev)
}

func (e *KafkaEmitter) Close() error {
	if e.producer != nil {
		return e.producer.Close()
	}
	return nil
}
