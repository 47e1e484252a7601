package repository

import (
	"context"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	pkgkafka "FinFuse/pkg/kafka"
)

// KafkaBarPublisher implements BarPublisher for Kafka.
type KafkaBarPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaBarPublisher creates a Kafka bar publisher.
func NewKafkaBarPublisher(producer *pkgkafka.Producer, topic string) domrepo.BarPublisher {
	return &KafkaBarPublisher{producer: producer, topic: topic}
}

// PublishBatch groups rows by instrument and publishes one message per
// group, keyed by instrument so partitioning keeps a symbol's rows ordered.
func (p *KafkaBarPublisher) PublishBatch(ctx context.Context, rows []models.RawPriceRow) error {
	if len(rows) == 0 {
		return nil
	}
	groups := make(map[string][]models.RawPriceRow)
	order := make([]string, 0, 4)
	for _, row := range rows {
		if _, ok := groups[row.Instrument]; !ok {
			order = append(order, row.Instrument)
		}
		groups[row.Instrument] = append(groups[row.Instrument], row)
	}
	msgs := make([]pkgkafka.Message, 0, len(order))
	for _, instrument := range order {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(instrument),
			Value: groups[instrument],
		})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaBarPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
