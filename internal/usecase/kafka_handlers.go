package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"FinFuse/internal/domain/models"
	applogger "FinFuse/pkg/logger"
)

// KafkaBarsHandler feeds price batches from a Kafka topic into the
// ingestor. Malformed payloads and row-level rejects are terminal (the
// consumer routes the message to the DLQ instead of retrying); storage
// unavailability is returned as-is so the consumer's retry/backoff path
// redelivers the batch.
type KafkaBarsHandler struct {
	topic    string
	ingestor *PriceIngestor
	l        *applogger.Logger
}

func NewKafkaBarsHandler(topic string, ingestor *PriceIngestor, l *applogger.Logger) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, ingestor: ingestor, l: l}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

func (h *KafkaBarsHandler) Handle(ctx context.Context, payload []byte) error {
	var rows []models.RawPriceRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		return fmt.Errorf("decode bars payload: %w", err)
	}
	report, err := h.ingestor.Ingest(ctx, rows)
	if errors.Is(err, models.ErrStorageUnavailable) {
		return err
	}
	if err != nil {
		return fmt.Errorf("ingest bars: %w", err)
	}
	if report.Rejected > 0 && h.l != nil {
		h.l.Warn("kafka bars partially rejected",
			applogger.String("topic", h.topic),
			applogger.Int("rejected", report.Rejected),
		)
	}
	return nil
}

// KafkaNewsHandler feeds article batches from a Kafka topic into the news
// ingestor. Annotator unavailability is returned for redelivery, the same
// way storage failures are.
type KafkaNewsHandler struct {
	topic    string
	ingestor *NewsIngestor
	l        *applogger.Logger
}

func NewKafkaNewsHandler(topic string, ingestor *NewsIngestor, l *applogger.Logger) *KafkaNewsHandler {
	return &KafkaNewsHandler{topic: topic, ingestor: ingestor, l: l}
}

func (h *KafkaNewsHandler) Topic() string { return h.topic }

func (h *KafkaNewsHandler) Handle(ctx context.Context, payload []byte) error {
	var items []models.RawNewsItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return fmt.Errorf("decode news payload: %w", err)
	}
	report, err := h.ingestor.Ingest(ctx, items)
	if errors.Is(err, models.ErrStorageUnavailable) || errors.Is(err, models.ErrAnnotatorUnavailable) {
		return err
	}
	if err != nil {
		return fmt.Errorf("ingest news: %w", err)
	}
	if report.Rejected > 0 && h.l != nil {
		h.l.Warn("kafka news partially rejected",
			applogger.String("topic", h.topic),
			applogger.Int("rejected", report.Rejected),
		)
	}
	return nil
}
