// Package outbox — transactional outbox: событие пишется в таблицу outbox
// в той же транзакции MySQL, что и изменение заказа, а OutboxWorker
// затем доставляет его в Kafka (at-least-once).
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/shipforward/pkg/kafka"
	"example.com/shipforward/pkg/logger"
)

// Outbox — одна запись очереди на отправку.
type Outbox struct {
	ID            string
	AggregateType string // order | payment
	AggregateID   string
	EventType     string // order.confirmed, payment.reconciliation_required, ...
	Topic         string
	MessageKey    string
	Payload       []byte
	Headers       map[string]string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	RetryCount    int
	LastError     *string
}

// NewRecord сериализует payload и сразу проставляет headers трассировки из ctx:
// worker отправляет запись позже, уже без контекста исходного запроса.
func NewRecord(ctx context.Context, aggregateType, aggregateID, eventType, topic string, payload any) (*Outbox, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации события %s: %w", eventType, err)
	}

	headers := map[string]string{kafka.HeaderEventType: eventType}
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		headers[kafka.HeaderTraceID] = traceID
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		headers[kafka.HeaderCorrelationID] = correlationID
	}

	return &Outbox{
		ID:            uuid.New().String(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         topic,
		MessageKey:    aggregateID,
		Payload:       data,
		Headers:       headers,
	}, nil
}

func (o *Outbox) message() *kafka.Message {
	headers := make(map[string]string, len(o.Headers))
	for k, v := range o.Headers {
		headers[k] = v
	}
	return &kafka.Message{
		Topic:   o.Topic,
		Key:     []byte(o.MessageKey),
		Value:   o.Payload,
		Headers: headers,
	}
}
