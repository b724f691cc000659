// Package kafka — тонкие обёртки над segmentio/kafka-go:
// Producer для OutboxWorker и Consumer для обработчиков доменных событий.
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/shipforward/pkg/logger"
)

const (
	// TopicOrderEvents — жизненный цикл заказов (order.confirmed, order.rejected, ...).
	TopicOrderEvents = "forwarding.order-events"

	// TopicReconciliation — оплаченные, но не применённые платежи. Читается операторами.
	TopicReconciliation = "forwarding.reconciliation"

	// TopicDLQ — сообщения, которые consumer не смог обработать.
	TopicDLQ = "dlq.forwarding"
)

const (
	HeaderTraceID       = "trace_id"
	HeaderCorrelationID = "correlation_id"
	HeaderEventType     = "event_type"
	HeaderTimestamp     = "timestamp"
)

type Config struct {
	Brokers       []string
	ConsumerGroup string
}

// Message — сообщение Kafka без привязки к типам kafka-go.
type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Headers   map[string]string
	Time      time.Time
}

func fromKafkaMessage(m kafka.Message) *Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}

	return &Message{
		Key:       m.Key,
		Value:     m.Value,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Headers:   headers,
		Time:      m.Time,
	}
}

func (m *Message) toKafkaMessage() kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Topic:   m.Topic,
		Headers: headers,
		Time:    m.Time,
	}
}

// withContextHeaders дописывает trace_id, correlation_id и timestamp,
// не перетирая уже заданные значения.
func (m *Message) withContextHeaders(ctx context.Context) {
	if m.Headers == nil {
		m.Headers = make(map[string]string, 3)
	}
	if _, ok := m.Headers[HeaderTraceID]; !ok {
		if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
			m.Headers[HeaderTraceID] = traceID
		}
	}
	if _, ok := m.Headers[HeaderCorrelationID]; !ok {
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			m.Headers[HeaderCorrelationID] = correlationID
		}
	}
	if _, ok := m.Headers[HeaderTimestamp]; !ok {
		m.Headers[HeaderTimestamp] = time.Now().UTC().Format(time.RFC3339Nano)
	}
}

// contextFromMessage переносит идентификаторы трассировки из headers в context.
func contextFromMessage(ctx context.Context, msg *Message) context.Context {
	return logger.NewContextWithIDs(ctx, msg.Headers[HeaderTraceID], msg.Headers[HeaderCorrelationID])
}
