package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/shipforward/pkg/kafka"
	"example.com/shipforward/pkg/logger"
)

// =============================================================================
// Моки
// =============================================================================

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, o *Outbox) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockRepository) GetUnprocessed(ctx context.Context, limit int) ([]*Outbox, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Outbox), args.Error(1)
}

func (m *mockRepository) MarkProcessed(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepository) MarkFailed(ctx context.Context, id string, err error) error {
	return m.Called(ctx, id, err).Error(0)
}

func (m *mockRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) SendMessage(ctx context.Context, msg *kafka.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func confirmedRecord(id string) *Outbox {
	return &Outbox{
		ID:            id,
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order.confirmed",
		Topic:         kafka.TopicOrderEvents,
		MessageKey:    "order-1",
		Payload:       []byte(`{"order_id":"order-1"}`),
		Headers:       map[string]string{kafka.HeaderEventType: "order.confirmed"},
	}
}

// =============================================================================
// Тесты
// =============================================================================

func TestNewRecord(t *testing.T) {
	ctx := logger.NewContextWithIDs(context.Background(), "trace-1", "evt_1")

	rec, err := NewRecord(ctx, "order", "order-1", "order.paid", kafka.TopicOrderEvents, map[string]string{"order_id": "order-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "order-1", rec.MessageKey)
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(rec.Payload))
	assert.Equal(t, "order.paid", rec.Headers[kafka.HeaderEventType])
	assert.Equal(t, "trace-1", rec.Headers[kafka.HeaderTraceID])
	assert.Equal(t, "evt_1", rec.Headers[kafka.HeaderCorrelationID])
}

func TestNewRecord_UnmarshalablePayload(t *testing.T) {
	_, err := NewRecord(context.Background(), "order", "order-1", "order.paid", kafka.TopicOrderEvents, make(chan int))
	assert.Error(t, err)
}

func TestWorker_ProcessSingle_Success(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	producer := new(mockProducer)
	w := NewWorker(repo, producer, DefaultWorkerConfig())

	producer.On("SendMessage", ctx, mock.MatchedBy(func(msg *kafka.Message) bool {
		return msg.Topic == kafka.TopicOrderEvents && string(msg.Key) == "order-1"
	})).Return(nil)
	repo.On("MarkProcessed", ctx, "outbox-1").Return(nil)

	require.NoError(t, w.ProcessSingle(ctx, confirmedRecord("outbox-1")))

	producer.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestWorker_ProcessSingle_SendError(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	producer := new(mockProducer)
	w := NewWorker(repo, producer, DefaultWorkerConfig())

	sendErr := errors.New("kafka unavailable")
	producer.On("SendMessage", ctx, mock.AnythingOfType("*kafka.Message")).Return(sendErr)
	repo.On("MarkFailed", ctx, "outbox-1", sendErr).Return(nil)

	err := w.ProcessSingle(ctx, confirmedRecord("outbox-1"))

	assert.ErrorIs(t, err, sendErr)
	repo.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
}

func TestWorker_ProcessBatch_DeadLetterGoesToDLQ(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	producer := new(mockProducer)
	cfg := DefaultWorkerConfig()
	cfg.MaxRetries = 3
	w := NewWorker(repo, producer, cfg)

	lastErr := "broker down"
	dead := confirmedRecord("outbox-dead")
	dead.RetryCount = 3
	dead.LastError = &lastErr
	alive := confirmedRecord("outbox-alive")

	repo.On("GetUnprocessed", ctx, cfg.BatchSize).Return([]*Outbox{dead, alive}, nil)
	producer.On("SendMessage", ctx, mock.MatchedBy(func(msg *kafka.Message) bool {
		return msg.Topic == kafka.TopicDLQ &&
			msg.Headers["dlq_original_topic"] == kafka.TopicOrderEvents &&
			msg.Headers["dlq_error"] == "broker down"
	})).Return(nil).Once()
	producer.On("SendMessage", ctx, mock.MatchedBy(func(msg *kafka.Message) bool {
		return msg.Topic == kafka.TopicOrderEvents
	})).Return(nil).Once()
	repo.On("MarkProcessed", ctx, "outbox-dead").Return(nil)
	repo.On("MarkProcessed", ctx, "outbox-alive").Return(nil)

	sent := w.ProcessBatch(ctx)

	assert.Equal(t, 1, sent)
	producer.AssertExpectations(t)
	repo.AssertExpectations(t)
	// исходные headers записи не должны меняться при отправке в DLQ
	assert.NotContains(t, dead.Headers, "dlq_original_topic")
}

func TestWorker_ProcessBatch_RepositoryError(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	producer := new(mockProducer)
	w := NewWorker(repo, producer, DefaultWorkerConfig())

	repo.On("GetUnprocessed", ctx, 100).Return(nil, errors.New("db down"))

	assert.Equal(t, 0, w.ProcessBatch(ctx))
	producer.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestWorker_Run_StopsOnCancel(t *testing.T) {
	repo := new(mockRepository)
	producer := new(mockProducer)
	cfg := DefaultWorkerConfig()
	cfg.PollInterval = 5 * time.Millisecond
	w := NewWorker(repo, producer, cfg)

	repo.On("GetUnprocessed", mock.Anything, cfg.BatchSize).Return([]*Outbox{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker не остановился после отмены контекста")
	}
}
