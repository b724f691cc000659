package outbox

import (
	"context"
	"time"

	"example.com/shipforward/pkg/kafka"
	"example.com/shipforward/pkg/logger"
)

// KafkaProducer — то, что worker использует из kafka.Producer.
type KafkaProducer interface {
	SendMessage(ctx context.Context, msg *kafka.Message) error
}

type WorkerConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int // после MaxRetries неудач запись уходит в kafka.TopicDLQ
	CleanupInterval  time.Duration
	CleanupRetention time.Duration
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:     time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		CleanupInterval:  time.Hour,
		CleanupRetention: 7 * 24 * time.Hour,
	}
}

// Worker доставляет записи outbox в Kafka.
type Worker struct {
	repo     Repository
	producer KafkaProducer
	cfg      WorkerConfig
}

func NewWorker(repo Repository, producer KafkaProducer, cfg WorkerConfig) *Worker {
	return &Worker{repo: repo, producer: producer, cfg: cfg}
}

// Run блокируется до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Int("batch_size", w.cfg.BatchSize).
		Msg("Запуск Outbox Worker")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Остановка Outbox Worker")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		case <-cleanup.C:
			w.cleanupProcessed(ctx)
		}
	}
}

// ProcessBatch отправляет одну пачку и возвращает число успешно доставленных записей.
func (w *Worker) ProcessBatch(ctx context.Context) int {
	log := logger.FromContext(ctx)

	records, err := w.repo.GetUnprocessed(ctx, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка чтения outbox")
		return 0
	}

	sent := 0
	for _, record := range records {
		if ctx.Err() != nil {
			return sent
		}

		if record.RetryCount >= w.cfg.MaxRetries {
			w.deadLetter(ctx, record)
			continue
		}

		if err := w.ProcessSingle(ctx, record); err != nil {
			log.Warn().
				Err(err).
				Str("outbox_id", record.ID).
				Str("event_type", record.EventType).
				Int("retry_count", record.RetryCount+1).
				Msg("Ошибка отправки outbox в Kafka, повтор на следующем тике")
			continue
		}
		sent++
	}
	return sent
}

// ProcessSingle отправляет одну запись и помечает её обработанной.
func (w *Worker) ProcessSingle(ctx context.Context, record *Outbox) error {
	if err := w.producer.SendMessage(ctx, record.message()); err != nil {
		if markErr := w.repo.MarkFailed(ctx, record.ID, err); markErr != nil {
			logger.Ctx(ctx).Error().Err(markErr).Str("outbox_id", record.ID).Msg("Ошибка пометки outbox как неудачной")
		}
		return err
	}
	return w.repo.MarkProcessed(ctx, record.ID)
}

// deadLetter перекладывает запись в DLQ и выводит её из очереди.
// Если и DLQ недоступна, запись остаётся в outbox до следующего тика.
func (w *Worker) deadLetter(ctx context.Context, record *Outbox) {
	log := logger.FromContext(ctx)

	msg := record.message()
	msg.Topic = kafka.TopicDLQ
	msg.Headers["dlq_original_topic"] = record.Topic
	if record.LastError != nil {
		msg.Headers["dlq_error"] = *record.LastError
	}

	if err := w.producer.SendMessage(ctx, msg); err != nil {
		log.Error().Err(err).Str("outbox_id", record.ID).Msg("Ошибка отправки dead letter в DLQ")
		return
	}

	log.Warn().
		Str("outbox_id", record.ID).
		Str("event_type", record.EventType).
		Str("aggregate_id", record.AggregateID).
		Int("retry_count", record.RetryCount).
		Msg("Dead letter: превышен лимит попыток, запись перенесена в DLQ")

	if err := w.repo.MarkProcessed(ctx, record.ID); err != nil {
		log.Error().Err(err).Str("outbox_id", record.ID).Msg("Ошибка пометки dead letter")
	}
}

func (w *Worker) cleanupProcessed(ctx context.Context) {
	deleted, err := w.repo.DeleteProcessedBefore(ctx, time.Now().Add(-w.cfg.CleanupRetention))
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Ошибка очистки outbox")
		return
	}
	if deleted > 0 {
		logger.Ctx(ctx).Info().Int64("deleted", deleted).Msg("Очистка обработанных записей outbox")
	}
}
