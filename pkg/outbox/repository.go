package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"example.com/shipforward/pkg/db"
)

var ErrOutboxNotFound = errors.New("запись outbox не найдена")

// Repository — доступ к таблице outbox.
// Create пишет в транзакцию из ctx (db.Transactor), если она есть.
type Repository interface {
	Create(ctx context.Context, record *Outbox) error
	GetUnprocessed(ctx context.Context, limit int) ([]*Outbox, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, err error) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) Create(ctx context.Context, record *Outbox) error {
	m, err := modelFromDomain(record)
	if err != nil {
		return fmt.Errorf("ошибка сериализации headers outbox: %w", err)
	}
	if err := db.Conn(ctx, r.db).Create(m).Error; err != nil {
		return fmt.Errorf("ошибка записи outbox %s: %w", record.EventType, err)
	}
	record.CreatedAt = m.CreatedAt
	return nil
}

// GetUnprocessed возвращает очередь в порядке создания; записи с большим
// retry_count уходят в конец (простой backoff).
func (r *repository) GetUnprocessed(ctx context.Context, limit int) ([]*Outbox, error) {
	var models []OutboxModel
	if err := db.Conn(ctx, r.db).
		Where("processed_at IS NULL").
		Order("retry_count ASC, created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]*Outbox, len(models))
	for i := range models {
		result[i] = models[i].toDomain()
	}
	return result, nil
}

func (r *repository) MarkProcessed(ctx context.Context, id string) error {
	res := db.Conn(ctx, r.db).Model(&OutboxModel{}).
		Where("id = ?", id).
		Update("processed_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOutboxNotFound
	}
	return nil
}

func (r *repository) MarkFailed(ctx context.Context, id string, cause error) error {
	res := db.Conn(ctx, r.db).Model(&OutboxModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  cause.Error(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOutboxNotFound
	}
	return nil
}

// DeleteProcessedBefore удаляет не больше 1000 строк за вызов.
func (r *repository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	res := db.Conn(ctx, r.db).
		Where("processed_at IS NOT NULL AND processed_at < ?", before).
		Limit(1000).
		Delete(&OutboxModel{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
