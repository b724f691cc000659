package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const prefixEvent = "webhook:event:" // webhook:event:{gateway event id}

// RedisDeduplicator запоминает ID обработанных событий шлюза.
// Шлюз повторяет доставку несколько дней, TTL должен быть не меньше.
type RedisDeduplicator struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisDeduplicator(client *redis.Client, ttl time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{redis: client, ttl: ttl}
}

// Acquire возвращает false, если событие уже обработано или обрабатывается.
func (d *RedisDeduplicator) Acquire(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.redis.SetNX(ctx, prefixEvent+eventID, time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка дедупликации события %s: %w", eventID, err)
	}
	return ok, nil
}

// Release снимает отметку, чтобы повторная доставка обработала событие заново.
func (d *RedisDeduplicator) Release(ctx context.Context, eventID string) error {
	if err := d.redis.Del(ctx, prefixEvent+eventID).Err(); err != nil {
		return fmt.Errorf("ошибка снятия отметки события %s: %w", eventID, err)
	}
	return nil
}
