package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const linkRequestsPrefix = "auth:link_requests:" // auth:link_requests:{email}

// LinkLimiter ограничивает число писем со ссылкой входа на один адрес.
type LinkLimiter interface {
	Allow(ctx context.Context, email string) (bool, error)
}

type redisLinkLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

func NewLinkLimiter(rdb *redis.Client, limit int, window time.Duration) LinkLimiter {
	return &redisLinkLimiter{rdb: rdb, limit: limit, window: window}
}

// INCR и EXPIRE одним скриптом: ключ без TTL заблокировал бы адрес навсегда.
var incrWithTTLScript = redis.NewScript(`
local val = redis.call('INCR', KEYS[1])
if val == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return val
`)

func (l *redisLinkLimiter) Allow(ctx context.Context, email string) (bool, error) {
	n, err := incrWithTTLScript.Run(ctx, l.rdb, []string{linkRequestsPrefix + email}, int(l.window.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("ошибка счётчика запросов входа: %w", err)
	}
	return n <= l.limit, nil
}
