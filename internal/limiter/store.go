package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter — быстрый атомарный счётчик с кэшем значений.
// Реализация: RedisCounter. Содержимое эфемерно: потеря счётчика
// приводит лишь к временному недо-ограничению, не к отказу.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (value int64, found bool, err error)
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RedisCounter — Counter поверх Redis.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter создаёт RedisCounter.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// NewRedisClient создаёт клиент Redis и проверяет соединение.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Incr атомарно увеличивает счётчик и возвращает новое значение.
func (c *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	v, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return v, nil
}

// Decr атомарно уменьшает счётчик и возвращает новое значение.
func (c *RedisCounter) Decr(ctx context.Context, key string) (int64, error) {
	v, err := c.client.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("decr %s: %w", key, err)
	}
	return v, nil
}

// Get читает значение ключа. found=false — ключа нет.
func (c *RedisCounter) Get(ctx context.Context, key string) (int64, bool, error) {
	v, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

// Set записывает значение ключа с TTL (0 — без истечения).
func (c *RedisCounter) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Del удаляет ключ. Отсутствующий ключ — не ошибка.
func (c *RedisCounter) Del(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}
