package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/go-redis/redis/v8"
)

const scanBatch = 100

// RedisCache реализует CachePort поверх Redis
type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ interfaces.CachePort = (*RedisCache)(nil)

// NewRedisCache подключается к Redis. Все ключи получают префикс prefix.
func NewRedisCache(ctx context.Context, host string, port int, password string, db int, prefix string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, prefix), nil
}

// NewRedisCacheFromClient оборачивает готовый клиент
func NewRedisCacheFromClient(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) buildKey(key string) string {
	if r.prefix != "" {
		return r.prefix + key
	}
	return key
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, interfaces.ErrCacheMiss
		}
		return nil, fmt.Errorf("ошибка чтения из кэша: %w", err)
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return r.client.Set(ctx, r.buildKey(key), value, expiration).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.buildKey(key)).Err()
}

// DeleteByPattern удаляет ключи пачками по мере сканирования
func (r *RedisCache) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	iter := r.client.Scan(ctx, 0, r.buildKey(pattern), scanBatch).Iterator()
	keys := make([]string, 0, scanBatch)
	var deleted int64

	flush := func() error {
		n, err := r.client.Del(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("ошибка при удалении ключей кэша: %w", err)
		}
		deleted += n
		keys = keys[:0]
		return nil
	}

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= scanBatch {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}

	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("ошибка при сканировании ключей по шаблону: %w", err)
	}

	if len(keys) > 0 {
		if err := flush(); err != nil {
			return deleted, err
		}
	}

	return deleted, nil
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
