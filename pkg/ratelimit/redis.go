package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter fixed window лимитер на Redis
type RedisLimiter struct {
	client   *redis.Client
	requests int
	size     time.Duration
}

// NewRedisLimiter создаёт новый Redis лимитер
func NewRedisLimiter(cfg *Config) (*RedisLimiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisLimiter{
		client:   client,
		requests: cfg.Requests,
		size:     cfg.Window,
	}, nil
}

func (l *RedisLimiter) windowKey(key string) string {
	bucket := time.Now().UnixNano() / int64(l.size)
	return fmt.Sprintf("ratelimit:%s:%d", key, bucket)
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

func (l *RedisLimiter) AllowN(ctx context.Context, key string, n int) (bool, error) {
	wkey := l.windowKey(key)

	pipe := l.client.TxPipeline()
	incr := pipe.IncrBy(ctx, wkey, int64(n))
	pipe.Expire(ctx, wkey, l.size)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	if incr.Val() > int64(l.requests) {
		// Откатываем счётчик, запрос не прошёл
		l.client.DecrBy(ctx, wkey, int64(n))
		return false, nil
	}

	return true, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.windowKey(key)).Err()
}

func (l *RedisLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	wkey := l.windowKey(key)

	pipe := l.client.Pipeline()
	getCmd := pipe.Get(ctx, wkey)
	ttlCmd := pipe.TTL(ctx, wkey)
	_, _ = pipe.Exec(ctx) // redis.Nil допустим для новых ключей

	used, _ := getCmd.Int()

	info := &LimitInfo{
		Limit:     l.requests,
		Remaining: l.requests - used,
		ResetAt:   time.Now().Add(l.size),
	}
	if info.Remaining < 0 {
		info.Remaining = 0
	}

	if ttl, err := ttlCmd.Result(); err == nil && ttl > 0 {
		info.ResetAt = time.Now().Add(ttl)
		if info.Remaining == 0 {
			info.RetryAfter = ttl
		}
	}

	return info, nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
