package api

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

func incrWithTTL(ctx context.Context, client redisRateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

// hourlyKey 生成按小时分桶的限流 key，例如 rate:login:<ip>:<email>:2024010215。
func hourlyKey(now time.Time, parts ...string) string {
	return "rate:" + strings.Join(parts, ":") + ":" + now.UTC().Format("2006010215")
}

// overHourlyLimit 在 Redis 不可用时放行，限流只是附加保护。
func overHourlyLimit(ctx context.Context, client redisRateCounter, key string, limit int) bool {
	if client == nil || limit <= 0 {
		return false
	}
	count, err := incrWithTTL(ctx, client, key, time.Hour)
	if err != nil {
		return false
	}
	return count > int64(limit)
}

func loginLockKey(email string) string { return "lock:login:" + email }
func loginFailKey(email string) string { return "lock:login:fail:" + email }
