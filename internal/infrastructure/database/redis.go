package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/you/eventhub/domain"
)

type RedisClient struct{ *redis.Client }

func NewRedis(addr, pass string, db int) *RedisClient {
	return &RedisClient{redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func (c *RedisClient) Ping(ctx context.Context) error { return c.Client.Ping(ctx).Err() }

// SendLock implements domain.SendLocker with SETNX keys that expire on
// their own, so a crashed request cannot hold a lineage forever.
type SendLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSendLock creates a Redis-backed send lock
func NewSendLock(client *redis.Client, ttl time.Duration) domain.SendLocker {
	return &SendLock{client: client, ttl: ttl}
}

func sendLockKey(phone string, purpose domain.OTPPurpose) string {
	return fmt.Sprintf("otp:lock:%s:%s", purpose, phone)
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire implements domain.SendLocker
func (l *SendLock) Acquire(ctx context.Context, phone string, purpose domain.OTPPurpose) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, sendLockKey(phone, purpose), token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire send lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release implements domain.SendLocker. A lock that expired and was taken
// by another request is left alone.
func (l *SendLock) Release(ctx context.Context, phone string, purpose domain.OTPPurpose, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{sendLockKey(phone, purpose)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release send lock: %w", err)
	}
	return nil
}
