package blacklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tillhq/till/pkg/cryptox"
)

const (
	revokedKeyPrefix  = "trv" // till revoked token
	attemptsKeyPrefix = "tfa" // till failed attempts
)

// RedisBlacklist is the externally consistent registry for multi-instance
// deployments. Redis per-key TTLs give entries exactly the remaining token
// lifetime; revocations are visible to every instance immediately.
type RedisBlacklist struct {
	client redis.UniversalClient
}

func NewRedisBlacklist(client redis.UniversalClient) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

func revokedKey(rawToken string) string {
	// Fingerprint rather than raw value so token material never lands in Redis.
	return revokedKeyPrefix + ":" + cryptox.FingerprintToken(rawToken)
}

func (b *RedisBlacklist) Revoke(ctx context.Context, rawToken string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already expired, nothing to revoke
	}

	if err := b.client.Set(ctx, revokedKey(rawToken), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (b *RedisBlacklist) RevokeOnce(ctx context.Context, rawToken string, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return false, nil
	}

	// SET NX is the atomic gate: exactly one caller across all instances
	// observes the insert.
	set, err := b.client.SetNX(ctx, revokedKey(rawToken), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return set, nil
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, rawToken string) (bool, error) {
	n, err := b.client.Exists(ctx, revokedKey(rawToken)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// RedisAttempts counts failures with INCR + EXPIRE on first increment.
type RedisAttempts struct {
	client redis.UniversalClient
}

func NewRedisAttempts(client redis.UniversalClient) *RedisAttempts {
	return &RedisAttempts{client: client}
}

func attemptsKey(key string) string {
	return attemptsKeyPrefix + ":" + key
}

func (a *RedisAttempts) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	if window <= 0 {
		window = time.Minute
	}

	count, err := a.client.Incr(ctx, attemptsKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := a.client.Expire(ctx, attemptsKey(key), window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return int(count), nil
}

func (a *RedisAttempts) Clear(ctx context.Context, key string) error {
	if err := a.client.Del(ctx, attemptsKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
