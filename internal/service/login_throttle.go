package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LoginThrottle limits repeated failed logins for one email address from one client.
// Counting per client keeps a third party from locking the account owner out.
type LoginThrottle interface {
	Allow(ctx context.Context, email, clientIP string) bool
	RecordFailure(ctx context.Context, email, clientIP string)
	Reset(ctx context.Context, email, clientIP string)
}

// NoopThrottle never limits.
type NoopThrottle struct{}

// Allow always permits the attempt.
func (NoopThrottle) Allow(context.Context, string, string) bool {
	return true
}

// RecordFailure does nothing.
func (NoopThrottle) RecordFailure(context.Context, string, string) {}

// Reset does nothing.
func (NoopThrottle) Reset(context.Context, string, string) {}

// RedisLoginThrottle counts failures in Redis with a fixed window per email and client.
// Redis errors are logged and the attempt is allowed.
type RedisLoginThrottle struct {
	client      redis.UniversalClient
	logger      *zap.Logger
	maxAttempts int
	window      time.Duration
}

// NewLoginThrottle returns a Redis-backed throttle, or NoopThrottle when
// client is nil or maxAttempts is not positive.
func NewLoginThrottle(client redis.UniversalClient, maxAttempts int, window time.Duration, logger *zap.Logger) LoginThrottle {
	if client == nil || maxAttempts <= 0 {
		return NoopThrottle{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLoginThrottle{client: client, logger: logger, maxAttempts: maxAttempts, window: window}
}

func throttleKey(email, clientIP string) string {
	return "login_failures:" + email + ":" + clientIP
}

// Allow reports whether email is still under the failure limit for clientIP.
func (t *RedisLoginThrottle) Allow(ctx context.Context, email, clientIP string) bool {
	count, err := t.client.Get(ctx, throttleKey(email, clientIP)).Int()
	if errors.Is(err, redis.Nil) {
		return true
	}
	if err != nil {
		t.logger.Warn("login throttle unavailable", zap.Error(err))
		return true
	}
	return count < t.maxAttempts
}

// RecordFailure increments the failure counter, starting the window on the first failure.
func (t *RedisLoginThrottle) RecordFailure(ctx context.Context, email, clientIP string) {
	key := throttleKey(email, clientIP)
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		t.logger.Warn("record login failure", zap.Error(err))
		return
	}
	if count == 1 {
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			t.logger.Warn("set login failure window", zap.Error(err))
		}
	}
}

// Reset clears the counter after a successful login.
func (t *RedisLoginThrottle) Reset(ctx context.Context, email, clientIP string) {
	if err := t.client.Del(ctx, throttleKey(email, clientIP)).Err(); err != nil {
		t.logger.Warn("reset login failures", zap.Error(err))
	}
}
