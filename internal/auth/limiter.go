package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/domain"
)

const loginLimiterPrefix = "login_failures"

// LoginLimiter counts failed logins per (kind, email) in a fixed Redis
// window. Redis errors fail open. A nil client disables throttling.
type LoginLimiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
	logger      *zap.Logger
}

// NewLoginLimiter creates a limiter.
func NewLoginLimiter(client *redis.Client, maxAttempts int, window time.Duration, logger *zap.Logger) *LoginLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginLimiter{client: client, maxAttempts: maxAttempts, window: window, logger: logger}
}

func (l *LoginLimiter) key(kind domain.SubjectType, email string) string {
	return fmt.Sprintf("%s:%s:%s", loginLimiterPrefix, strings.ToLower(string(kind)), strings.ToLower(strings.TrimSpace(email)))
}

func (l *LoginLimiter) enabled() bool {
	return l != nil && l.client != nil && l.maxAttempts > 0
}

// Allowed reports whether another login attempt may be made.
func (l *LoginLimiter) Allowed(ctx context.Context, kind domain.SubjectType, email string) bool {
	if !l.enabled() {
		return true
	}
	count, err := l.client.Get(ctx, l.key(kind, email)).Int()
	if err == redis.Nil {
		return true
	}
	if err != nil {
		l.logger.Warn("login limiter read failed", zap.Error(err))
		return true
	}
	return count < l.maxAttempts
}

// Fail records a failed attempt. The window starts at the first failure;
// the counter and its expiry are written in one MULTI block.
func (l *LoginLimiter) Fail(ctx context.Context, kind domain.SubjectType, email string) {
	if !l.enabled() {
		return
	}
	key := l.key(kind, email)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		l.logger.Warn("login limiter write failed", zap.Error(err))
	}
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, kind domain.SubjectType, email string) {
	if !l.enabled() {
		return
	}
	if err := l.client.Del(ctx, l.key(kind, email)).Err(); err != nil {
		l.logger.Warn("login limiter reset failed", zap.Error(err))
	}
}
