package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/stackdesk/stackdesk/internal/config"
)

const (
	keyLoginEmail = "login:email:%s"
	keyLoginIP    = "login:ip:%s"
)

// NewRedisClient returns nil when rate limiting is disabled; downstream
// constructors treat a nil client as a no-op limiter.
func NewRedisClient(cfg config.Config) (*redis.Client, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}

	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	}), nil
}

// LoginLimiter throttles credential checks per normalized email and per
// client address. Both buckets must allow before a login attempt runs.
type LoginLimiter struct {
	enabled bool
	bucket  *TokenBucket

	emailRate  float64
	emailBurst int
	ipRate     float64
	ipBurst    int
}

func NewLoginLimiter(cfg config.Config, client *redis.Client) (*LoginLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return nil, nil
	}

	if limitCfg.LoginEmailRate <= 0 || limitCfg.LoginEmailBurst <= 0 {
		return nil, errors.New("login email rate limit must be positive")
	}
	if limitCfg.LoginIPRate <= 0 || limitCfg.LoginIPBurst <= 0 {
		return nil, errors.New("login ip rate limit must be positive")
	}

	return &LoginLimiter{
		enabled:    true,
		bucket:     NewTokenBucket(client),
		emailRate:  limitCfg.LoginEmailRate,
		emailBurst: limitCfg.LoginEmailBurst,
		ipRate:     limitCfg.LoginIPRate,
		ipBurst:    limitCfg.LoginIPBurst,
	}, nil
}

func (l *LoginLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *LoginLimiter) AllowEmail(ctx context.Context, email string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyLoginEmail, strings.ToLower(strings.TrimSpace(email)))
	return l.bucket.Allow(ctx, key, l.emailRate, l.emailBurst)
}

func (l *LoginLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyLoginIP, strings.TrimSpace(ip))
	return l.bucket.Allow(ctx, key, l.ipRate, l.ipBurst)
}
