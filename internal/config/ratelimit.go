package config

import (
    "time"

    "github.com/caarlos0/env/v11"
)

// Rate limit key strategies understood by the token bucket middleware.
const (
    RateKeyIPUserRoute = "ip_user_route"
    RateKeyUserEvent   = "user_event"
)

// RateLimitConfig configures the Redis token bucket.  Burst and RefillEvery
// are shorthands: a positive Burst replaces Capacity and a positive
// RefillEvery means one token per interval.
type RateLimitConfig struct {
    Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
    Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"60"`
    RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" envDefault:"1"`
    RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
    TTL            time.Duration `env:"RATE_LIMIT_TTL" envDefault:"10m"`
    KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY" envDefault:"ip_user_route"`
    Prefix         string        `env:"RATE_LIMIT_PREFIX" envDefault:"rl"`
    Debug          bool          `env:"RATE_LIMIT_DEBUG" envDefault:"false"`
    Burst          int           `env:"RATE_LIMIT_BURST"`
    RefillEvery    time.Duration `env:"RATE_LIMIT_REFILL_EVERY"`
}

// LoadRateLimitConfig parses the RATE_LIMIT_* variables and clamps the
// bucket to sane values.
func LoadRateLimitConfig() (RateLimitConfig, error) {
    cfg, err := env.ParseAs[RateLimitConfig]()
    if err != nil {
        return RateLimitConfig{}, err
    }
    if cfg.Burst > 0 {
        cfg.Capacity = cfg.Burst
    }
    if cfg.RefillEvery > 0 {
        cfg.RefillTokens = 1
        cfg.RefillInterval = cfg.RefillEvery
    }
    if cfg.Capacity < 1 {
        cfg.Capacity = 1
    }
    if cfg.RefillTokens < 1 {
        cfg.RefillTokens = 1
    }
    if cfg.RefillInterval <= 0 {
        cfg.RefillInterval = time.Second
    }
    if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
        cfg.TTL = minTTL
    }
    return cfg, nil
}

// ForEvents returns a copy keyed per user and event, used on the entrant
// routes so one caller cannot drain the bucket of another event.
func (c RateLimitConfig) ForEvents() RateLimitConfig {
    c.KeyStrategy = RateKeyUserEvent
    return c
}
