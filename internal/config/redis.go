package config

// This file defines the Redis client constructor.  Redis backs the rate
// limiter, the response cache of the waitlist map and the live event feed.
// When the server cannot be reached at startup callers get an error and
// degrade: no rate limiting, no caching, no live updates.

import (
    "context"
    "crypto/tls"
    "fmt"
    "time"

    "github.com/caarlos0/env/v11"
    "github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings.  Host and Port together win
// over Addr.  TLS verifies the server certificate unless TLSInsecure is set.
type RedisConfig struct {
    Host        string `env:"REDIS_HOST"`
    Port        string `env:"REDIS_PORT"`
    Addr        string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
    Password    string `env:"REDIS_PASSWORD"`
    DB          int    `env:"REDIS_DB" envDefault:"0"`
    TLS         bool   `env:"REDIS_TLS" envDefault:"false"`
    TLSInsecure bool   `env:"REDIS_TLS_INSECURE" envDefault:"false"`
    PoolSize    int    `env:"REDIS_POOL_SIZE" envDefault:"0"` // 0 keeps the go-redis default
}

// LoadRedisConfig parses the REDIS_* variables.
func LoadRedisConfig() (RedisConfig, error) {
    cfg, err := env.ParseAs[RedisConfig]()
    if err != nil {
        return RedisConfig{}, err
    }
    if cfg.Host != "" && cfg.Port != "" {
        cfg.Addr = cfg.Host + ":" + cfg.Port
    }
    return cfg, nil
}

// Options converts the settings into go-redis options.
func (c RedisConfig) Options() *redis.Options {
    opts := &redis.Options{
        Addr:     c.Addr,
        Password: c.Password,
        DB:       c.DB,
        PoolSize: c.PoolSize,
    }
    if c.TLS {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSInsecure}
    }
    return opts
}

// NewRedisClient connects and pings the server, closing the client again
// when the ping fails.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
    client := redis.NewClient(cfg.Options())
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
    }
    return client, nil
}
