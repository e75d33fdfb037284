package config

import (
    "strings"
    "time"

    "github.com/caarlos0/env/v11"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching is disabled.
// Methods is built from MethodList, upper-cased.
type CacheConfig struct {
    Enabled      bool            `env:"CACHE_ENABLED" envDefault:"true"`
    MethodList   []string        `env:"CACHE_METHODS" envDefault:"GET" envSeparator:","`
    Methods      map[string]bool `env:"-"`
    TTL          time.Duration   `env:"CACHE_TTL" envDefault:"30s"`
    KeyStrategy  string          `env:"CACHE_KEY_STRATEGY" envDefault:"user_route_query"`
    Prefix       string          `env:"CACHE_PREFIX" envDefault:"cache"`
    MaxBodyBytes int             `env:"CACHE_MAX_BODY_BYTES" envDefault:"1048576"`
}

// LoadCacheConfig parses the CACHE_* variables.
func LoadCacheConfig() (CacheConfig, error) {
    cfg, err := env.ParseAs[CacheConfig]()
    if err != nil {
        return CacheConfig{}, err
    }
    cfg.Methods = map[string]bool{}
    for _, m := range cfg.MethodList {
        if m = strings.TrimSpace(strings.ToUpper(m)); m != "" {
            cfg.Methods[m] = true
        }
    }
    if cfg.TTL <= 0 {
        cfg.TTL = time.Second
    }
    return cfg, nil
}
