package config

import (
    "os"
    "time"
)

// RateLimitConfig tunes the token bucket guarding claim and move
// endpoints.  Admission correctness never depends on the limiter; it
// only keeps one client from monopolizing a hot screening.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    Prefix         string
}

// LoadRateLimitConfig reads rate limit settings from the environment
// with defaults suitable for interactive traffic.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
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
    return cfg
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    switch os.Getenv(k) {
    case "1", "true", "TRUE", "True", "yes", "on":
        return true
    case "0", "false", "FALSE", "False", "no", "off":
        return false
    }
    return d
}
