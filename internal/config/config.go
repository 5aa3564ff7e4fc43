package config // package config loads application configuration from environment variables

import (
    "log"
    "os"
    "strconv"
    "time"
)

// Config holds all runtime configuration values.  Each field maps to
// an environment variable.  The catalog database and JWT secret are
// required; store and retry tuning fall back to sane defaults.
type Config struct {
    Env    string // application environment (e.g. "dev", "prod")
    Port   string // HTTP port to listen on
    DBUser string // catalog database username
    DBPass string // catalog database password (optional)
    DBHost string // catalog database host address
    DBPort string // catalog database port number
    DBName string // catalog database name

    JWTSecret string // secret used to verify holder tokens

    StoreOpTimeout  time.Duration // bound on every resource store call
    ReleaseAttempts int           // move compensation retry budget
    ReleaseBackoff  time.Duration // initial backoff between retries
}

// Load reads configuration from the environment.  Required variables
// are enforced by must(); missing values exit with a fatal log.
func Load() Config {
    return Config{
        Env:             must("APP_ENV"),
        Port:            must("APP_PORT"),
        DBUser:          must("DB_USER"),
        DBPass:          os.Getenv("DB_PASS"),
        DBHost:          must("DB_HOST"),
        DBPort:          must("DB_PORT"),
        DBName:          must("DB_NAME"),
        JWTSecret:       must("JWT_SECRET"),
        StoreOpTimeout:  envDur("STORE_OP_TIMEOUT", 2*time.Second),
        ReleaseAttempts: envInt("RELEASE_RETRY_ATTEMPTS", 4),
        ReleaseBackoff:  envDur("RELEASE_RETRY_BACKOFF", 100*time.Millisecond),
    }
}

// must retrieves a required environment variable or exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

func envInt(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return def
}

func envDur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    if d, err := time.ParseDuration(v); err == nil && d > 0 {
        return d
    }
    return def
}
