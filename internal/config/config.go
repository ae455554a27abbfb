package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	WSAddr  string
	APIAddr string

	RedisURL    string
	DatabaseURL string

	ClockInitial   time.Duration
	ClockIncrement time.Duration

	OfferTTL      time.Duration
	Retention     time.Duration
	IdleTTL       time.Duration
	SweepInterval time.Duration

	SuggestStrength int
	SuggestThink    time.Duration
	SuggestLimit    time.Duration

	MessageDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		WSAddr:          ":8080",
		APIAddr:         ":8081",
		ClockInitial:    10 * time.Minute,
		ClockIncrement:  0,
		OfferTTL:        2 * time.Minute,
		Retention:       10 * time.Minute,
		IdleTTL:         30 * time.Minute,
		SweepInterval:   500 * time.Millisecond,
		SuggestStrength: 10,
		SuggestThink:    300 * time.Millisecond,
		SuggestLimit:    10 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("WS_ADDR")); v != "" {
		cfg.WSAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("API_ADDR")); v != "" {
		cfg.APIAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MessageDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))

	if v := envSeconds("CLOCK_INITIAL_SEC"); v > 0 {
		cfg.ClockInitial = v
	}
	if v := envSeconds("CLOCK_INCREMENT_SEC"); v > 0 {
		cfg.ClockIncrement = v
	}
	if v := envSeconds("OFFER_TTL_SEC"); v > 0 {
		cfg.OfferTTL = v
	}
	if v := envSeconds("SESSION_RETENTION_SEC"); v > 0 {
		cfg.Retention = v
	}
	if v := envSeconds("SESSION_IDLE_SEC"); v > 0 {
		cfg.IdleTTL = v
	}
	if v := envMillis("SWEEP_INTERVAL_MS"); v > 0 {
		cfg.SweepInterval = v
	}
	if v := strings.TrimSpace(os.Getenv("SUGGEST_STRENGTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 20 {
			cfg.SuggestStrength = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SUGGEST_THINK_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.SuggestThink = time.Duration(n) * time.Millisecond
		}
	}
	if v := envSeconds("SUGGEST_LIMIT_SEC"); v > 0 {
		cfg.SuggestLimit = v
	}

	return cfg, nil
}

func envSeconds(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func envMillis(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}
