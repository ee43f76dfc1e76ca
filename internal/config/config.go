package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string
	// BackendURL selects the HTTP backend; DatabaseURL selects the
	// embedded postgres backend. Exactly one must be set.
	BackendURL  string
	DatabaseURL string

	FleetFile string
	DataDir   string

	QueueMaxPending int
	QueueMaxRetries int
	QueueItemDelay  time.Duration
	QueueBackoff    time.Duration
	PingInterval    time.Duration

	DevMode bool
}

func FromEnv() (Config, error) {
	cfg := Config{
		ListenAddr:  envDefault("LISTEN_ADDR", ":8080"),
		BackendURL:  strings.TrimSpace(os.Getenv("BACKEND_URL")),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		FleetFile:   envDefault("FLEET_FILE", "fleet.yaml"),
		DataDir:     envDefault("DATA_DIR", "data"),
		DevMode:     strings.TrimSpace(os.Getenv("DEV_MODE")) == "1",
	}

	if cfg.BackendURL == "" && cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("one of BACKEND_URL or DATABASE_URL is required")
	}
	if cfg.BackendURL != "" && cfg.DatabaseURL != "" {
		return cfg, fmt.Errorf("BACKEND_URL and DATABASE_URL are mutually exclusive")
	}

	var err error
	if cfg.QueueMaxPending, err = envInt("QUEUE_MAX_PENDING", 100); err != nil {
		return cfg, err
	}
	if cfg.QueueMaxRetries, err = envInt("QUEUE_MAX_RETRIES", 3); err != nil {
		return cfg, err
	}
	if cfg.QueueItemDelay, err = envDuration("QUEUE_ITEM_DELAY_MS", 250, time.Millisecond); err != nil {
		return cfg, err
	}
	if cfg.QueueBackoff, err = envDuration("QUEUE_BACKOFF_SECONDS", 5, time.Second); err != nil {
		return cfg, err
	}
	if cfg.PingInterval, err = envDuration("PING_INTERVAL_SECONDS", 15, time.Second); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envDefault(k, d string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	return v
}

func envInt(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s", k)
	}
	return n, nil
}

func envDuration(k string, def int, unit time.Duration) (time.Duration, error) {
	n, err := envInt(k, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * unit, nil
}
