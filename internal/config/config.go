// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHTTPAddr         = ":8090"
	DefaultAPIURL           = "http://localhost:8000/api/v1"
	DefaultStaticDir        = "./static"
	DefaultHistoryRetention = 30 * 24 * time.Hour
)

type Config struct {
	HTTPAddr         string
	LogLevel         string
	APIURL           string
	TileAPIKey       string
	DatabaseURL      string
	StaticDir        string
	HistoryRetention time.Duration
	GeodesicEnvelope bool
	SessionToken     string
}

// Load reads the environment. Unset variables fall back to defaults; malformed values
// are errors.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	envOr := func(key, fallback string) string {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return fallback
		}
		return v
	}

	cfg := Config{
		HTTPAddr:     envOr("HTTP_ADDR", DefaultHTTPAddr),
		LogLevel:     envOr("LOG_LEVEL", "info"),
		APIURL:       strings.TrimRight(envOr("SURVEYOR_API_URL", DefaultAPIURL), "/"),
		TileAPIKey:   envOr("MAP_TILE_API_KEY", ""),
		DatabaseURL:  envOr("DATABASE_URL", ""),
		StaticDir:    envOr("STATIC_DIR", DefaultStaticDir),
		SessionToken: envOr("SESSION_TOKEN", ""),
	}

	u, err := url.Parse(cfg.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("SURVEYOR_API_URL: invalid url %q", cfg.APIURL)
	}

	retention, err := parseRetention(envOr("HISTORY_RETENTION", ""))
	if err != nil {
		return Config{}, fmt.Errorf("HISTORY_RETENTION: %w", err)
	}
	cfg.HistoryRetention = retention

	if raw := envOr("ENVELOPE_GEODESIC", ""); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("ENVELOPE_GEODESIC: %w", err)
		}
		cfg.GeodesicEnvelope = b
	}

	return cfg, nil
}

// parseRetention accepts Go durations plus a whole-day form such as "30d".
func parseRetention(raw string) (time.Duration, error) {
	if raw == "" {
		return DefaultHistoryRetention, nil
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day count %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}
