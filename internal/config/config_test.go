package config

import (
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envMap(nil))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.HTTPAddr != DefaultHTTPAddr || cfg.APIURL != DefaultAPIURL || cfg.StaticDir != DefaultStaticDir {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if cfg.HistoryRetention != DefaultHistoryRetention {
		t.Fatalf("expected 30 day retention, got %s", cfg.HistoryRetention)
	}
	if cfg.GeodesicEnvelope || cfg.TileAPIKey != "" || cfg.DatabaseURL != "" {
		t.Fatalf("expected optional settings off, got %#v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(envMap(map[string]string{
		"HTTP_ADDR":         ":9000",
		"SURVEYOR_API_URL":  "https://surveyor.example/api/v1/",
		"MAP_TILE_API_KEY":  " key ",
		"HISTORY_RETENTION": "7d",
		"ENVELOPE_GEODESIC": "true",
	}))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.APIURL != "https://surveyor.example/api/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.APIURL)
	}
	if cfg.TileAPIKey != "key" || cfg.HTTPAddr != ":9000" {
		t.Fatalf("unexpected overrides %#v", cfg)
	}
	if cfg.HistoryRetention != 7*24*time.Hour || !cfg.GeodesicEnvelope {
		t.Fatalf("unexpected retention/geodesic %#v", cfg)
	}
}

func TestLoad_RejectsMalformedValues(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"api url":   {"SURVEYOR_API_URL": "not a url"},
		"retention": {"HISTORY_RETENTION": "-3h"},
		"days":      {"HISTORY_RETENTION": "xd"},
		"geodesic":  {"ENVELOPE_GEODESIC": "sometimes"},
	} {
		if _, err := load(envMap(env)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseRetention(t *testing.T) {
	d, err := parseRetention("36h")
	if err != nil || d != 36*time.Hour {
		t.Fatalf("expected 36h, got %s err=%v", d, err)
	}
}
