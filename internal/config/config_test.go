package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Room.CodeAttempts != 5 {
		t.Errorf("Expected 5 code attempts, got %d", cfg.Room.CodeAttempts)
	}
	if cfg.Room.MaxParticipants != 8 {
		t.Errorf("Expected max participants 8, got %d", cfg.Room.MaxParticipants)
	}
	if cfg.Room.MessageWindow != 50 {
		t.Errorf("Expected message window 50, got %d", cfg.Room.MessageWindow)
	}
	if cfg.Room.CreateTimeout != 30*time.Second {
		t.Errorf("Expected create timeout 30s, got %v", cfg.Room.CreateTimeout)
	}
	if cfg.Presence.TTL != 90*time.Second {
		t.Errorf("Expected presence ttl 90s, got %v", cfg.Presence.TTL)
	}
	if cfg.Catalog.Enabled() {
		t.Error("Expected catalog to be disabled without api key")
	}
	if len(cfg.Server.AllowedOrigins) != 0 {
		t.Errorf("Expected any origin by default, got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Catalog.BaseURL != "https://api.themoviedb.org/3" {
		t.Errorf("Unexpected catalog base url %q", cfg.Catalog.BaseURL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("FEED_DRIVER", "local")
	t.Setenv("TMDB_API_KEY", "abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Store.Driver != "memory" {
		t.Errorf("Expected memory store, got %q", cfg.Store.Driver)
	}
	if cfg.Feed.Driver != "local" {
		t.Errorf("Expected local feed, got %q", cfg.Feed.Driver)
	}
	if !cfg.Catalog.Enabled() {
		t.Error("Expected catalog to be enabled")
	}
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://watch.example.com, https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	expected := []string{"https://watch.example.com", "https://admin.example.com"}
	if len(cfg.Server.AllowedOrigins) != len(expected) {
		t.Fatalf("Expected origins %v, got %v", expected, cfg.Server.AllowedOrigins)
	}
	for i, origin := range expected {
		if cfg.Server.AllowedOrigins[i] != origin {
			t.Errorf("Expected origin %q at %d, got %q", origin, i, cfg.Server.AllowedOrigins[i])
		}
	}
}

func TestLoad_InvalidDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unsupported store driver")
	}
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "u",
		Password: "p",
		DBName:   "watchroom",
		SSLMode:  "disable",
	}

	expected := "host=db port=5432 user=u password=p dbname=watchroom sslmode=disable"
	if dsn := cfg.GetDSN(); dsn != expected {
		t.Errorf("Expected %q, got %q", expected, dsn)
	}
}
