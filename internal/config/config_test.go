package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("upstream:\n  base_url: https://api.example.test/v3\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Upstream.BaseURL != "https://api.example.test/v3" {
		t.Errorf("BaseURL = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want 10s", cfg.Upstream.PollInterval)
	}
	if cfg.Upstream.RequestTimeout != 0 {
		t.Errorf("RequestTimeout = %v, want unbounded", cfg.Upstream.RequestTimeout)
	}
	if cfg.Store.Driver != StoreDriverRedis {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, StoreDriverRedis)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestParseRejectsUnknownStoreDriver(t *testing.T) {
	if _, err := Parse([]byte("store:\n  driver: etcd\n")); err == nil {
		t.Fatal("expected error for unknown store driver")
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("CONSOLE_TEST_LEADERBOARD", "weekly")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "upstream:\n  leaderboard_id: ${CONSOLE_TEST_LEADERBOARD}\n  streak_ids: [daily, login]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Upstream.LeaderboardID != "weekly" {
		t.Errorf("LeaderboardID = %q, want weekly", cfg.Upstream.LeaderboardID)
	}
	if len(cfg.Upstream.StreakIDs) != 2 || cfg.Upstream.StreakIDs[1] != "login" {
		t.Errorf("StreakIDs = %v", cfg.Upstream.StreakIDs)
	}
}

func TestPostgresConnectionString(t *testing.T) {
	c := PostgresConfig{User: "u", Password: "p", Host: "db", Port: 5433, Database: "journal"}
	want := "postgres://u:p@db:5433/journal?sslmode=disable"
	if got := c.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
