package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Fatalf("Server.Port = %d, expected 8000", cfg.Server.Port)
	}
	if cfg.Postgres.Database != "steam_analytics" {
		t.Fatalf("Postgres.Database = %q, expected steam_analytics", cfg.Postgres.Database)
	}
	if cfg.Sources.SteamSpyAllDelay != 60*time.Second {
		t.Fatalf("Sources.SteamSpyAllDelay = %s, expected 60s", cfg.Sources.SteamSpyAllDelay)
	}
	if cfg.Pipeline.MaxFailureRate != 0.8 {
		t.Fatalf("Pipeline.MaxFailureRate = %f, expected 0.8", cfg.Pipeline.MaxFailureRate)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("STEAM_STORE_DELAY", "3s")
	t.Setenv("POSTGRES_DB", "steam_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Fatalf("Server.Port = %d, expected 9000", cfg.Server.Port)
	}
	if cfg.Sources.SteamStoreDelay != 3*time.Second {
		t.Fatalf("Sources.SteamStoreDelay = %s, expected 3s", cfg.Sources.SteamStoreDelay)
	}
	if cfg.Postgres.Database != "steam_test" {
		t.Fatalf("Postgres.Database = %q, expected steam_test", cfg.Postgres.Database)
	}
}

func TestValidate_RejectsShortAllDelay(t *testing.T) {
	t.Setenv("STEAMSPY_ALL_DELAY", "5s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error for STEAMSPY_ALL_DELAY below minimum")
	}
}

func TestValidate_RejectsBadFailureRate(t *testing.T) {
	t.Setenv("PIPELINE_MAX_FAILURE_RATE", "1.5")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error for failure rate above 1")
	}
}

func TestPostgresConfig_DSN(t *testing.T) {
	t.Parallel()

	p := PostgresConfig{
		Host:     "db",
		Port:     5432,
		User:     "steam_user",
		Password: "secret",
		Database: "steam_analytics",
		SSLMode:  "disable",
	}

	expected := "host=db port=5432 user=steam_user password=secret dbname=steam_analytics sslmode=disable"
	if got := p.DSN(); got != expected {
		t.Fatalf("DSN() = %q, expected %q", got, expected)
	}
}

func TestParseCommaSeparated(t *testing.T) {
	t.Parallel()

	got := parseCommaSeparated("http://a.example, http://b.example ,")
	expected := []string{"http://a.example", "http://b.example"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("parseCommaSeparated() = %v, expected %v", got, expected)
	}
}
