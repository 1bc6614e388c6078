package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMigrationsDirOverride(t *testing.T) {
	t.Setenv("MIGRATIONS_DIR", "/opt/ledger/migrations")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MigrationsDir != "/opt/ledger/migrations" {
		t.Fatalf("expected overridden migrations dir, got %q", cfg.MigrationsDir)
	}
}

func TestLoadMigrationsDirDefault(t *testing.T) {
	t.Setenv("MIGRATIONS_DIR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if want := filepath.Join("src", "migrations"); cfg.MigrationsDir != want {
		t.Fatalf("expected %q, got %q", want, cfg.MigrationsDir)
	}
}

func TestNormalizeConnectionStringTranslatesKeywords(t *testing.T) {
	raw := "Host=db;Port=5432;Database=ledger;Username=app;Password=secret;Timeout=30"
	got := NormalizeConnectionString(raw)
	want := "host=db port=5432 dbname=ledger user=app password=secret connect_timeout=30 sslmode=disable"

	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNormalizeConnectionStringKeepsExplicitSSLMode(t *testing.T) {
	raw := "Host=db;Database=ledger;SSLMode=require"
	got := NormalizeConnectionString(raw)
	want := "host=db dbname=ledger sslmode=require"

	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNormalizeConnectionStringPassesThroughUnparsable(t *testing.T) {
	raw := "postgres://app:secret@db:5432/ledger"
	if got := NormalizeConnectionString(raw); got != raw {
		t.Fatalf("expected pass-through for %q, got %q", raw, got)
	}
}
