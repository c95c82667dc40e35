package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MAX_PAGES", "")
	t.Setenv("DATASET_CURRENCY", "")
	t.Setenv("DATASET_CITY", "")
	t.Setenv("PAGE_WAIT_TIMEOUT", "")

	cfg := Load()
	if cfg.MaxPages != 5 {
		t.Errorf("MaxPages: got %d, want 5", cfg.MaxPages)
	}
	if cfg.Currency != "KZT" {
		t.Errorf("Currency: got %q, want KZT", cfg.Currency)
	}
	if cfg.City != "Алматы" {
		t.Errorf("City: got %q, want Алматы", cfg.City)
	}
	if cfg.PageWaitTimeout != 10*time.Second {
		t.Errorf("PageWaitTimeout: got %v, want 10s", cfg.PageWaitTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_PAGES", "2")
	t.Setenv("HEADLESS", "false")
	t.Setenv("STAGE_RETRY_DELAY", "30")
	t.Setenv("LOCK_TTL", "90s")
	t.Setenv("KRISHA_BASE_URL", "https://example.test/rent/")

	cfg := Load()
	if cfg.MaxPages != 2 {
		t.Errorf("MaxPages: got %d, want 2", cfg.MaxPages)
	}
	if cfg.Headless {
		t.Error("Headless: got true, want false")
	}
	if cfg.StageRetryDelay != 30*time.Second {
		t.Errorf("StageRetryDelay: got %v, want 30s", cfg.StageRetryDelay)
	}
	if cfg.LockTTL != 90*time.Second {
		t.Errorf("LockTTL: got %v, want 90s", cfg.LockTTL)
	}
	if cfg.BaseURL != "https://example.test/rent" {
		t.Errorf("BaseURL: got %q, want trailing slash trimmed", cfg.BaseURL)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("MAX_PAGES", "many")
	t.Setenv("HEADLESS", "sometimes")

	cfg := Load()
	if cfg.MaxPages != 5 {
		t.Errorf("MaxPages: got %d, want fallback 5", cfg.MaxPages)
	}
	if !cfg.Headless {
		t.Error("Headless: got false, want fallback true")
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "db", PostgresPort: "5433", PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "d", PostgresSSLMode: "disable",
	}
	want := "host=db port=5433 user=u password=p dbname=d sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q; want %q", got, want)
	}
}
