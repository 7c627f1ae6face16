package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("LEDGER_SERVICE_TOKEN", "secret")
	t.Setenv("SYNC_SERVICE_URL", "http://sync:8500/")
	t.Setenv("MEMBERSHIP_SERVICE_URL", "http://membership:8600")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , https://b.example,")
	t.Setenv("STATS_RECONCILE_EVERY", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":5300" {
		t.Fatalf("addr=%q", cfg.Addr)
	}
	if cfg.SyncServiceURL != "http://sync:8500" {
		t.Fatalf("sync url not trimmed: %q", cfg.SyncServiceURL)
	}
	if cfg.AllowedOrigins != "https://a.example,https://b.example" {
		t.Fatalf("origins=%q", cfg.AllowedOrigins)
	}
	if cfg.StatsReconcileEvery != 10*time.Minute {
		t.Fatalf("reconcile=%v", cfg.StatsReconcileEvery)
	}
	if cfg.MembershipToken != "secret" {
		t.Fatalf("membership token should fall back to service token, got %q", cfg.MembershipToken)
	}
}

func TestLoadPortOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9000")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("addr=%q", cfg.Addr)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}
