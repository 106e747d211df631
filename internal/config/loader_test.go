package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencorp/clientsync/internal/feed"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "development" {
		t.Errorf("env = %q", cfg.Env)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("addr = %q", cfg.HTTPAddr)
	}
	if cfg.Sync.RateLimitWindow != time.Minute {
		t.Errorf("window = %v", cfg.Sync.RateLimitWindow)
	}
	if len(cfg.Feeds) != 0 {
		t.Errorf("feeds = %v, want none", cfg.Feeds)
	}
}

func TestLoadFullConfig(t *testing.T) {
	dir := writeConfig(t, `
env: production
http:
  addr: ":9090"
database:
  host: db.internal
  port: 5433
  dbname: clientsync_prod
sync:
  secret: topsecret
  rate_limit_window: 5m
  schedule: "0 */6 * * *"
feeds:
  onboarding:
    location: https://sheets.example.com/onboarding.xlsx
    sheet: Clients
    variant: onboarding
  renewals:
    location: /data/renewals.csv
    variant: renewals
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "production" || cfg.HTTPAddr != ":9090" {
		t.Errorf("env/addr = %q/%q", cfg.Env, cfg.HTTPAddr)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 5433 || cfg.Database.DBName != "clientsync_prod" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Sync.Secret != "topsecret" || cfg.Sync.RateLimitWindow != 5*time.Minute || cfg.Sync.Schedule != "0 */6 * * *" {
		t.Errorf("sync = %+v", cfg.Sync)
	}

	onboarding, ok := cfg.Feeds["onboarding"]
	if !ok {
		t.Fatal("onboarding feed missing")
	}
	if onboarding.Sheet != "Clients" || onboarding.Variant != feed.VariantOnboarding {
		t.Errorf("onboarding = %+v", onboarding)
	}
	if renewals := cfg.Feeds["renewals"]; renewals.Variant != feed.VariantRenewals {
		t.Errorf("renewals = %+v", renewals)
	}
}

func TestLoadRejectsFeedWithoutLocation(t *testing.T) {
	dir := writeConfig(t, `
feeds:
  onboarding:
    variant: onboarding
`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for feed without location")
	}
}

func TestLoadRejectsUnknownVariant(t *testing.T) {
	dir := writeConfig(t, `
feeds:
  legacy:
    location: /data/legacy.csv
    variant: mystery
`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}
