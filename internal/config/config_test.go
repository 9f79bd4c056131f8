package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProducerURL != "https://api.replicate.com" {
		t.Fatalf("producer url = %q", cfg.ProducerURL)
	}
	if cfg.ProducerModel != "google/imagen-4" {
		t.Fatalf("producer model = %q", cfg.ProducerModel)
	}
	if cfg.DailyCap != 250 {
		t.Fatalf("daily cap = %d", cfg.DailyCap)
	}
	if cfg.Timezone != "UTC" || cfg.Location().String() != "UTC" {
		t.Fatalf("timezone = %q", cfg.Timezone)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ATELIER_DAILY_CAP", "10")
	t.Setenv("ATELIER_TIMEZONE", "America/New_York")
	t.Setenv("ATELIER_ADMIN_TOKEN", "admin-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DailyCap != 10 {
		t.Fatalf("daily cap = %d", cfg.DailyCap)
	}
	if cfg.Location().String() != "America/New_York" {
		t.Fatalf("location = %q", cfg.Location())
	}
	if cfg.AdminToken != "admin-secret" {
		t.Fatalf("admin token = %q", cfg.AdminToken)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ATELIER_DAILY_CAP", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("negative cap accepted")
	}

	t.Setenv("ATELIER_DAILY_CAP", "250")
	t.Setenv("ATELIER_TIMEZONE", "Nowhere/Nonexistent")
	if _, err := Load(); err == nil {
		t.Fatal("bogus timezone accepted")
	}
}
