package config

import (
	"testing"
)

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Version != 1 || cfg.DefaultServer != "main" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.Servers == nil {
		t.Fatal("servers map is nil")
	}

	if _, err := cfg.Default(); err == nil {
		t.Fatal("default server resolved before connect")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Servers[cfg.DefaultServer] = Server{
		URL:         "https://atelier.test",
		APIKey:      "atl_ak_abc",
		Wallet:      "wallet-a",
		ConnectedAt: "2026-09-01T12:00:00Z",
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	server, err := reloaded.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if server.URL != "https://atelier.test" || server.APIKey != "atl_ak_abc" || server.Wallet != "wallet-a" {
		t.Fatalf("server = %+v", server)
	}
}
