package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestWriteAndLoadConfig(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig(home)
	cfg.App.ExternalURL = "http://market.local/actions"
	cfg.App.DispatchRetries = 9
	cfg.App.DispatchInterval = 3 * time.Second
	WriteConfigFile(cfg.ConfigFile(), cfg)

	got, err := LoadConfig(home)
	if err != nil {
		t.Fatal(err)
	}
	if got.App.ExternalURL != cfg.App.ExternalURL {
		t.Fatalf("got %q, want %q", got.App.ExternalURL, cfg.App.ExternalURL)
	}
	if got.App.DispatchRetries != 9 || got.App.DispatchInterval != 3*time.Second {
		t.Fatalf("got %d %v, want 9 3s", got.App.DispatchRetries, got.App.DispatchInterval)
	}
	if got.App.Home != home || got.RootDir != home {
		t.Fatalf("got home %q root %q, want %q", got.App.Home, got.RootDir, home)
	}
	if got.Consensus.TimeoutPropose != 10*time.Second {
		t.Fatalf("got %v, want 10s", got.Consensus.TimeoutPropose)
	}
	if want := filepath.Join(home, "data", "indexer.db"); got.App.IndexerDBFile() != want {
		t.Fatalf("got %s, want %s", got.App.IndexerDBFile(), want)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig(home)
	cfg.App.BankURL = "http://bank.local"
	WriteConfigFile(cfg.ConfigFile(), cfg)

	t.Setenv("FLUXDAO_BANK_URL", "http://bank.env")
	t.Setenv("FLUXDAO_DISPATCH_INTERVAL", "250ms")
	got, err := LoadConfig(home)
	if err != nil {
		t.Fatal(err)
	}
	if got.App.BankURL != "http://bank.env" {
		t.Fatalf("got %q, want the env value", got.App.BankURL)
	}
	if got.App.DispatchInterval != 250*time.Millisecond {
		t.Fatalf("got %v, want 250ms", got.App.DispatchInterval)
	}
	if got.App.IndexerListen != "127.0.0.1:8080" {
		t.Fatalf("got %q, want the file value", got.App.IndexerListen)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatalf("got nil, want an error for a missing config file")
	}
}

func TestValidateBasic(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.App.DispatchInterval = -time.Second
	if err := cfg.ValidateBasic(); err == nil {
		t.Fatalf("got nil, want an error for a negative interval")
	}
}
