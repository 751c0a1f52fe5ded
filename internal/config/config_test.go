package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	f := Flags("test")
	f.Parse(nil)

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.CooldownMinutes != 15 || cfg.BuryMinutes != 15 {
		t.Errorf("Expected 15 minute defaults, got cooldown=%d bury=%d", cfg.CooldownMinutes, cfg.BuryMinutes)
	}
	if !reflect.DeepEqual(cfg.Sources, []string{"questions"}) {
		t.Errorf("Expected default sources, got %v", cfg.Sources)
	}
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	f := Flags("test")
	f.Parse([]string{"--addr", ":9090", "--sources", "deck-a,deck-b"})

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Expected addr :9090 from flags, got %q", cfg.Addr)
	}
	if !reflect.DeepEqual(cfg.Sources, []string{"deck-a", "deck-b"}) {
		t.Errorf("Expected sources from flags, got %v", cfg.Sources)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("KANA_DATA_DIR", "/tmp/kana-data")
	t.Setenv("KANA_SOURCES", "deck-a,deck-b")

	f := Flags("test")
	f.Parse(nil)

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if cfg.DataDir != "/tmp/kana-data" {
		t.Errorf("Expected data dir from environment, got %q", cfg.DataDir)
	}
	if !reflect.DeepEqual(cfg.Sources, []string{"deck-a", "deck-b"}) {
		t.Errorf("Expected comma-split sources from environment, got %v", cfg.Sources)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "addr: \":7070\"\ncooldown-minutes: 30\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	f := Flags("test")
	f.Parse([]string{"--config", path})

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Errorf("Expected addr from config file, got %q", cfg.Addr)
	}
	if cfg.CooldownMinutes != 30 {
		t.Errorf("Expected cooldown from config file, got %d", cfg.CooldownMinutes)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	f := Flags("test")
	f.Parse([]string{"--cooldown-minutes", "0"})

	if _, err := Load(f); err == nil {
		t.Error("Expected a validation error for a zero cooldown")
	}
}
