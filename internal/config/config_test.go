package config

import (
	"path/filepath"
	"testing"
)

func TestSaveAndLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Region = "sfo3"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !Exists(path) {
		t.Fatal("expected Exists() to report true after Save")
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Region != "sfo3" {
		t.Errorf("got Region %q, want %q", got.Region, "sfo3")
	}
	if got.Provider != cfg.Provider {
		t.Errorf("got Provider %q, want %q", got.Provider, cfg.Provider)
	}
}

func TestSetRejectsUnknownKey(t *testing.T) {
	cfg := Default()
	if err := Set(&cfg, "not_a_real_field", "x"); err == nil {
		t.Fatal("expected Set to reject an unknown key")
	}
}

func TestSetUpdatesKnownFields(t *testing.T) {
	cfg := Default()
	if err := Set(&cfg, "size", "s-4vcpu-8gb"); err != nil {
		t.Fatalf("Set(size) error = %v", err)
	}
	if cfg.Size != "s-4vcpu-8gb" {
		t.Errorf("got Size %q, want %q", cfg.Size, "s-4vcpu-8gb")
	}

	if err := Set(&cfg, "idle_timeout_secs", "600"); err != nil {
		t.Fatalf("Set(idle_timeout_secs) error = %v", err)
	}
	if cfg.IdleTimeoutSecs != 600 {
		t.Errorf("got IdleTimeoutSecs %d, want 600", cfg.IdleTimeoutSecs)
	}

	if err := Set(&cfg, "idle_timeout_secs", "not-a-number"); err == nil {
		t.Fatal("expected Set to reject a non-integer idle_timeout_secs")
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected Load to error on a missing file")
	}
}
