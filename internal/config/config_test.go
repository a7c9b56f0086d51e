package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_EMAIL_DOMAIN", "")
	t.Setenv("SWEEP_INTERVAL", "")

	cfg := Load()
	if cfg.Port != "4000" {
		t.Errorf("Port = %q, want 4000", cfg.Port)
	}
	if cfg.AllowedEmailDomain != "afacademy.af.edu" {
		t.Errorf("AllowedEmailDomain = %q", cfg.AllowedEmailDomain)
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("SweepInterval = %v, want 1h", cfg.SweepInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "memory")
	t.Setenv("SWEEP_ENABLED", "true")
	t.Setenv("SWEEP_GRACE", "90m")
	t.Setenv("SWEEP_INTERVAL", "not-a-duration")

	cfg := Load()
	if !cfg.UseMemoryStore() {
		t.Error("UseMemoryStore() = false for DATABASE_URL=memory")
	}
	if !cfg.SweepEnabled {
		t.Error("SweepEnabled = false")
	}
	if cfg.SweepGrace != 90*time.Minute {
		t.Errorf("SweepGrace = %v", cfg.SweepGrace)
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("invalid duration should fall back to default, got %v", cfg.SweepInterval)
	}
}
