package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.RoleSwitch.CooldownMinutes != 15 {
		t.Errorf("expected default cooldown 15, got %d", cfg.RoleSwitch.CooldownMinutes)
	}
	if cfg.RoleSwitch.MaxDailySwitches != 3 {
		t.Errorf("expected default max daily 3, got %d", cfg.RoleSwitch.MaxDailySwitches)
	}
	if cfg.RoleSwitch.CompletionThreshold != 80 {
		t.Errorf("expected default threshold 80, got %d", cfg.RoleSwitch.CompletionThreshold)
	}
	if cfg.GetCooldownDuration() != 15*time.Minute {
		t.Errorf("expected 15m cooldown duration, got %v", cfg.GetCooldownDuration())
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("COOLDOWN_MINUTES", "30")
	t.Setenv("MAX_DAILY_SWITCHES", "5")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.RoleSwitch.CooldownMinutes != 30 {
		t.Errorf("expected cooldown 30, got %d", cfg.RoleSwitch.CooldownMinutes)
	}
	if cfg.RoleSwitch.MaxDailySwitches != 5 {
		t.Errorf("expected max daily 5, got %d", cfg.RoleSwitch.MaxDailySwitches)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("expected db.internal, got %s", cfg.Database.Host)
	}
}

func TestValidate_Bounds(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("COMPLETION_THRESHOLD", "150")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range completion threshold")
	}
}
