package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.DebounceWindow != 30*time.Second {
		t.Errorf("DebounceWindow = %v, want 30s", cfg.DebounceWindow)
	}
	if cfg.PollInterval != 0 {
		t.Errorf("PollInterval = %v, want 0 (disabled)", cfg.PollInterval)
	}
	if cfg.ResetHour != 17 || cfg.ResetTimezone != "America/New_York" {
		t.Errorf("boundary = %d %s, want 17 America/New_York", cfg.ResetHour, cfg.ResetTimezone)
	}
	if !cfg.StartListeners {
		t.Error("StartListeners should default to true")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEBOUNCE_WINDOW", "5s")
	t.Setenv("POLL_INTERVAL", "1m")
	t.Setenv("RESET_HOUR", "0")
	t.Setenv("RESET_TIMEZONE", "UTC")
	t.Setenv("START_LISTENERS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.DebounceWindow != 5*time.Second {
		t.Errorf("DebounceWindow = %v, want 5s", cfg.DebounceWindow)
	}
	if cfg.PollInterval != time.Minute {
		t.Errorf("PollInterval = %v, want 1m", cfg.PollInterval)
	}
	if cfg.ResetHour != 0 || cfg.ResetTimezone != "UTC" {
		t.Errorf("boundary = %d %s, want 0 UTC", cfg.ResetHour, cfg.ResetTimezone)
	}
	if cfg.StartListeners {
		t.Error("StartListeners should be disabled")
	}
}

func TestDurationFallbackOnGarbage(t *testing.T) {
	t.Setenv("DEBOUNCE_WINDOW", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DebounceWindow != 30*time.Second {
		t.Errorf("DebounceWindow = %v, want the 30s default", cfg.DebounceWindow)
	}
}

func TestResetHourZeroIsRespected(t *testing.T) {
	t.Setenv("RESET_HOUR", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ResetHour != 0 {
		t.Errorf("ResetHour = %d, want 0", cfg.ResetHour)
	}
}
