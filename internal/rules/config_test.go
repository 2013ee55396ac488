package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeRules(t, `
overall_drawdown_pct: 10
profit_targets:
  one-phase: 10
  two-phase-step2: 4
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.OverallDrawdownPct.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("OverallDrawdownPct=%s, expected 10", cfg.OverallDrawdownPct)
	}
	// Untouched fields keep their defaults.
	if !cfg.DailyDrawdownPct.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("DailyDrawdownPct=%s, expected default 6", cfg.DailyDrawdownPct)
	}
	if !cfg.ProfitTargetPct[TierOnePhase].Equal(decimal.NewFromInt(10)) {
		t.Fatalf("one-phase target=%s, expected 10", cfg.ProfitTargetPct[TierOnePhase])
	}
	if !cfg.ProfitTargetPct[TierTwoPhase].Equal(decimal.NewFromInt(8)) {
		t.Fatalf("two-phase target=%s, expected default 8", cfg.ProfitTargetPct[TierTwoPhase])
	}
	if !cfg.ProfitTargetPct[TierTwoPhaseStep2].Equal(decimal.NewFromInt(4)) {
		t.Fatalf("two-phase-step2 target=%s, expected 4", cfg.ProfitTargetPct[TierTwoPhaseStep2])
	}
}

func TestLoadConfigRejectsBadThresholds(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "overall not above daily",
			body: "overall_drawdown_pct: 5\ndaily_drawdown_pct: 6\n",
		},
		{
			name: "negative target",
			body: "profit_targets:\n  one-phase: -3\n",
		},
		{
			name: "funded target not allowed",
			body: "profit_targets:\n  funded: 5\n",
		},
		{
			name: "not yaml",
			body: "{{{",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeRules(t, tt.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
