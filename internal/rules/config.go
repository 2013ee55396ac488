package rules

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds the rule thresholds, all expressed in percent. Funded
// accounts deliberately have no profit target entry.
type Config struct {
	OverallDrawdownPct decimal.Decimal
	DailyDrawdownPct   decimal.Decimal
	ProfitTargetPct    map[Tier]decimal.Decimal
}

// DefaultConfig returns the standard challenge thresholds: 12% overall
// drawdown, 6% daily drawdown, and 9/8/5% profit targets by tier.
func DefaultConfig() Config {
	return Config{
		OverallDrawdownPct: decimal.NewFromInt(12),
		DailyDrawdownPct:   decimal.NewFromInt(6),
		ProfitTargetPct: map[Tier]decimal.Decimal{
			TierOnePhase:      decimal.NewFromInt(9),
			TierTwoPhase:      decimal.NewFromInt(8),
			TierTwoPhaseStep2: decimal.NewFromInt(5),
		},
	}
}

// configFile is the YAML shape for threshold overrides.
type configFile struct {
	OverallDrawdownPct float64            `yaml:"overall_drawdown_pct"`
	DailyDrawdownPct   float64            `yaml:"daily_drawdown_pct"`
	ProfitTargets      map[string]float64 `yaml:"profit_targets"`
}

// LoadConfig reads threshold overrides from a YAML file. Fields left at
// zero keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("parse rules config: %w", err)
	}

	if file.OverallDrawdownPct != 0 {
		cfg.OverallDrawdownPct = decimal.NewFromFloat(file.OverallDrawdownPct)
	}
	if file.DailyDrawdownPct != 0 {
		cfg.DailyDrawdownPct = decimal.NewFromFloat(file.DailyDrawdownPct)
	}
	for tier, pct := range file.ProfitTargets {
		if Tier(tier) == TierFunded {
			return Config{}, fmt.Errorf("funded accounts cannot have a profit target")
		}
		cfg.ProfitTargetPct[Tier(tier)] = decimal.NewFromFloat(pct)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks threshold sanity.
func (c Config) Validate() error {
	if !c.OverallDrawdownPct.IsPositive() {
		return fmt.Errorf("overall drawdown threshold must be positive, got %s", c.OverallDrawdownPct)
	}
	if !c.DailyDrawdownPct.IsPositive() {
		return fmt.Errorf("daily drawdown threshold must be positive, got %s", c.DailyDrawdownPct)
	}
	if c.OverallDrawdownPct.LessThanOrEqual(c.DailyDrawdownPct) {
		return fmt.Errorf("overall drawdown threshold (%s) must exceed daily (%s)",
			c.OverallDrawdownPct, c.DailyDrawdownPct)
	}
	for tier, pct := range c.ProfitTargetPct {
		if !pct.IsPositive() {
			return fmt.Errorf("profit target for %s must be positive, got %s", tier, pct)
		}
	}
	return nil
}
