package rules

import (
	"testing"

	"github.com/shopspring/decimal"
)

func snap(tier Tier, initial, starting float64) AccountSnapshot {
	return AccountSnapshot{
		ID:              "ch-1",
		AccountID:       "acc-1",
		ChallengeType:   tier,
		InitialBalance:  decimal.NewFromFloat(initial),
		StartingBalance: decimal.NewFromFloat(starting),
	}
}

func obs(equity, balance float64) Observation {
	return Observation{
		Equity:  decimal.NewFromFloat(equity),
		Balance: decimal.NewFromFloat(balance),
	}
}

func TestEvaluateRuleOrder(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	tests := []struct {
		name        string
		snap        AccountSnapshot
		obs         Observation
		wantKind    VerdictKind
		wantBreach  BreachKind
		wantPercent string
	}{
		{
			name:        "overall breach at 13 percent",
			snap:        snap(TierOnePhase, 100000, 100000),
			obs:         obs(87000, 87000),
			wantKind:    VerdictBreach,
			wantBreach:  BreachOverall,
			wantPercent: "13",
		},
		{
			name:        "overall threshold is inclusive",
			snap:        snap(TierOnePhase, 100000, 100000),
			obs:         obs(88000, 88000),
			wantKind:    VerdictBreach,
			wantBreach:  BreachOverall,
			wantPercent: "12",
		},
		{
			name:       "daily breach below daily threshold only",
			snap:       snap(TierOnePhase, 100000, 95000),
			obs:        obs(89000, 89000),
			wantKind:   VerdictBreach,
			wantBreach: BreachDaily,
		},
		{
			name:        "daily threshold is inclusive",
			snap:        snap(TierTwoPhase, 100000, 100000),
			obs:         obs(94000, 94000),
			wantKind:    VerdictBreach,
			wantBreach:  BreachDaily,
			wantPercent: "6",
		},
		{
			name:     "one phase profit target on balance",
			snap:     snap(TierOnePhase, 100000, 100000),
			obs:      obs(99000, 109500),
			wantKind: VerdictProfitTarget,
		},
		{
			name:     "one phase target threshold inclusive",
			snap:     snap(TierOnePhase, 100000, 100000),
			obs:      obs(100000, 109000),
			wantKind: VerdictProfitTarget,
		},
		{
			name:     "two phase target at 8 percent",
			snap:     snap(TierTwoPhase, 100000, 100000),
			obs:      obs(100000, 108000),
			wantKind: VerdictProfitTarget,
		},
		{
			name:     "two phase step two target at 5 percent",
			snap:     snap(TierTwoPhaseStep2, 100000, 100000),
			obs:      obs(100000, 105000),
			wantKind: VerdictProfitTarget,
		},
		{
			name:     "two phase balance below target stays clear",
			snap:     snap(TierTwoPhase, 100000, 100000),
			obs:      obs(100000, 107999),
			wantKind: VerdictClear,
		},
		{
			name:     "funded has no profit target",
			snap:     snap(TierFunded, 100000, 100000),
			obs:      obs(120000, 120000),
			wantKind: VerdictClear,
		},
		{
			name:     "empty challenge type treated as funded",
			snap:     snap("", 100000, 100000),
			obs:      obs(120000, 120000),
			wantKind: VerdictClear,
		},
		{
			name:       "breach dominates profit target",
			snap:       snap(TierOnePhase, 100000, 100000),
			obs:        obs(87000, 110000),
			wantKind:   VerdictBreach,
			wantBreach: BreachOverall,
		},
		{
			name:     "no rule matched",
			snap:     snap(TierOnePhase, 100000, 100000),
			obs:      obs(99000, 99500),
			wantKind: VerdictClear,
		},
		{
			name:     "non positive initial balance fails evaluation",
			snap:     snap(TierOnePhase, 0, 100000),
			obs:      obs(99000, 99000),
			wantKind: VerdictEvaluationFailed,
		},
		{
			name:     "non positive starting balance fails evaluation",
			snap:     snap(TierOnePhase, 100000, -1),
			obs:      obs(99000, 99000),
			wantKind: VerdictEvaluationFailed,
		},
		{
			name:       "overall breach wins over bad starting balance",
			snap:       snap(TierOnePhase, 100000, -5000),
			obs:        obs(-5000, -5000),
			wantKind:   VerdictBreach,
			wantBreach: BreachOverall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := e.Evaluate(tt.snap, tt.obs)
			if v.Kind != tt.wantKind {
				t.Fatalf("Kind=%s, expected %s", v.Kind, tt.wantKind)
			}
			if tt.wantKind == VerdictBreach {
				if v.Breach != tt.wantBreach {
					t.Fatalf("Breach=%s, expected %s", v.Breach, tt.wantBreach)
				}
				if !v.Equity.Equal(tt.obs.Equity) {
					t.Fatalf("Equity=%s, expected %s", v.Equity, tt.obs.Equity)
				}
				if tt.wantPercent != "" {
					want := decimal.RequireFromString(tt.wantPercent)
					if !v.DrawdownPercent.Equal(want) {
						t.Fatalf("DrawdownPercent=%s, expected %s", v.DrawdownPercent, want)
					}
				}
			}
		})
	}
}

// Any equity below 88% of the initial balance must trip the overall rule
// regardless of the daily baseline or the account's balance.
func TestOverallRuleDominates(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	for _, equity := range []float64{87999.99, 80000, 50000, 0, -5000} {
		v := e.Evaluate(snap(TierOnePhase, 100000, 100000), obs(equity, 200000))
		if v.Kind != VerdictBreach || v.Breach != BreachOverall {
			t.Fatalf("equity=%v: got %s/%s, expected overall breach", equity, v.Kind, v.Breach)
		}
	}
}

// Equity between the overall and daily bands breaches the daily rule when
// it sits at or below 94% of the starting baseline.
func TestDailyBand(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	for _, equity := range []float64{89000, 90000, 93000, 94000} {
		v := e.Evaluate(snap(TierOnePhase, 100000, 100000), obs(equity, equity))
		if v.Kind != VerdictBreach || v.Breach != BreachDaily {
			t.Fatalf("equity=%v: got %s/%s, expected daily breach", equity, v.Kind, v.Breach)
		}
	}

	v := e.Evaluate(snap(TierOnePhase, 100000, 100000), obs(94000.01, 94000.01))
	if v.Kind != VerdictClear {
		t.Fatalf("equity just above daily band: got %s, expected clear", v.Kind)
	}
}

func TestVerdictTerminal(t *testing.T) {
	if !Breached(BreachDaily, decimal.Zero, decimal.Zero).Terminal() {
		t.Fatal("breach should be terminal")
	}
	if !ProfitTarget().Terminal() {
		t.Fatal("profit target should be terminal")
	}
	if Clear().Terminal() {
		t.Fatal("clear should not be terminal")
	}
	if EvaluationFailed().Terminal() {
		t.Fatal("evaluation failure should not be terminal")
	}
}
