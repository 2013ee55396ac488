package rules

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluator applies the drawdown and profit-target rules to one account
// observation. It is pure: no I/O, no clock, and it never panics. Bad
// input yields VerdictEvaluationFailed.
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate runs the rules in strict order: overall drawdown, then daily
// drawdown, then the tier's profit target. The first matching rule wins,
// and all threshold comparisons are inclusive.
func (e *Evaluator) Evaluate(snap AccountSnapshot, obs Observation) Verdict {
	if !snap.InitialBalance.IsPositive() {
		return EvaluationFailed()
	}

	overall := snap.InitialBalance.Sub(obs.Equity).
		Div(snap.InitialBalance).Mul(hundred)
	if overall.GreaterThanOrEqual(e.cfg.OverallDrawdownPct) {
		return Breached(BreachOverall, obs.Equity, overall)
	}

	// The overall rule runs before this guard on purpose: a day rollover
	// can legitimately set the baseline to a non-positive equity, and that
	// equity must still count as an overall breach.
	if !snap.StartingBalance.IsPositive() {
		return EvaluationFailed()
	}

	// StartingBalance must already reflect any day rollover; the caller
	// runs the reset policy before evaluating.
	daily := snap.StartingBalance.Sub(obs.Equity).
		Div(snap.StartingBalance).Mul(hundred)
	if daily.GreaterThanOrEqual(e.cfg.DailyDrawdownPct) {
		return Breached(BreachDaily, obs.Equity, daily)
	}

	targetPct, ok := e.cfg.ProfitTargetPct[snap.Tier()]
	if !ok {
		// Funded accounts (or an unknown tier) carry no profit target.
		return Clear()
	}
	target := snap.InitialBalance.Add(snap.InitialBalance.Mul(targetPct).Div(hundred))
	if obs.Balance.GreaterThanOrEqual(target) {
		return ProfitTarget()
	}

	return Clear()
}
