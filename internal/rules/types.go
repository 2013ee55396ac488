package rules

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier identifies the challenge stage an account is in. The tier selects
// which profit target applies; funded accounts have none.
type Tier string

const (
	TierOnePhase      Tier = "one-phase"
	TierTwoPhase      Tier = "two-phase"
	TierTwoPhaseStep2 Tier = "two-phase-step2"
	TierFunded        Tier = "funded"
)

// AccountSnapshot is the immutable projection of an account read fresh
// before every evaluation.
type AccountSnapshot struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"account_id"`
	ChallengeType   Tier            `json:"challenge_type"`
	InitialBalance  decimal.Decimal `json:"initial_balance"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	LastChecked     time.Time       `json:"last_checked"`
}

// Tier resolves the effective tier; an absent challenge type means the
// account is funded.
func (s AccountSnapshot) Tier() Tier {
	if s.ChallengeType == "" {
		return TierFunded
	}
	return s.ChallengeType
}

// Observation is one equity/balance reading. Equity includes floating P&L,
// Balance only realized P&L.
type Observation struct {
	Equity     decimal.Decimal `json:"equity"`
	Balance    decimal.Decimal `json:"balance"`
	ObservedAt time.Time       `json:"observed_at"`
}

// BreachKind distinguishes the two drawdown rules.
type BreachKind string

const (
	BreachOverall BreachKind = "OverAll"
	BreachDaily   BreachKind = "Daily"
)

// VerdictKind enumerates the possible outcomes of one evaluation.
type VerdictKind string

const (
	VerdictClear            VerdictKind = "clear"
	VerdictBreach           VerdictKind = "breach"
	VerdictProfitTarget     VerdictKind = "profit_target"
	VerdictEvaluationFailed VerdictKind = "evaluation_failed"
)

// Verdict is the discriminated result of one evaluation. Breach fields are
// only meaningful when Kind is VerdictBreach.
type Verdict struct {
	Kind            VerdictKind     `json:"kind"`
	Breach          BreachKind      `json:"breach,omitempty"`
	Equity          decimal.Decimal `json:"equity,omitempty"`
	DrawdownPercent decimal.Decimal `json:"drawdown_percent,omitempty"`
}

// Clear returns the no-rule-matched verdict.
func Clear() Verdict {
	return Verdict{Kind: VerdictClear}
}

// EvaluationFailed returns the verdict for an evaluation that could not
// complete (upstream unavailable, malformed input).
func EvaluationFailed() Verdict {
	return Verdict{Kind: VerdictEvaluationFailed}
}

// ProfitTarget returns the target-reached verdict.
func ProfitTarget() Verdict {
	return Verdict{Kind: VerdictProfitTarget}
}

// Breached builds a breach verdict for the given rule.
func Breached(kind BreachKind, equity, drawdownPct decimal.Decimal) Verdict {
	return Verdict{
		Kind:            VerdictBreach,
		Breach:          kind,
		Equity:          equity,
		DrawdownPercent: drawdownPct,
	}
}

// Terminal reports whether this verdict concludes the account: a breach
// fails the challenge, a profit target passes it. Terminal verdicts tear
// down the account's push subscription.
func (v Verdict) Terminal() bool {
	return v.Kind == VerdictBreach || v.Kind == VerdictProfitTarget
}
