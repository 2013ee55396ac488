package rules

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Boundary is the recurring daily instant that partitions time into
// trading days: a fixed hour in a reference timezone.
type Boundary struct {
	Hour int
	Loc  *time.Location
}

// NewBoundary builds a trading-day boundary, e.g. NewBoundary(17,
// "America/New_York") for the 5pm ET rollover.
func NewBoundary(hour int, tz string) (Boundary, error) {
	if hour < 0 || hour > 23 {
		return Boundary{}, fmt.Errorf("boundary hour must be 0-23, got %d", hour)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Boundary{}, fmt.Errorf("load boundary timezone: %w", err)
	}
	return Boundary{Hour: hour, Loc: loc}, nil
}

// LastRollover returns the most recent boundary instant at or before now.
// If now is earlier than today's boundary hour, that is yesterday's.
func (b Boundary) LastRollover(now time.Time) time.Time {
	local := now.In(b.Loc)
	rollover := time.Date(local.Year(), local.Month(), local.Day(), b.Hour, 0, 0, 0, b.Loc)
	if local.Before(rollover) {
		rollover = rollover.AddDate(0, 0, -1)
	}
	return rollover
}

// ResetDecision is the outcome of the daily reset policy. When Occurred is
// false the snapshot values are returned unchanged.
type ResetDecision struct {
	StartingBalance decimal.Decimal
	LastChecked     time.Time
	Occurred        bool
}

// MaybeReset decides whether the intraday baseline must roll forward: it
// does iff the account was last checked strictly before the most recent
// boundary instant. The new baseline is the current equity observation.
// Callers must apply the decision before computing the daily drawdown.
func (b Boundary) MaybeReset(snap AccountSnapshot, obs Observation, now time.Time) ResetDecision {
	if snap.LastChecked.Before(b.LastRollover(now)) {
		return ResetDecision{
			StartingBalance: obs.Equity,
			LastChecked:     now,
			Occurred:        true,
		}
	}
	return ResetDecision{
		StartingBalance: snap.StartingBalance,
		LastChecked:     snap.LastChecked,
	}
}
