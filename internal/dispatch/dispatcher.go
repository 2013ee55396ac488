// Package dispatch fans observations out to the rule evaluator across many
// accounts, with per-account isolation, push-update coalescing and listener
// lifecycle management.
package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"challenge-monitor/internal/events"
	"challenge-monitor/internal/monitor"
	"challenge-monitor/internal/rules"
	"challenge-monitor/pkg/db"
	"challenge-monitor/pkg/metastats"

	"github.com/shopspring/decimal"
)

// AccountStore is the persistence surface the dispatcher needs.
type AccountStore interface {
	GetByAccountID(ctx context.Context, accountID string) (db.Challenge, error)
	ListInProgressAccountIDs(ctx context.Context) ([]string, error)
	UpdateDailyBaseline(ctx context.Context, id string, startingBalance float64, lastChecked time.Time) error
	SetStatus(ctx context.Context, id, status string) error
}

// MetricsFetcher pulls the current observation for one account.
type MetricsFetcher interface {
	GetMetrics(ctx context.Context, accountID string) (metastats.Metrics, error)
}

// Sink receives verdicts for outbound delivery. Implementations must not
// fail the caller.
type Sink interface {
	Notify(ctx context.Context, v rules.Verdict, snap rules.AccountSnapshot)
	NotifyNewDay(ctx context.Context, snap rules.AccountSnapshot)
}

// Outcome pairs one account snapshot with the verdict of its evaluation.
type Outcome struct {
	Snapshot rules.AccountSnapshot `json:"account"`
	Verdict  rules.Verdict         `json:"verdict"`
}

// Dispatcher runs reset-then-evaluate-then-notify passes over accounts.
type Dispatcher struct {
	Eval     *rules.Evaluator
	Boundary rules.Boundary
	Fetcher  MetricsFetcher
	Store    AccountStore
	Sink     Sink
	Bus      *events.Bus

	// Now is the clock; tests override it.
	Now func() time.Time
}

// New wires a dispatcher with the real clock.
func New(eval *rules.Evaluator, boundary rules.Boundary, fetcher MetricsFetcher, store AccountStore, sink Sink, bus *events.Bus) *Dispatcher {
	return &Dispatcher{
		Eval:     eval,
		Boundary: boundary,
		Fetcher:  fetcher,
		Store:    store,
		Sink:     sink,
		Bus:      bus,
		Now:      time.Now,
	}
}

// SnapshotFrom projects a store row into the evaluator's snapshot.
func SnapshotFrom(ch db.Challenge) rules.AccountSnapshot {
	return rules.AccountSnapshot{
		ID:              ch.ID,
		AccountID:       ch.AccountID,
		ChallengeType:   tierFor(ch),
		InitialBalance:  decimal.NewFromFloat(ch.InitialBalance),
		StartingBalance: decimal.NewFromFloat(ch.StartingBalance),
		LastChecked:     ch.LastChecked,
	}
}

// tierFor resolves the effective rule tier. The account type routes the
// tracker: funded accounts have no target, second-step two-phase accounts
// run the 5% target, and first-step accounts pick 9% or 8% by challenge
// type.
func tierFor(ch db.Challenge) rules.Tier {
	switch ch.AccountType {
	case db.AccountTypeFunded:
		return rules.TierFunded
	case db.AccountTypeTwoPhase:
		return rules.TierTwoPhaseStep2
	default:
		return rules.Tier(ch.ChallengeType)
	}
}

// RunBatch evaluates every account concurrently and returns one outcome
// per input row, in input order. A failure for one account never affects
// its siblings, and the caller never receives a hard error.
func (d *Dispatcher) RunBatch(ctx context.Context, chs []db.Challenge) []Outcome {
	outcomes := make([]Outcome, len(chs))

	var wg sync.WaitGroup
	for i, ch := range chs {
		wg.Add(1)
		go func(i int, ch db.Challenge) {
			defer wg.Done()
			outcomes[i] = d.safeEvaluate(ctx, ch)
		}(i, ch)
	}
	wg.Wait()

	return outcomes
}

// safeEvaluate fetches the observation and runs one pass, converting any
// failure, including a panic, into an evaluation-failed outcome.
func (d *Dispatcher) safeEvaluate(ctx context.Context, ch db.Challenge) (out Outcome) {
	snap := SnapshotFrom(ch)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("evaluation panic for account %s: %v", ch.AccountID, r)
			monitor.RecordEvaluation(string(rules.VerdictEvaluationFailed))
			out = Outcome{Snapshot: snap, Verdict: rules.EvaluationFailed()}
		}
	}()

	m, err := d.Fetcher.GetMetrics(ctx, ch.AccountID)
	if err != nil {
		log.Printf("observation fetch failed for account %s: %v", ch.AccountID, err)
		monitor.RecordEvaluation(string(rules.VerdictEvaluationFailed))
		d.publish(events.EventEvaluationFailed, events.EvaluationFailure{
			AccountID: ch.AccountID,
			Reason:    err.Error(),
		})
		return Outcome{Snapshot: snap, Verdict: rules.EvaluationFailed()}
	}

	obs := rules.Observation{
		Equity:     decimal.NewFromFloat(m.Equity),
		Balance:    decimal.NewFromFloat(m.Balance),
		ObservedAt: d.Now(),
	}
	return d.RunOne(ctx, snap, obs)
}

// RunOne runs a single reset-then-evaluate-then-notify pass. The daily
// reset is applied to the snapshot before the evaluator sees it, so the
// daily drawdown always reads the rolled baseline.
func (d *Dispatcher) RunOne(ctx context.Context, snap rules.AccountSnapshot, obs rules.Observation) Outcome {
	start := time.Now()
	defer func() { monitor.ObserveEvaluation(time.Since(start)) }()

	dec := d.Boundary.MaybeReset(snap, obs, d.Now())
	if dec.Occurred {
		snap.StartingBalance = dec.StartingBalance
		snap.LastChecked = dec.LastChecked
		d.persistBaseline(ctx, snap)
	}

	v := d.Eval.Evaluate(snap, obs)
	d.record(v, snap)
	d.Sink.Notify(ctx, v, snap)
	if v.Terminal() {
		d.conclude(ctx, v, snap)
	}

	return Outcome{Snapshot: snap, Verdict: v}
}

// persistBaseline writes the rolled baseline back to the store and tells
// the backend about the new day. Failures are absorbed: the stale
// last_checked simply makes the next cycle re-attempt the roll.
func (d *Dispatcher) persistBaseline(ctx context.Context, snap rules.AccountSnapshot) {
	err := d.Store.UpdateDailyBaseline(ctx, snap.ID,
		snap.StartingBalance.InexactFloat64(), snap.LastChecked)
	if err != nil {
		log.Printf("baseline persist failed for account %s: %v", snap.AccountID, err)
		monitor.RecordPersistenceFailure()
	}

	monitor.RecordBaselineReset()
	d.publish(events.EventBaselineReset, events.BaselineReset{
		AccountID:       snap.AccountID,
		StartingBalance: snap.StartingBalance,
		LastChecked:     snap.LastChecked,
	})
	d.Sink.NotifyNewDay(ctx, snap)
}

// conclude moves the challenge row to its terminal status.
func (d *Dispatcher) conclude(ctx context.Context, v rules.Verdict, snap rules.AccountSnapshot) {
	status := db.StatusFailed
	if v.Kind == rules.VerdictProfitTarget {
		status = db.StatusPassed
	}
	if err := d.Store.SetStatus(ctx, snap.ID, status); err != nil {
		log.Printf("status persist failed for account %s: %v", snap.AccountID, err)
		monitor.RecordPersistenceFailure()
	}
}

func (d *Dispatcher) record(v rules.Verdict, snap rules.AccountSnapshot) {
	monitor.RecordEvaluation(string(v.Kind))

	switch v.Kind {
	case rules.VerdictBreach:
		monitor.RecordBreach(string(v.Breach))
		d.publish(events.EventBreachDetected, events.BreachAlert{
			AccountID:       snap.AccountID,
			Kind:            string(v.Breach),
			Equity:          v.Equity,
			DrawdownPercent: v.DrawdownPercent,
		})
	case rules.VerdictProfitTarget:
		monitor.RecordProfitTarget()
		d.publish(events.EventProfitTarget, events.TargetAlert{AccountID: snap.AccountID})
	case rules.VerdictEvaluationFailed:
		d.publish(events.EventEvaluationFailed, events.EvaluationFailure{
			AccountID: snap.AccountID,
			Reason:    "evaluation failed",
		})
	}
}

func (d *Dispatcher) publish(e events.Event, payload any) {
	if d.Bus != nil {
		d.Bus.Publish(e, payload)
	}
}
