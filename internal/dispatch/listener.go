package dispatch

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"challenge-monitor/internal/events"
	"challenge-monitor/internal/monitor"
	"challenge-monitor/internal/rules"
	"challenge-monitor/pkg/db"
	"challenge-monitor/pkg/metastats"

	"github.com/shopspring/decimal"
)

// ErrAlreadyListening is returned when an account already has a live
// subscription.
var ErrAlreadyListening = errors.New("account already has an active listener")

// evaluationTimeout bounds one push-triggered evaluation pass.
const evaluationTimeout = 30 * time.Second

// StreamSource opens a per-account push subscription.
type StreamSource interface {
	Listen(ctx context.Context, accountID string, l metastats.EquityListener) (func(), error)
}

// Registry owns the push path: per-account subscriptions, their debounce
// windows, and teardown once an account reaches a terminal verdict.
type Registry struct {
	dispatcher *Dispatcher
	store      AccountStore
	stream     StreamSource
	debounce   *Debouncer

	// ctx bounds every subscription's lifetime. Subscriptions must
	// outlive the call that registered them (an HTTP request context
	// dies as soon as the response is written), so streams are opened
	// against this context, not the caller's.
	ctx context.Context

	mu     sync.Mutex
	active map[string]*subscription // accountID -> live subscription
}

type subscription struct {
	stop  func()
	owner *accountListener
}

// NewRegistry builds a listener registry with the given coalescing window.
// ctx is the registry's lifetime; cancelling it ends every subscription.
func NewRegistry(ctx context.Context, d *Dispatcher, store AccountStore, stream StreamSource, window time.Duration) *Registry {
	r := &Registry{
		dispatcher: d,
		store:      store,
		stream:     stream,
		ctx:        ctx,
		active:     make(map[string]*subscription),
	}
	r.debounce = NewDebouncer(window, r.evaluatePending)
	return r
}

// Register opens a subscription for one account. The subscription runs
// until a terminal verdict, Deregister, or registry shutdown; it does not
// end with ctx. Registering an account that already has one returns
// ErrAlreadyListening.
func (r *Registry) Register(ctx context.Context, accountID string) error {
	r.mu.Lock()
	if _, ok := r.active[accountID]; ok {
		r.mu.Unlock()
		return ErrAlreadyListening
	}
	r.mu.Unlock()

	owner := &accountListener{registry: r, accountID: accountID}
	stop, err := r.stream.Listen(r.ctx, accountID, owner)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, ok := r.active[accountID]; ok {
		// Lost a registration race; keep the first subscription.
		r.mu.Unlock()
		stop()
		return ErrAlreadyListening
	}
	r.active[accountID] = &subscription{stop: stop, owner: owner}
	r.mu.Unlock()

	monitor.ListenerStarted()
	log.Printf("listener started for account %s", accountID)
	return nil
}

// Deregister tears down the account's subscription and pending debounce
// window. Safe to call for accounts that were never registered.
func (r *Registry) Deregister(accountID string) {
	r.remove(accountID, nil)
}

// remove drops the account's subscription. When owner is non-nil, only the
// entry belonging to that exact subscription is removed; a losing
// registration race's teardown must not evict the winner.
func (r *Registry) remove(accountID string, owner *accountListener) {
	r.mu.Lock()
	sub, ok := r.active[accountID]
	if !ok || (owner != nil && sub.owner != owner) {
		r.mu.Unlock()
		return
	}
	delete(r.active, accountID)
	r.mu.Unlock()

	sub.stop()
	r.debounce.Cancel(accountID)
	monitor.ListenerStopped()
	log.Printf("listener stopped for account %s", accountID)
}

// RegisterAll starts listeners for every in-progress account. Individual
// failures are logged and skipped so one bad account cannot block the rest.
func (r *Registry) RegisterAll(ctx context.Context) {
	ids, err := r.store.ListInProgressAccountIDs(ctx)
	if err != nil {
		log.Printf("list accounts for listeners: %v", err)
		return
	}

	for _, id := range ids {
		if err := r.Register(ctx, id); err != nil && !errors.Is(err, ErrAlreadyListening) {
			log.Printf("failed to start listener for account %s: %v", id, err)
		}
	}
}

// Active returns the registered account ids, sorted.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close deregisters every account.
func (r *Registry) Close() {
	for _, id := range r.Active() {
		r.Deregister(id)
	}
}

// evaluatePending is the debouncer's fire callback: it re-reads the
// account, runs one evaluation pass, and tears the listener down when the
// verdict concludes the account. It runs on a timer goroutine, so a panic
// here would take the whole process down; recover it like the batch path
// does.
func (r *Registry) evaluatePending(accountID string, obs rules.Observation) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("evaluation panic for account %s: %v", accountID, p)
			monitor.RecordEvaluation(string(rules.VerdictEvaluationFailed))
			r.dispatcher.publish(events.EventEvaluationFailed, events.EvaluationFailure{
				AccountID: accountID,
				Reason:    "evaluation panic",
			})
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), evaluationTimeout)
	defer cancel()

	ch, err := r.store.GetByAccountID(ctx, accountID)
	if err != nil {
		log.Printf("snapshot fetch failed for account %s: %v", accountID, err)
		monitor.RecordEvaluation(string(rules.VerdictEvaluationFailed))
		r.dispatcher.publish(events.EventEvaluationFailed, events.EvaluationFailure{
			AccountID: accountID,
			Reason:    err.Error(),
		})
		return
	}
	if ch.Status != db.StatusInProgress {
		// Concluded elsewhere (e.g. the poll path); drop the subscription.
		r.Deregister(accountID)
		return
	}

	out := r.dispatcher.RunOne(ctx, SnapshotFrom(ch), obs)
	if out.Verdict.Terminal() {
		r.Deregister(accountID)
	}
}

// accountListener adapts the provider's push callbacks onto the debounce
// registry.
type accountListener struct {
	registry  *Registry
	accountID string
}

func (l *accountListener) OnUpdate(eb metastats.EquityBalance) {
	l.registry.debounce.Offer(l.accountID, rules.Observation{
		Equity:     decimal.NewFromFloat(eb.Equity),
		Balance:    decimal.NewFromFloat(eb.Balance),
		ObservedAt: eb.At,
	})
}

func (l *accountListener) OnConnected(accountID string) {
	log.Printf("equity stream connected for account %s", accountID)
}

// OnDisconnected fires for both deliberate teardown and a stream dying on
// its own. The second case is what matters here: a dead stream must free
// its registration slot or re-registration would be refused forever.
func (l *accountListener) OnDisconnected(accountID string) {
	log.Printf("equity stream disconnected for account %s", accountID)
	l.registry.remove(accountID, l)
}
