package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"challenge-monitor/internal/rules"
	"challenge-monitor/pkg/db"
	"challenge-monitor/pkg/metastats"
)

type baselineWrite struct {
	ID              string
	StartingBalance float64
	LastChecked     time.Time
}

type statusWrite struct {
	ID     string
	Status string
}

type fakeStore struct {
	mu             sync.Mutex
	rows           []db.Challenge
	baselineWrites []baselineWrite
	statusWrites   []statusWrite
	failBaseline   bool
	failStatus     bool
}

func (s *fakeStore) GetByAccountID(_ context.Context, accountID string) (db.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.rows {
		if c.AccountID == accountID {
			return c, nil
		}
	}
	return db.Challenge{}, db.ErrChallengeNotFound
}

func (s *fakeStore) ListInProgressAccountIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, c := range s.rows {
		if c.Status == db.StatusInProgress && c.AccountID != "" {
			ids = append(ids, c.AccountID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeStore) UpdateDailyBaseline(_ context.Context, id string, startingBalance float64, lastChecked time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failBaseline {
		return fmt.Errorf("baseline write refused")
	}
	s.baselineWrites = append(s.baselineWrites, baselineWrite{id, startingBalance, lastChecked})
	for i := range s.rows {
		if s.rows[i].ID == id {
			s.rows[i].StartingBalance = startingBalance
			s.rows[i].LastChecked = lastChecked
		}
	}
	return nil
}

func (s *fakeStore) SetStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStatus {
		return fmt.Errorf("status write refused")
	}
	s.statusWrites = append(s.statusWrites, statusWrite{id, status})
	for i := range s.rows {
		if s.rows[i].ID == id {
			s.rows[i].Status = status
		}
	}
	return nil
}

func (s *fakeStore) baselines() []baselineWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]baselineWrite, len(s.baselineWrites))
	copy(out, s.baselineWrites)
	return out
}

func (s *fakeStore) statuses() []statusWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]statusWrite, len(s.statusWrites))
	copy(out, s.statusWrites)
	return out
}

type fakeFetcher struct {
	mu      sync.Mutex
	metrics map[string]metastats.Metrics
	errs    map[string]error
	panics  map[string]bool
	calls   []string
}

func (f *fakeFetcher) GetMetrics(_ context.Context, accountID string) (metastats.Metrics, error) {
	f.mu.Lock()
	f.calls = append(f.calls, accountID)
	f.mu.Unlock()

	if f.panics[accountID] {
		panic("fetcher blew up")
	}
	if err, ok := f.errs[accountID]; ok {
		return metastats.Metrics{}, err
	}
	return f.metrics[accountID], nil
}

type sinkCall struct {
	Verdict  rules.Verdict
	Snapshot rules.AccountSnapshot
}

type fakeSink struct {
	mu      sync.Mutex
	calls   []sinkCall
	newDays []rules.AccountSnapshot
}

func (s *fakeSink) Notify(_ context.Context, v rules.Verdict, snap rules.AccountSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{v, snap})
}

func (s *fakeSink) NotifyNewDay(_ context.Context, snap rules.AccountSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newDays = append(s.newDays, snap)
}

func (s *fakeSink) notifications() []sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sinkCall, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *fakeSink) newDayCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.newDays)
}

type streamSub struct {
	listener metastats.EquityListener
	done     chan struct{}
	once     sync.Once
	end      func()
}

// fakeStream mimics the provider stream: the subscription lives until its
// stop is called, the remote side drops it, or the subscribing context is
// cancelled.
type fakeStream struct {
	mu      sync.Mutex
	subs    map[string]*streamSub
	stopped map[string]int
	dialErr error
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		subs:    make(map[string]*streamSub),
		stopped: make(map[string]int),
	}
}

func (f *fakeStream) Listen(ctx context.Context, accountID string, l metastats.EquityListener) (func(), error) {
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	sub := &streamSub{listener: l, done: make(chan struct{})}
	f.mu.Lock()
	f.subs[accountID] = sub
	f.mu.Unlock()
	l.OnConnected(accountID)

	end := func() {
		var first bool
		sub.once.Do(func() {
			first = true
			close(sub.done)
			f.mu.Lock()
			if cur, ok := f.subs[accountID]; ok && cur == sub {
				delete(f.subs, accountID)
			}
			f.stopped[accountID]++
			f.mu.Unlock()
		})
		// OnDisconnected runs outside the Do so a re-entrant end (remove →
		// sub.stop) finds the Once completed and no-ops instead of
		// self-deadlocking.
		if first {
			l.OnDisconnected(accountID)
		}
	}
	sub.end = end
	go func() {
		select {
		case <-ctx.Done():
			end()
		case <-sub.done:
		}
	}()
	return end, nil
}

// push delivers an update to the account's listener if it is still live.
func (f *fakeStream) push(accountID string, eb metastats.EquityBalance) bool {
	f.mu.Lock()
	sub, ok := f.subs[accountID]
	f.mu.Unlock()
	if !ok {
		return false
	}
	sub.listener.OnUpdate(eb)
	return true
}

// drop simulates the remote side closing the account's stream.
func (f *fakeStream) drop(accountID string) {
	f.mu.Lock()
	sub, ok := f.subs[accountID]
	f.mu.Unlock()
	if ok {
		sub.end()
	}
}

func (f *fakeStream) stopCount(accountID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped[accountID]
}
