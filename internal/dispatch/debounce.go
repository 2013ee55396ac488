package dispatch

import (
	"sync"
	"time"

	"challenge-monitor/internal/rules"
)

// Debouncer coalesces bursts of push observations per account: the first
// observation opens a window, later ones replace the pending value, and
// when the window closes only the most recent observation fires. Entries
// are independent per account.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	fire    func(accountID string, obs rules.Observation)
	entries map[string]*debounceEntry
}

type debounceEntry struct {
	pending rules.Observation
	timer   *time.Timer
}

// NewDebouncer creates a debouncer that calls fire with the trailing
// observation once per window per account.
func NewDebouncer(window time.Duration, fire func(string, rules.Observation)) *Debouncer {
	return &Debouncer{
		window:  window,
		fire:    fire,
		entries: make(map[string]*debounceEntry),
	}
}

// Offer records an observation for the account. Intermediate observations
// within an open window are discarded, not queued.
func (d *Debouncer) Offer(accountID string, obs rules.Observation) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[accountID]; ok {
		e.pending = obs
		return
	}

	e := &debounceEntry{pending: obs}
	e.timer = time.AfterFunc(d.window, func() { d.flush(accountID) })
	d.entries[accountID] = e
}

func (d *Debouncer) flush(accountID string) {
	d.mu.Lock()
	e, ok := d.entries[accountID]
	if !ok {
		// Cancelled between the timer firing and the flush running.
		d.mu.Unlock()
		return
	}
	delete(d.entries, accountID)
	pending := e.pending
	d.mu.Unlock()

	d.fire(accountID, pending)
}

// Cancel drops the account's pending window, if any. Idempotent.
func (d *Debouncer) Cancel(accountID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[accountID]; ok {
		e.timer.Stop()
		delete(d.entries, accountID)
	}
}

// Pending reports how many accounts have an open window.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
