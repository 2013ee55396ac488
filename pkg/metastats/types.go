package metastats

import "time"

// Metrics is the account metrics projection used by the trackers. The
// provider reports many more fields; only equity and balance matter here.
type Metrics struct {
	Equity  float64 `json:"equity"`
	Balance float64 `json:"balance"`
}

// EquityBalance is one push update from the equity/balance stream.
type EquityBalance struct {
	Equity  float64   `json:"equity"`
	Balance float64   `json:"balance"`
	At      time.Time `json:"-"`
}

// EquityListener is the capability interface a per-account subscription
// implements. OnUpdate may be called many times in quick succession; the
// consumer is responsible for any coalescing.
type EquityListener interface {
	OnUpdate(EquityBalance)
	OnConnected(accountID string)
	OnDisconnected(accountID string)
}
