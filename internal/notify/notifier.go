// Package notify delivers breach and profit-target events to the backend.
// Delivery is at-most-once-attempted: failures are logged, counted and
// discarded, never retried and never surfaced to the evaluation path.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"challenge-monitor/internal/events"
	"challenge-monitor/internal/monitor"
	"challenge-monitor/internal/rules"
)

const (
	kindBreach       = "breach"
	kindProfitTarget = "profitTarget"
	kindNewDay       = "newDay"
)

// Notifier posts verdict updates to the backend with a shared token.
type Notifier struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Bus        *events.Bus
}

// New builds a notifier for the backend update endpoints.
func New(baseURL, token string, bus *events.Bus) *Notifier {
	return &Notifier{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Bus:        bus,
	}
}

// Notify reports a terminal verdict to the backend. Clear and failed
// evaluations produce no traffic. Errors never propagate to the caller.
func (n *Notifier) Notify(ctx context.Context, v rules.Verdict, snap rules.AccountSnapshot) {
	switch v.Kind {
	case rules.VerdictBreach:
		q := url.Values{}
		q.Set("type", string(v.Breach))
		q.Set("equity", v.Equity.String())
		q.Set("percentage", v.DrawdownPercent.String())
		u := fmt.Sprintf("%s/updates/breach/%s?%s", n.BaseURL, url.PathEscape(snap.ID), q.Encode())
		n.deliver(ctx, kindBreach, snap.AccountID, http.MethodGet, u, nil)

	case rules.VerdictProfitTarget:
		u := fmt.Sprintf("%s/updates/profitTarget/%s", n.BaseURL, url.PathEscape(snap.ID))
		n.deliver(ctx, kindProfitTarget, snap.AccountID, http.MethodGet, u, nil)
	}
}

// NotifyNewDay reports a rolled daily baseline to the backend.
func (n *Notifier) NotifyNewDay(ctx context.Context, snap rules.AccountSnapshot) {
	body, err := json.Marshal(map[string]any{
		"startingBalance": snap.StartingBalance,
		"lastChecked":     snap.LastChecked,
	})
	if err != nil {
		n.dropped(kindNewDay, snap.AccountID, err)
		return
	}
	u := fmt.Sprintf("%s/updates/newDay/%s", n.BaseURL, url.PathEscape(snap.ID))
	n.deliver(ctx, kindNewDay, snap.AccountID, http.MethodPost, u, body)
}

func (n *Notifier) deliver(ctx context.Context, kind, accountID, method, u string, body []byte) {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		n.dropped(kind, accountID, err)
		return
	}
	req.Header.Set("Authorization", n.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := n.HTTPClient.Do(req)
	if err != nil {
		n.dropped(kind, accountID, err)
		return
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		n.dropped(kind, accountID, fmt.Errorf("backend status %d", res.StatusCode))
	}
}

// dropped records a failed delivery without retrying it.
func (n *Notifier) dropped(kind, accountID string, err error) {
	log.Printf("dropped %s notification for account %s: %v", kind, accountID, err)
	monitor.RecordNotificationFailure(kind)
	if n.Bus != nil {
		n.Bus.Publish(events.EventNotificationFailed, events.NotificationFailure{
			AccountID: accountID,
			Kind:      kind,
			Err:       err.Error(),
		})
	}
}
