package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event enumerates the monitoring topics inside the core.
type Event string

const (
	EventBreachDetected     Event = "breach_detected"
	EventProfitTarget       Event = "profit_target_reached"
	EventEvaluationFailed   Event = "evaluation_failed"
	EventBaselineReset      Event = "baseline_reset"
	EventNotificationFailed Event = "notification_failed"
)

// BreachAlert is published on EventBreachDetected.
type BreachAlert struct {
	AccountID       string
	Kind            string
	Equity          decimal.Decimal
	DrawdownPercent decimal.Decimal
}

// TargetAlert is published on EventProfitTarget.
type TargetAlert struct {
	AccountID string
}

// EvaluationFailure is published on EventEvaluationFailed.
type EvaluationFailure struct {
	AccountID string
	Reason    string
}

// BaselineReset is published on EventBaselineReset after a day rollover.
type BaselineReset struct {
	AccountID       string
	StartingBalance decimal.Decimal
	LastChecked     time.Time
}

// NotificationFailure is published on EventNotificationFailed when an
// outbound delivery is dropped.
type NotificationFailure struct {
	AccountID string
	Kind      string
	Err       string
}
