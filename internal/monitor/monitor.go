package monitor

import (
	"context"
	"fmt"
	"log"

	"challenge-monitor/internal/events"
)

// Monitor watches evaluation events and emits alert lines. Alerts are
// observability only; the notification sink owns backend delivery.
type Monitor struct {
	Bus     *events.Bus
	AlertFn func(string)
}

// New creates a monitor that logs alerts through the standard logger.
func New(bus *events.Bus) *Monitor {
	return &Monitor{
		Bus:     bus,
		AlertFn: func(msg string) { log.Printf("[ALERT] %s", msg) },
	}
}

// Start subscribes to the alert-worthy topics until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.AlertFn == nil {
		log.Println("monitor not fully configured; skipping")
		return
	}
	for _, topic := range []events.Event{
		events.EventBreachDetected,
		events.EventProfitTarget,
		events.EventNotificationFailed,
	} {
		stream, unsub := m.Bus.Subscribe(topic, 50)
		go func() {
			defer unsub()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-stream:
					if !ok {
						return
					}
					m.AlertFn(formatAlert(msg))
				}
			}
		}()
	}
}

func formatAlert(msg any) string {
	switch t := msg.(type) {
	case events.BreachAlert:
		return fmt.Sprintf("account %s breached %s rule: equity %s, drawdown %s%%",
			t.AccountID, t.Kind, t.Equity, t.DrawdownPercent)
	case events.TargetAlert:
		return fmt.Sprintf("account %s reached its profit target", t.AccountID)
	case events.NotificationFailure:
		return fmt.Sprintf("dropped %s notification for account %s: %s", t.Kind, t.AccountID, t.Err)
	default:
		return fmt.Sprintf("alert: %v", msg)
	}
}
