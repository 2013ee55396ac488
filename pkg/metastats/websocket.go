package metastats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamClient manages per-account equity/balance streaming from the
// provider's websocket endpoint.
type StreamClient struct {
	StreamURL string
	AuthToken string
	dialer    *websocket.Dialer
}

// NewStreamClient builds a stream client for the given websocket base URL
// (e.g. wss://risk-management-api-v1.new-york.agiliumtrade.ai).
func NewStreamClient(streamURL, authToken string) *StreamClient {
	return &StreamClient{
		StreamURL: streamURL,
		AuthToken: authToken,
		dialer:    websocket.DefaultDialer,
	}
}

// SubscribeEquity opens the equity/balance stream for one account and
// pushes parsed updates into a channel. It returns the channel and a stop
// function; stop is safe to call more than once.
func (c *StreamClient) SubscribeEquity(ctx context.Context, accountID string) (<-chan EquityBalance, func(), error) {
	if accountID == "" {
		return nil, nil, fmt.Errorf("account id is empty")
	}
	u := fmt.Sprintf("%s/users/current/accounts/%s/equity-balance", c.StreamURL, accountID)

	header := http.Header{}
	header.Set("auth-token", c.AuthToken)

	conn, _, err := c.dialer.DialContext(ctx, u, header)
	if err != nil {
		return nil, nil, fmt.Errorf("dial equity stream for %s: %w", accountID, err)
	}

	out := make(chan EquityBalance, 100)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			// Ignore errors; connection may already be closed.
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		})
	}

	go func() {
		// The reader is the only sender on out, so it alone closes it.
		defer close(out)
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			default:
			}

			_, msg, err := conn.ReadMessage()
			if err != nil {
				// If connection already closed by caller/context, just exit quietly.
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
					strings.Contains(err.Error(), "use of closed network connection") {
					return
				}
				log.Printf("equity stream read error for %s: %v", accountID, err)
				return
			}

			parsed, err := parseEquityMessage(msg)
			if err != nil {
				log.Printf("equity stream parse error for %s: %v", accountID, err)
				continue
			}
			select {
			case out <- parsed:
			case <-done:
				return
			}
		}
	}()

	return out, stop, nil
}

// Listen attaches an EquityListener to one account's stream and returns a
// stop function that tears the subscription down.
func (c *StreamClient) Listen(ctx context.Context, accountID string, l EquityListener) (func(), error) {
	updates, stop, err := c.SubscribeEquity(ctx, accountID)
	if err != nil {
		return nil, err
	}

	go func() {
		l.OnConnected(accountID)
		defer l.OnDisconnected(accountID)
		for eb := range updates {
			l.OnUpdate(eb)
		}
	}()

	return stop, nil
}

func parseEquityMessage(msg []byte) (EquityBalance, error) {
	var eb EquityBalance
	if err := json.Unmarshal(msg, &eb); err != nil {
		return EquityBalance{}, err
	}
	eb.At = time.Now()
	return eb, nil
}
