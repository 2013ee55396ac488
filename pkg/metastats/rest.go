package metastats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultBaseURL is the MetaStats metrics API endpoint.
const DefaultBaseURL = "https://metastats-api-v1.new-york.agiliumtrade.ai"

// usageHeader carries the provider's request-weight usage.
const usageHeader = "x-rate-limit-used"

// Client wraps REST access to the MetaStats metrics API.
type Client struct {
	AuthToken  string
	BaseURL    string
	HTTPClient *http.Client
	limiter    *RateLimiter
}

// NewClient builds a metrics client; baseURL "" uses the production host.
func NewClient(authToken, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		AuthToken:  authToken,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    NewRateLimiter(1000, time.Minute),
	}
}

// GetMetrics fetches the current equity/balance metrics for one account.
func (c *Client) GetMetrics(ctx context.Context, accountID string) (Metrics, error) {
	if accountID == "" {
		return Metrics{}, fmt.Errorf("account id is empty")
	}

	u := fmt.Sprintf("%s/users/current/accounts/%s/metrics", c.BaseURL, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Metrics{}, err
	}
	req.Header.Set("auth-token", c.AuthToken)

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return Metrics{}, fmt.Errorf("fetch metrics for %s: %w", accountID, err)
	}
	defer res.Body.Close()

	c.limiter.UpdateFromHeader(res.Header.Get(usageHeader))

	if res.StatusCode != http.StatusOK {
		return Metrics{}, fmt.Errorf("metastats metrics status %d for %s", res.StatusCode, accountID)
	}

	var resp struct {
		Metrics Metrics `json:"metrics"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return Metrics{}, fmt.Errorf("decode metrics for %s: %w", accountID, err)
	}
	return resp.Metrics, nil
}

// Usage reports the provider rate-limit usage observed on recent responses.
func (c *Client) Usage() (used int, limit int, percentage float64) {
	return c.limiter.GetUsage()
}

// ShouldDelay reports whether callers should back off before the next
// request.
func (c *Client) ShouldDelay() bool {
	return c.limiter.ShouldDelay()
}
