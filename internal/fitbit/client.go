package fitbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"activity-nudge-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.fitbit.com"
	DefaultTimeout = 30 * time.Second

	// DefaultRatePerHour is the provider's per-user quota.
	DefaultRatePerHour = 150
)

// Client fetches intraday activity series.
// Each call is a single request; the only retry path is the credential
// refresh owned by the caller.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL sets the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithRateLimiter sets the request limiter. nil disables limiting.
func WithRateLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// NewClient creates a new intraday API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: PerHourLimiter(DefaultRatePerHour),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PerHourLimiter spreads n requests per hour with a burst of n.
func PerHourLimiter(n int) *rate.Limiter {
	if n <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(n)), n)
}

// IntradayPath builds the request path of req.
func IntradayPath(req IntradayRequest) string {
	return fmt.Sprintf("/1/user/-/activities/%s/date/%s/1d/%s/time/%s/%s.json",
		req.Metric.Resource(), req.Date, req.Metric.DetailLevel(), req.Start.HHMM(), req.End.HHMM())
}

// FetchIntraday retrieves one metric's intraday samples.
// Returns ErrUnauthorized on 401 without retrying.
func (c *Client) FetchIntraday(ctx context.Context, accessToken string, req IntradayRequest) (*IntradayResponse, error) {
	url := c.baseURL + IntradayPath(req)

	body, err := c.get(ctx, url, accessToken)
	if err != nil {
		return nil, err
	}

	return decodeIntraday(req.Metric, body)
}

// get performs one authorized GET. 401 maps to ErrUnauthorized, any other
// non-2xx status to *StatusError.
func (c *Client) get(ctx context.Context, url, accessToken string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	return body, nil
}

// decodeIntraday reads the dynamic "activities-{resource}" keys of the body.
func decodeIntraday(metric domain.Metric, body []byte) (*IntradayResponse, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	resource := metric.Resource()
	out := &IntradayResponse{Metric: metric}

	if summary, ok := raw["activities-"+resource]; ok {
		var entries []summaryEntry
		if err := json.Unmarshal(summary, &entries); err != nil {
			return nil, fmt.Errorf("%w: summary: %v", ErrMalformedResponse, err)
		}
		if len(entries) > 0 {
			out.Date = domain.Date(entries[0].DateTime)
		}
	}

	intraday, ok := raw["activities-"+resource+"-intraday"]
	if !ok {
		return nil, fmt.Errorf("%w: missing activities-%s-intraday", ErrMalformedResponse, resource)
	}
	var block intradayBlock
	if err := json.Unmarshal(intraday, &block); err != nil {
		return nil, fmt.Errorf("%w: intraday: %v", ErrMalformedResponse, err)
	}

	out.Samples = make([]domain.RawSample, 0, len(block.Dataset))
	for _, d := range block.Dataset {
		tod, err := domain.ParseTimeOfDay(d.Time)
		if err != nil {
			return nil, errors.Join(ErrMalformedResponse, err)
		}
		out.Samples = append(out.Samples, domain.RawSample{Time: tod, Value: d.Value})
	}

	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
