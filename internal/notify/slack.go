package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultSlackAPI is the Slack Web API base URL.
const DefaultSlackAPI = "https://slack.com/api"

// Slack posts direct messages through chat.postMessage.
type Slack struct {
	token   string
	baseURL string
	client  *http.Client
}

// SlackOption configures Slack.
type SlackOption func(*Slack)

// WithSlackBaseURL sets the API base URL.
func WithSlackBaseURL(u string) SlackOption {
	return func(s *Slack) { s.baseURL = u }
}

// WithSlackHTTPClient sets custom http.Client.
func WithSlackHTTPClient(c *http.Client) SlackOption {
	return func(s *Slack) { s.client = c }
}

// NewSlack creates a Slack notifier authenticated with a bot token.
func NewSlack(token string, opts ...SlackOption) *Slack {
	s := &Slack{
		token:   token,
		baseURL: DefaultSlackAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Notify posts text to the channel or DM id in destination.
// Slack reports application errors with HTTP 200 and ok=false.
func (s *Slack) Notify(ctx context.Context, destination, text string) error {
	if destination == "" {
		return fmt.Errorf("%w: empty destination", ErrDeliveryFailed)
	}

	body, err := json.Marshal(postMessageRequest{Channel: destination, Text: text})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrDeliveryFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrDeliveryFailed, resp.StatusCode)
	}

	var out postMessageResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrDeliveryFailed, err)
	}
	if !out.OK {
		return fmt.Errorf("%w: %s", ErrDeliveryFailed, out.Error)
	}
	return nil
}
