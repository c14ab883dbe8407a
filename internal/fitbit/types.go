package fitbit

import (
	"errors"
	"fmt"

	"activity-nudge-lab/internal/domain"
)

var (
	// ErrUnauthorized is returned on HTTP 401: the access token is expired or revoked.
	ErrUnauthorized = errors.New("fitbit: unauthorized")

	// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
	ErrMalformedResponse = errors.New("fitbit: malformed response")
)

// StatusError is a non-2xx, non-401 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fitbit: unexpected status %d: %s", e.StatusCode, e.Body)
}

// IntradayRequest selects one metric over a time range of one day.
// Start and End are truncated to minutes and both included.
type IntradayRequest struct {
	Metric domain.Metric
	Date   domain.Date
	Start  domain.TimeOfDay
	End    domain.TimeOfDay
}

// IntradayResponse is the decoded intraday dataset.
type IntradayResponse struct {
	Metric  domain.Metric
	Date    domain.Date // report date echoed by the provider
	Samples []domain.RawSample
}

// Token is the result of a token refresh.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
	TokenType    string `json:"token_type"`
	UserID       string `json:"user_id"`
}

type summaryEntry struct {
	DateTime string `json:"dateTime"`
}

type intradayBlock struct {
	Dataset []struct {
		Time  string  `json:"time"`
		Value float64 `json:"value"`
	} `json:"dataset"`
	DatasetInterval int    `json:"datasetInterval"`
	DatasetType     string `json:"datasetType"`
}
