package fitbit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"activity-nudge-lab/internal/domain"
)

func newTestClient(url string) *Client {
	return NewClient(
		WithBaseURL(url),
		WithRateLimiter(nil),
	)
}

func TestIntradayPath(t *testing.T) {
	req := IntradayRequest{
		Metric: domain.MetricActiveMinutes,
		Date:   "2026-04-08",
		Start:  domain.NewTimeOfDay(9, 0, 0),
		End:    domain.NewTimeOfDay(9, 59, 59),
	}
	want := "/1/user/-/activities/minutesFairlyActive/date/2026-04-08/1d/1min/time/09:00/09:59.json"
	if got := IntradayPath(req); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	req.Metric = domain.MetricHeart
	want = "/1/user/-/activities/heart/date/2026-04-08/1d/1sec/time/09:00/09:59.json"
	if got := IntradayPath(req); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestClient_FetchIntraday(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("expected bearer token, got %q", got)
		}
		if r.URL.Path != "/1/user/-/activities/steps/date/2026-04-08/1d/1min/time/09:00/09:59.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"activities-steps": [{"dateTime": "2026-04-08", "value": "42"}],
			"activities-steps-intraday": {
				"dataset": [
					{"time": "09:00:00", "value": 12},
					{"time": "09:01:00", "value": 30}
				],
				"datasetInterval": 1,
				"datasetType": "minute"
			}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.FetchIntraday(context.Background(), "tok-1", IntradayRequest{
		Metric: domain.MetricSteps,
		Date:   "2026-04-08",
		Start:  domain.NewTimeOfDay(9, 0, 0),
		End:    domain.NewTimeOfDay(9, 59, 0),
	})
	if err != nil {
		t.Fatalf("FetchIntraday failed: %v", err)
	}

	if resp.Date != "2026-04-08" {
		t.Errorf("expected date 2026-04-08, got %s", resp.Date)
	}
	if len(resp.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(resp.Samples))
	}
	if resp.Samples[1].Time != domain.NewTimeOfDay(9, 1, 0) || resp.Samples[1].Value != 30 {
		t.Errorf("unexpected sample: %+v", resp.Samples[1])
	}
}

func TestClient_FetchIntraday_Unauthorized(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"errorType":"expired_token"}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchIntraday(context.Background(), "stale", IntradayRequest{Metric: domain.MetricSteps, Date: "2026-04-08"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("401 must not be retried, got %d calls", calls.Load())
	}
}

func TestClient_FetchIntraday_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchIntraday(context.Background(), "tok", IntradayRequest{Metric: domain.MetricSteps, Date: "2026-04-08"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", statusErr.StatusCode)
	}
}

func TestClient_FetchIntraday_ServerErrorNotRetried(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) == 1 {
					w.WriteHeader(code)
					return
				}
				_, _ = w.Write([]byte(`{"activities-calories-intraday": {"dataset": []}}`))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).FetchIntraday(context.Background(), "tok", IntradayRequest{Metric: domain.MetricCalories, Date: "2026-04-08"})
			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if statusErr.StatusCode != code {
				t.Errorf("expected %d, got %d", code, statusErr.StatusCode)
			}
			if calls.Load() != 1 {
				t.Errorf("expected 1 call, got %d", calls.Load())
			}
		})
	}
}

func TestClient_FetchIntraday_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).FetchIntraday(context.Background(), "tok", IntradayRequest{Metric: domain.MetricSteps, Date: "2026-04-08"})
	if err == nil {
		t.Fatal("expected transport error")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) || errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected plain transport error, got %v", err)
	}
}

func TestClient_FetchIntraday_Malformed(t *testing.T) {
	tests := map[string]string{
		"not json":         `<html>`,
		"missing intraday": `{"activities-steps": []}`,
		"bad time":         `{"activities-steps-intraday": {"dataset": [{"time": "9am", "value": 1}]}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).FetchIntraday(context.Background(), "tok", IntradayRequest{Metric: domain.MetricSteps, Date: "2026-04-08"})
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}
