// Package ingestion pulls intraday series from the provider and stores them normalized.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"activity-nudge-lab/internal/credential"
	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/fitbit"
	"activity-nudge-lab/internal/normalization"
)

// DefaultFetchTimeout bounds one upstream fetch.
const DefaultFetchTimeout = 30 * time.Second

// CredentialFetcher fetches with refresh-on-expiry semantics.
type CredentialFetcher interface {
	Fetch(ctx context.Context, participantID string, cred *domain.Credential, req fitbit.IntradayRequest) (*fitbit.IntradayResponse, error)
}

// Normalizer resamples and stores fetched samples.
type Normalizer interface {
	Normalize(ctx context.Context, participantID string, metric domain.Metric, date domain.Date, raw []domain.RawSample, recordedAt time.Time) (normalization.Result, error)
}

// Observer receives per-metric ingestion outcomes. Optional.
type Observer interface {
	ObserveFetch(metric domain.Metric, outcome string)
	ObserveStored(metric domain.Metric, inserted int)
}

// Fetch outcomes reported to the Observer.
const (
	OutcomeOK      = "ok"
	OutcomeExpired = "expired"
	OutcomeError   = "error"
)

// Runner ingests one participant's window metric by metric.
type Runner struct {
	fetcher      CredentialFetcher
	normalizer   Normalizer
	metrics      []domain.Metric
	fetchTimeout time.Duration
	observer     Observer
	now          func() time.Time
	logger       *zap.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Fetcher      CredentialFetcher
	Normalizer   Normalizer
	Metrics      []domain.Metric // Default: all seven metrics
	FetchTimeout time.Duration   // Default: 30s
	Observer     Observer
	Now          func() time.Time
	Logger       *zap.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	metrics := opts.Metrics
	if len(metrics) == 0 {
		metrics = domain.AllMetrics()
	}

	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		fetcher:      opts.Fetcher,
		normalizer:   opts.Normalizer,
		metrics:      metrics,
		fetchTimeout: fetchTimeout,
		observer:     opts.Observer,
		now:          now,
		logger:       logger,
	}
}

// Window is the time range fetched in one pass.
type Window struct {
	Date  domain.Date
	Start domain.TimeOfDay
	End   domain.TimeOfDay
}

// Result summarizes one participant's ingestion.
type Result struct {
	Inserted map[domain.Metric]int
	Expired  bool     // credential could not be renewed; remaining metrics skipped
	Errors   []string // per-metric failures
}

// Ingest fetches, normalizes and stores every metric of w for p.
//
// Metric failures are collected and do not stop the pass, except an expired
// credential: further fetches would fail the same way, so the rest are skipped.
// p.Credential may be rotated by the fetcher.
func (r *Runner) Ingest(ctx context.Context, p *domain.Participant, w Window) *Result {
	res := &Result{Inserted: make(map[domain.Metric]int, len(r.metrics))}
	log := r.logger.With(zap.String("participant", p.ExperimentID), zap.String("date", string(w.Date)))

	for _, metric := range r.metrics {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", metric, ctx.Err()))
			return res
		}

		inserted, err := r.ingestMetric(ctx, p, metric, w)
		if err != nil {
			if errors.Is(err, credential.ErrExpiredAfterRetry) {
				r.observeFetch(metric, OutcomeExpired)
				log.Warn("credential expired, skipping remaining metrics", zap.String("metric", string(metric)))
				res.Expired = true
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", metric, err))
				return res
			}
			log.Warn("metric ingestion failed", zap.String("metric", string(metric)), zap.Error(err))
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", metric, err))
			continue
		}
		res.Inserted[metric] = inserted
	}

	return res
}

func (r *Runner) ingestMetric(ctx context.Context, p *domain.Participant, metric domain.Metric, w Window) (int, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	resp, err := r.fetcher.Fetch(fetchCtx, p.ExperimentID, &p.Credential, fitbit.IntradayRequest{
		Metric: metric,
		Date:   w.Date,
		Start:  w.Start,
		End:    w.End,
	})
	if err != nil {
		if !errors.Is(err, credential.ErrExpiredAfterRetry) {
			r.observeFetch(metric, OutcomeError)
		}
		return 0, err
	}
	r.observeFetch(metric, OutcomeOK)

	if resp.Date != "" && resp.Date != w.Date {
		r.logger.Warn("provider returned a different date",
			zap.String("participant", p.ExperimentID),
			zap.String("metric", string(metric)),
			zap.String("requested", string(w.Date)),
			zap.String("returned", string(resp.Date)),
		)
	}

	nres, err := r.normalizer.Normalize(ctx, p.ExperimentID, metric, w.Date, inWindow(resp.Samples, w), r.now().UTC())
	if err != nil {
		return 0, err
	}
	if r.observer != nil {
		r.observer.ObserveStored(metric, nres.Inserted)
	}
	return nres.Inserted, nil
}

// inWindow drops samples the provider returned outside the requested range.
func inWindow(samples []domain.RawSample, w Window) []domain.RawSample {
	out := samples[:0:0]
	for _, s := range samples {
		if s.Time >= w.Start && s.Time <= w.End {
			out = append(out, s)
		}
	}
	return out
}

func (r *Runner) observeFetch(metric domain.Metric, outcome string) {
	if r.observer != nil {
		r.observer.ObserveFetch(metric, outcome)
	}
}
