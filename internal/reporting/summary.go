package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"activity-nudge-lab/internal/baseline"
	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// Summarizer computes and stores per-day metric means for the dashboard.
type Summarizer struct {
	records      storage.ActivityRecordStore
	participants storage.ParticipantStore
	summaries    storage.DailySummaryStore
	metrics      []domain.Metric
	now          func() time.Time // Injectable clock for deterministic output
	logger       *zap.Logger
}

// NewSummarizer creates a new daily summarizer.
func NewSummarizer(
	records storage.ActivityRecordStore,
	participants storage.ParticipantStore,
	summaries storage.DailySummaryStore,
	logger *zap.Logger,
) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{
		records:      records,
		participants: participants,
		summaries:    summaries,
		metrics:      domain.SummaryMetrics(),
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
}

// WithClock sets a custom clock function for deterministic output.
func (s *Summarizer) WithClock(now func() time.Time) *Summarizer {
	s.now = now
	return s
}

// SummaryResult counts what one run did.
type SummaryResult struct {
	Date     domain.Date
	Stored   int
	Existing int // already summarized
	Empty    int // no records that day
	Errors   []string
}

// SummarizeDay stores the mean of every summary metric of date for every
// active participant. Existing summaries are kept. Per-series failures are
// collected; only loading participants is fatal.
func (s *Summarizer) SummarizeDay(ctx context.Context, date domain.Date) (*SummaryResult, error) {
	participants, err := s.participants.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}

	res := &SummaryResult{Date: date}
	next := date.AddDays(1)

	for _, p := range participants {
		for _, metric := range s.metrics {
			records, err := s.records.GetByDateRange(ctx, p.ExperimentID, metric, date, next)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s/%s: %v", p.ExperimentID, metric, err))
				continue
			}

			values := make([]float64, len(records))
			for i, r := range records {
				values[i] = r.Value
			}
			stats := baseline.ComputeStats(values)
			if stats.Mean == nil {
				res.Empty++
				continue
			}

			err = s.summaries.Insert(ctx, &domain.DailySummary{
				ParticipantID: p.ExperimentID,
				Date:          date,
				Metric:        metric,
				Mean:          *stats.Mean,
				SampleCount:   stats.Count,
				RecordedAt:    s.now(),
			})
			switch {
			case err == nil:
				res.Stored++
			case errors.Is(err, storage.ErrDuplicateKey):
				res.Existing++
			default:
				res.Errors = append(res.Errors, fmt.Sprintf("%s/%s: %v", p.ExperimentID, metric, err))
			}
		}
	}

	s.logger.Info("daily summary complete",
		zap.String("date", string(date)),
		zap.Int("stored", res.Stored),
		zap.Int("existing", res.Existing),
		zap.Int("empty", res.Empty),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}
