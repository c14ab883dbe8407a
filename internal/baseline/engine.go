package baseline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// DefaultWindowDays is the trailing window used when none is configured.
const DefaultWindowDays = 7

// Engine computes trailing-window baselines from stored activity records.
type Engine struct {
	store  storage.ActivityRecordStore
	logger *zap.Logger
}

// NewEngine creates a baseline engine. A nil logger disables logging.
func NewEngine(store storage.ActivityRecordStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger}
}

// Compute returns the baseline of metric over dates [asOf-windowDays, asOf),
// restricted to times inside band. Returns (nil, nil) when no point qualifies.
// A single point yields a baseline with a mean and a nil StdDev.
func (e *Engine) Compute(ctx context.Context, participantID string, metric domain.Metric, asOf domain.Date, windowDays int, band domain.TimeBand) (*domain.Baseline, error) {
	if windowDays < 1 {
		return nil, fmt.Errorf("window days must be >= 1, got %d", windowDays)
	}
	if err := band.Validate(); err != nil {
		return nil, err
	}

	from := asOf.AddDays(-windowDays)
	records, err := e.store.GetByDateRange(ctx, participantID, metric, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("load %s history: %w", metric, err)
	}

	values := make([]float64, 0, len(records))
	for _, r := range records {
		if band.Contains(r.Time) {
			values = append(values, r.Value)
		}
	}

	stats := ComputeStats(values)
	if stats.Mean == nil {
		e.logger.Debug("baseline absent",
			zap.String("participant", participantID),
			zap.String("metric", string(metric)),
			zap.String("date", string(asOf)),
			zap.Int("points", stats.Count),
		)
		return nil, nil
	}

	return &domain.Baseline{
		ParticipantID: participantID,
		Metric:        metric,
		Mean:          *stats.Mean,
		StdDev:        stats.StdDev,
		SampleCount:   stats.Count,
		WindowStart:   from,
		WindowEnd:     asOf,
		Band:          band,
	}, nil
}
