package normalization

import (
	"context"
	"fmt"
	"time"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// Runner normalizes fetched samples and appends them to the activity store.
type Runner struct {
	store storage.ActivityRecordStore
}

// NewRunner creates a new normalization runner.
func NewRunner(store storage.ActivityRecordStore) *Runner {
	return &Runner{store: store}
}

// Result summarizes one normalization call.
type Result struct {
	Points   int // normalized points produced
	Inserted int // records newly stored
}

// Normalize resamples raw samples for (participant, metric, date) and stores them.
// Points already present in the store are left untouched, so an hourly
// sedentary bucket keeps the sum seen by its first fetch even if the device
// syncs more minutes later.
func (r *Runner) Normalize(ctx context.Context, participantID string, metric domain.Metric, date domain.Date, raw []domain.RawSample, recordedAt time.Time) (Result, error) {
	points, err := Resample(metric, raw)
	if err != nil {
		return Result{}, err
	}
	if len(points) == 0 {
		return Result{}, nil
	}

	records := ToActivityRecords(participantID, metric, date, points, recordedAt)
	inserted, err := r.store.AppendNew(ctx, records)
	if err != nil {
		return Result{Points: len(points)}, fmt.Errorf("store %s records: %w", metric, err)
	}

	return Result{Points: len(points), Inserted: inserted}, nil
}

// ToActivityRecords stamps normalized points with their series key.
func ToActivityRecords(participantID string, metric domain.Metric, date domain.Date, points []domain.NormalizedPoint, recordedAt time.Time) []*domain.ActivityRecord {
	records := make([]*domain.ActivityRecord, len(points))
	for i, p := range points {
		records[i] = &domain.ActivityRecord{
			ParticipantID: participantID,
			Metric:        metric,
			Date:          date,
			Time:          p.Time,
			Value:         p.Value,
			RecordedAt:    recordedAt,
		}
	}
	return records
}
