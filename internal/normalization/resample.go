package normalization

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"activity-nudge-lab/internal/domain"
)

// ErrInvalidSample is returned for samples that cannot be normalized.
var ErrInvalidSample = errors.New("invalid raw sample")

// Canonical cadences.
const (
	HeartIntervalSeconds     = 5
	SedentaryIntervalSeconds = 3600
)

// Resample converts raw samples of one day into the metric's canonical series.
//
//   - heart: uniform 5-second grid, linear interpolation
//   - minutesSedentary: hourly sums stamped HH:00:00
//   - others: provider cadence, ordered by time
//
// Empty input yields an empty result and no error. Output is deterministic.
func Resample(metric domain.Metric, raw []domain.RawSample) ([]domain.NormalizedPoint, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if err := validateSamples(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", metric, err)
	}

	switch metric {
	case domain.MetricHeart:
		return InterpolateGrid(raw, HeartIntervalSeconds), nil
	case domain.MetricSedentary:
		return SumByHour(raw), nil
	default:
		return passThrough(raw)
	}
}

func validateSamples(raw []domain.RawSample) error {
	for _, s := range raw {
		if !s.Time.Valid() {
			return fmt.Errorf("%w: time %d out of range", ErrInvalidSample, s.Time)
		}
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return fmt.Errorf("%w: non-finite value at %s", ErrInvalidSample, s.Time)
		}
		if s.Value < 0 {
			return fmt.Errorf("%w: negative value at %s", ErrInvalidSample, s.Time)
		}
	}
	return nil
}

// passThrough copies samples in time order. Repeated times are rejected since
// the series must be strictly ordered.
func passThrough(raw []domain.RawSample) ([]domain.NormalizedPoint, error) {
	sorted := sortedCopy(raw)
	out := make([]domain.NormalizedPoint, len(sorted))
	for i, s := range sorted {
		if i > 0 && s.Time == sorted[i-1].Time {
			return nil, fmt.Errorf("%w: repeated time %s", ErrInvalidSample, s.Time)
		}
		out[i] = domain.NormalizedPoint{Time: s.Time, Value: s.Value}
	}
	return out, nil
}

// sortedCopy returns samples sorted by time, keeping input order for equal times.
func sortedCopy(raw []domain.RawSample) []domain.RawSample {
	sorted := make([]domain.RawSample, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})
	return sorted
}
