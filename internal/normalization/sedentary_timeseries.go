package normalization

import (
	"sort"

	"activity-nudge-lab/internal/domain"
)

// SumByHour buckets samples by hour of day and sums each bucket.
//
// Bucket alignment: floor(time / 3600) * 3600, i.e. HH:00:00.
// One point per non-empty bucket, ordered by hour. Sum-preserving.
func SumByHour(raw []domain.RawSample) []domain.NormalizedPoint {
	if len(raw) == 0 {
		return nil
	}

	buckets := make(map[domain.TimeOfDay]float64)
	for _, s := range raw {
		buckets[s.Time.TopOfHour()] += s.Value
	}

	out := make([]domain.NormalizedPoint, 0, len(buckets))
	for hour, sum := range buckets {
		out = append(out, domain.NormalizedPoint{Time: hour, Value: sum})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Time < out[j].Time
	})

	return out
}
