package normalization

import "activity-nudge-lab/internal/domain"

// InterpolateGrid resamples irregular readings onto a fixed grid.
//
// Grid alignment: floor(time / interval) * interval, from the first sample's
// tick to the last sample's tick. Each tick takes the linear interpolation of
// the two bracketing samples; ticks before the first sample take the first
// value. No tick lies beyond the last sample, so nothing is extrapolated.
// Repeated sample times keep the last reading.
func InterpolateGrid(raw []domain.RawSample, intervalSeconds int) []domain.NormalizedPoint {
	if len(raw) == 0 || intervalSeconds <= 0 {
		return nil
	}

	known := dedupeLastWins(sortedCopy(raw))
	step := domain.TimeOfDay(intervalSeconds)

	first := known[0]
	start := first.Time / step * step
	end := known[len(known)-1].Time / step * step

	out := make([]domain.NormalizedPoint, 0, int((end-start)/step)+1)
	j := 0
	for t := start; t <= end; t += step {
		if t <= first.Time {
			out = append(out, domain.NormalizedPoint{Time: t, Value: first.Value})
			continue
		}

		// Advance to the bracket known[j].Time < t <= known[j+1].Time
		for known[j+1].Time < t {
			j++
		}
		a, b := known[j], known[j+1]
		frac := float64(t-a.Time) / float64(b.Time-a.Time)
		out = append(out, domain.NormalizedPoint{
			Time:  t,
			Value: a.Value + (b.Value-a.Value)*frac,
		})
	}

	return out
}

// dedupeLastWins collapses samples sharing a time into the last one. Input must be sorted.
func dedupeLastWins(sorted []domain.RawSample) []domain.RawSample {
	out := sorted[:0:0]
	for _, s := range sorted {
		if n := len(out); n > 0 && out[n-1].Time == s.Time {
			out[n-1] = s
			continue
		}
		out = append(out, s)
	}
	return out
}
