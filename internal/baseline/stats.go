package baseline

import (
	"math"
	"sort"
)

// Stats summarizes a set of values.
// Mean is nil for an empty set; StdDev is nil for fewer than two values.
type Stats struct {
	Mean   *float64
	StdDev *float64
	Count  int
}

// ComputeStats calculates mean and sample standard deviation (n-1 denominator).
// Values are sorted before accumulation so the result does not depend on input order.
func ComputeStats(values []float64) Stats {
	n := len(values)
	if n == 0 {
		return Stats{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	mean := computeMean(sorted)
	stats := Stats{Mean: &mean, Count: n}
	if n < 2 {
		return stats
	}

	stddev := computeStddev(sorted, mean)
	stats.StdDev = &stddev
	return stats
}

// computeMean calculates arithmetic mean of values.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}
