package domain

import "fmt"

// Metric identifies one tracked activity dimension.
// The value is the key used in the store; Resource is the upstream path segment.
type Metric string

const (
	MetricSteps         Metric = "steps"
	MetricHeart         Metric = "heart"
	MetricCalories      Metric = "calories"
	MetricDistance      Metric = "distance"
	MetricFloors        Metric = "floors"
	MetricActiveMinutes Metric = "active_minutes"
	MetricSedentary     Metric = "minutesSedentary"
)

// Upstream detail levels.
const (
	DetailLevel1Sec = "1sec"
	DetailLevel1Min = "1min"
)

// AllMetrics returns every ingested metric in fetch order.
func AllMetrics() []Metric {
	return []Metric{
		MetricSteps,
		MetricHeart,
		MetricCalories,
		MetricDistance,
		MetricFloors,
		MetricActiveMinutes,
		MetricSedentary,
	}
}

// SummaryMetrics returns the metrics that get a daily mean for the dashboard.
func SummaryMetrics() []Metric {
	return []Metric{
		MetricSteps,
		MetricHeart,
		MetricCalories,
		MetricDistance,
		MetricFloors,
		MetricActiveMinutes,
	}
}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	for _, m := range AllMetrics() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Resource returns the upstream activity resource name.
func (m Metric) Resource() string {
	if m == MetricActiveMinutes {
		return "minutesFairlyActive"
	}
	return string(m)
}

// DetailLevel returns the intraday resolution requested upstream.
func (m Metric) DetailLevel() string {
	if m == MetricHeart {
		return DetailLevel1Sec
	}
	return DetailLevel1Min
}
