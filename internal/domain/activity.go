package domain

import "time"

// RawSample is a single intraday reading from the upstream provider.
// Exists only in memory during one fetch cycle.
type RawSample struct {
	Time  TimeOfDay
	Value float64
}

// NormalizedPoint is a reading at the metric's canonical cadence.
type NormalizedPoint struct {
	Time  TimeOfDay
	Value float64
}

// ActivityRecord is the persisted unit of a normalized series.
// Natural key: (participant_id, metric, date, time).
// Corresponds to activity_records table.
type ActivityRecord struct {
	ParticipantID string    // experiment identifier
	Metric        Metric    // tracked dimension
	Date          Date      // calendar date in the study timezone
	Time          TimeOfDay // wall-clock time, business ordering key
	Value         float64   // normalized value
	RecordedAt    time.Time // audit only
}

// Baseline is the trailing-window reference band for one metric.
// Derived on demand, never authoritative.
type Baseline struct {
	ParticipantID string
	Metric        Metric
	Mean          float64
	StdDev        *float64 // nil below two samples
	SampleCount   int
	WindowStart   Date // inclusive
	WindowEnd     Date // exclusive
	Band          TimeBand
}

// HasSpread reports whether the baseline carries a standard deviation.
func (b Baseline) HasSpread() bool {
	return b.StdDev != nil
}

// DailySummary caches the daily mean of one metric for the dashboard.
// Corresponds to daily_summaries table.
type DailySummary struct {
	ParticipantID string
	Date          Date
	Metric        Metric
	Mean          float64
	SampleCount   int
	RecordedAt    time.Time
}
