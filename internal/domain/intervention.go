package domain

import "time"

// InterventionSchedule is the day's set of candidate intervention hours.
// One per calendar day per deployment, shared by all participants.
type InterventionSchedule struct {
	Date      Date
	Hours     []int // strictly increasing hour-of-day
	CreatedAt time.Time
}

// Contains reports whether hour is a scheduled intervention hour.
func (s *InterventionSchedule) Contains(hour int) bool {
	if s == nil {
		return false
	}
	for _, h := range s.Hours {
		if h == hour {
			return true
		}
	}
	return false
}

// Classification places a value relative to its baseline band.
type Classification string

const (
	BelowThreshold  Classification = "BELOW_THRESHOLD"
	WithinThreshold Classification = "WITHIN_THRESHOLD"
	AboveThreshold  Classification = "ABOVE_THRESHOLD"
)

// MessageKind identifies which nudge was selected.
type MessageKind string

const (
	MessageWalkMore   MessageKind = "WALK_MORE"
	MessageTakeABreak MessageKind = "TAKE_A_BREAK"
	MessageOnTrack    MessageKind = "ON_TRACK"
)

// InterventionLogEntry is the append-only audit record of an executed decision.
// Corresponds to intervention_logs table.
type InterventionLogEntry struct {
	EntryID                 string // UUID
	ParticipantID           string
	Date                    Date
	Time                    TimeOfDay
	StepClassification      Classification
	SedentaryClassification Classification
	StepMean                float64
	SedentaryMean           float64
	MessageKind             MessageKind
	Message                 string
	Delivered               bool
	RecordedAt              time.Time
}
