package reporting

import "time"

// Report summarizes intervention activity over a date range.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	From        string // inclusive
	To          string // exclusive

	// Totals
	TotalInterventions int
	Delivered          int

	// Per participant rows, sorted by participant_id
	Participants []ParticipantRow

	// Per message kind counts, sorted by kind
	MessageKinds []MessageKindRow
}

// ParticipantRow is one participant's intervention counts.
type ParticipantRow struct {
	ParticipantID string
	Interventions int
	Delivered     int
	WalkMore      int
	TakeABreak    int
	OnTrack       int
}

// DeliveryRate returns delivered / interventions, 0 when none.
func (r ParticipantRow) DeliveryRate() float64 {
	if r.Interventions == 0 {
		return 0
	}
	return float64(r.Delivered) / float64(r.Interventions)
}

// MessageKindRow counts one message kind.
type MessageKindRow struct {
	Kind  string
	Count int
}
