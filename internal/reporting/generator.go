package reporting

import (
	"context"
	"sort"
	"time"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// Generator produces intervention reports from stored logs.
type Generator struct {
	logs storage.InterventionLogStore
	now  func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(logs storage.InterventionLogStore) *Generator {
	return &Generator{
		logs: logs,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Entries loads the log entries of [from, to).
func (g *Generator) Entries(ctx context.Context, from, to domain.Date) ([]*domain.InterventionLogEntry, error) {
	return g.logs.GetByDateRange(ctx, from, to)
}

// Generate builds a report over [from, to).
func (g *Generator) Generate(ctx context.Context, from, to domain.Date) (*Report, error) {
	entries, err := g.Entries(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return BuildReport(entries, from, to, g.now()), nil
}

// BuildReport aggregates entries. Output order is deterministic.
func BuildReport(entries []*domain.InterventionLogEntry, from, to domain.Date, generatedAt time.Time) *Report {
	r := &Report{
		GeneratedAt: generatedAt,
		From:        string(from),
		To:          string(to),
	}

	byParticipant := make(map[string]*ParticipantRow)
	byKind := make(map[string]int)

	for _, e := range entries {
		row, ok := byParticipant[e.ParticipantID]
		if !ok {
			row = &ParticipantRow{ParticipantID: e.ParticipantID}
			byParticipant[e.ParticipantID] = row
		}

		row.Interventions++
		r.TotalInterventions++
		if e.Delivered {
			row.Delivered++
			r.Delivered++
		}

		switch e.MessageKind {
		case domain.MessageWalkMore:
			row.WalkMore++
		case domain.MessageTakeABreak:
			row.TakeABreak++
		default:
			row.OnTrack++
		}
		byKind[string(e.MessageKind)]++
	}

	for _, row := range byParticipant {
		r.Participants = append(r.Participants, *row)
	}
	sort.Slice(r.Participants, func(i, j int) bool {
		return r.Participants[i].ParticipantID < r.Participants[j].ParticipantID
	})

	for kind, n := range byKind {
		r.MessageKinds = append(r.MessageKinds, MessageKindRow{Kind: kind, Count: n})
	}
	sort.Slice(r.MessageKinds, func(i, j int) bool {
		return r.MessageKinds[i].Kind < r.MessageKinds[j].Kind
	})

	return r
}
