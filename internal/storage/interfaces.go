package storage

import (
	"context"

	"activity-nudge-lab/internal/domain"
)

// ActivityRecordStore provides access to activity_records storage.
// Records are immutable history: existing keys are never overwritten.
type ActivityRecordStore interface {
	// AppendNew inserts records whose (participant_id, metric, date, time) is absent
	// and skips the rest. Returns the number inserted.
	// Fails entire batch on intra-batch duplicates or invalid records.
	AppendNew(ctx context.Context, records []*domain.ActivityRecord) (int, error)

	// GetByDateRange retrieves records with date in [from, to), ordered by (date, time) ASC.
	GetByDateRange(ctx context.Context, participantID string, metric domain.Metric, from, to domain.Date) ([]*domain.ActivityRecord, error)

	// GetByTimeRange retrieves records of one date with time in [start, end] (inclusive), ordered by time ASC.
	GetByTimeRange(ctx context.Context, participantID string, metric domain.Metric, date domain.Date, start, end domain.TimeOfDay) ([]*domain.ActivityRecord, error)
}

// InterventionLogStore provides access to intervention_logs storage.
type InterventionLogStore interface {
	// Insert appends an entry. Returns ErrDuplicateKey if entry_id exists.
	Insert(ctx context.Context, e *domain.InterventionLogEntry) error

	// GetByParticipant retrieves entries with date in [from, to), ordered by (date, time) ASC.
	GetByParticipant(ctx context.Context, participantID string, from, to domain.Date) ([]*domain.InterventionLogEntry, error)

	// GetByDateRange retrieves entries of all participants with date in [from, to),
	// ordered by (date, time, participant_id) ASC.
	GetByDateRange(ctx context.Context, from, to domain.Date) ([]*domain.InterventionLogEntry, error)
}

// ScheduleStore provides access to intervention_schedules storage.
type ScheduleStore interface {
	// Get retrieves the schedule of a date. Returns ErrNotFound if not exists.
	Get(ctx context.Context, date domain.Date) (*domain.InterventionSchedule, error)

	// InsertIfAbsent stores s unless a schedule for s.Date exists.
	// Returns the stored schedule: s itself, or the earlier winner.
	InsertIfAbsent(ctx context.Context, s *domain.InterventionSchedule) (*domain.InterventionSchedule, error)
}

// ParticipantStore provides access to participants storage.
type ParticipantStore interface {
	// Insert adds a participant. Returns ErrDuplicateKey if experiment_id exists.
	Insert(ctx context.Context, p *domain.Participant) error

	// GetByID retrieves a participant. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, experimentID string) (*domain.Participant, error)

	// ListActive retrieves active participants ordered by experiment_id ASC.
	ListActive(ctx context.Context) ([]*domain.Participant, error)

	// UpdateCredential replaces the stored credential. Returns ErrNotFound if not exists.
	UpdateCredential(ctx context.Context, experimentID string, cred domain.Credential) error
}

// DailySummaryStore provides access to daily_summaries storage.
type DailySummaryStore interface {
	// Insert adds a summary. Returns ErrDuplicateKey if (participant_id, date, metric) exists.
	Insert(ctx context.Context, s *domain.DailySummary) error

	// GetByParticipant retrieves summaries with date in [from, to), ordered by (date, metric) ASC.
	GetByParticipant(ctx context.Context, participantID string, from, to domain.Date) ([]*domain.DailySummary, error)
}
