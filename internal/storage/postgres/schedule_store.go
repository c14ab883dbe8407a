package postgres

import (
	"context"
	"fmt"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// ScheduleStore implements storage.ScheduleStore using PostgreSQL.
type ScheduleStore struct {
	pool *Pool
}

// NewScheduleStore creates a new ScheduleStore.
func NewScheduleStore(pool *Pool) *ScheduleStore {
	return &ScheduleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ScheduleStore = (*ScheduleStore)(nil)

// Get retrieves the schedule of a date. Returns ErrNotFound if not exists.
func (s *ScheduleStore) Get(ctx context.Context, date domain.Date) (*domain.InterventionSchedule, error) {
	query := `
		SELECT schedule_date::text, hours, created_at
		FROM intervention_schedules
		WHERE schedule_date = $1::text::date
	`

	var (
		sched   domain.InterventionSchedule
		dateStr string
		hours   []int32
	)
	err := s.pool.QueryRow(ctx, query, string(date)).Scan(&dateStr, &hours, &sched.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	sched.Date = domain.Date(dateStr)
	sched.Hours = make([]int, len(hours))
	for i, h := range hours {
		sched.Hours[i] = int(h)
	}
	return &sched, nil
}

// InsertIfAbsent stores sched unless the date already has one, then returns the stored row.
// Concurrent writers race on the primary key; the loser reads the winner.
func (s *ScheduleStore) InsertIfAbsent(ctx context.Context, sched *domain.InterventionSchedule) (*domain.InterventionSchedule, error) {
	if sched == nil || sched.Date == "" || len(sched.Hours) == 0 {
		return nil, storage.ErrInvalidInput
	}

	hours := make([]int32, len(sched.Hours))
	for i, h := range sched.Hours {
		hours[i] = int32(h)
	}

	query := `
		INSERT INTO intervention_schedules (schedule_date, hours, created_at)
		VALUES ($1::text::date, $2, $3)
		ON CONFLICT (schedule_date) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, string(sched.Date), hours, sched.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}

	return s.Get(ctx, sched.Date)
}
