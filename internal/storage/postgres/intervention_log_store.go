package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// InterventionLogStore implements storage.InterventionLogStore using PostgreSQL.
type InterventionLogStore struct {
	pool *Pool
}

// NewInterventionLogStore creates a new InterventionLogStore.
func NewInterventionLogStore(pool *Pool) *InterventionLogStore {
	return &InterventionLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.InterventionLogStore = (*InterventionLogStore)(nil)

const interventionLogColumns = `
	entry_id::text, participant_id, log_date::text, time_of_day,
	step_classification, sedentary_classification, step_mean, sedentary_mean,
	message_kind, message, delivered, recorded_at
`

// Insert appends an entry. Returns ErrDuplicateKey if entry_id exists.
func (s *InterventionLogStore) Insert(ctx context.Context, e *domain.InterventionLogEntry) error {
	if e == nil || e.EntryID == "" || e.ParticipantID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO intervention_logs (
			entry_id, participant_id, log_date, time_of_day,
			step_classification, sedentary_classification, step_mean, sedentary_mean,
			message_kind, message, delivered, recorded_at
		) VALUES ($1::text::uuid, $2, $3::text::date, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		e.EntryID,
		e.ParticipantID,
		string(e.Date),
		int32(e.Time),
		string(e.StepClassification),
		string(e.SedentaryClassification),
		e.StepMean,
		e.SedentaryMean,
		string(e.MessageKind),
		e.Message,
		e.Delivered,
		e.RecordedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert intervention log: %w", err)
	}
	return nil
}

// GetByParticipant retrieves entries with date in [from, to), ordered by (date, time) ASC.
func (s *InterventionLogStore) GetByParticipant(ctx context.Context, participantID string, from, to domain.Date) ([]*domain.InterventionLogEntry, error) {
	query := `SELECT ` + interventionLogColumns + `
		FROM intervention_logs
		WHERE participant_id = $1 AND log_date >= $2::text::date AND log_date < $3::text::date
		ORDER BY log_date ASC, time_of_day ASC
	`

	rows, err := s.pool.Query(ctx, query, participantID, string(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("get intervention logs by participant: %w", err)
	}
	defer rows.Close()

	return scanInterventionLogs(rows)
}

// GetByDateRange retrieves entries of all participants with date in [from, to).
func (s *InterventionLogStore) GetByDateRange(ctx context.Context, from, to domain.Date) ([]*domain.InterventionLogEntry, error) {
	query := `SELECT ` + interventionLogColumns + `
		FROM intervention_logs
		WHERE log_date >= $1::text::date AND log_date < $2::text::date
		ORDER BY log_date ASC, time_of_day ASC, participant_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("get intervention logs by date range: %w", err)
	}
	defer rows.Close()

	return scanInterventionLogs(rows)
}

func scanInterventionLogs(rows pgx.Rows) ([]*domain.InterventionLogEntry, error) {
	var result []*domain.InterventionLogEntry
	for rows.Next() {
		var (
			e                   domain.InterventionLogEntry
			date                string
			tod                 int32
			stepClass, sedClass string
			kind                string
		)
		err := rows.Scan(
			&e.EntryID, &e.ParticipantID, &date, &tod,
			&stepClass, &sedClass, &e.StepMean, &e.SedentaryMean,
			&kind, &e.Message, &e.Delivered, &e.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan intervention log: %w", err)
		}
		e.Date = domain.Date(date)
		e.Time = domain.TimeOfDay(tod)
		e.StepClassification = domain.Classification(stepClass)
		e.SedentaryClassification = domain.Classification(sedClass)
		e.MessageKind = domain.MessageKind(kind)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intervention logs: %w", err)
	}
	return result, nil
}
