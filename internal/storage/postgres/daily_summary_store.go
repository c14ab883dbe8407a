package postgres

import (
	"context"
	"fmt"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// DailySummaryStore implements storage.DailySummaryStore using PostgreSQL.
type DailySummaryStore struct {
	pool *Pool
}

// NewDailySummaryStore creates a new DailySummaryStore.
func NewDailySummaryStore(pool *Pool) *DailySummaryStore {
	return &DailySummaryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DailySummaryStore = (*DailySummaryStore)(nil)

// Insert adds a summary. Returns ErrDuplicateKey if (participant_id, date, metric) exists.
func (s *DailySummaryStore) Insert(ctx context.Context, sum *domain.DailySummary) error {
	if sum == nil || sum.ParticipantID == "" || sum.Date == "" || sum.Metric == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO daily_summaries (
			participant_id, summary_date, metric, mean, sample_count, recorded_at
		) VALUES ($1, $2::text::date, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		sum.ParticipantID,
		string(sum.Date),
		string(sum.Metric),
		sum.Mean,
		int32(sum.SampleCount),
		sum.RecordedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert daily summary: %w", err)
	}
	return nil
}

// GetByParticipant retrieves summaries with date in [from, to), ordered by (date, metric) ASC.
func (s *DailySummaryStore) GetByParticipant(ctx context.Context, participantID string, from, to domain.Date) ([]*domain.DailySummary, error) {
	query := `
		SELECT participant_id, summary_date::text, metric, mean, sample_count, recorded_at
		FROM daily_summaries
		WHERE participant_id = $1 AND summary_date >= $2::text::date AND summary_date < $3::text::date
		ORDER BY summary_date ASC, metric ASC
	`

	rows, err := s.pool.Query(ctx, query, participantID, string(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("get daily summaries: %w", err)
	}
	defer rows.Close()

	var result []*domain.DailySummary
	for rows.Next() {
		var (
			sum    domain.DailySummary
			date   string
			metric string
			count  int32
		)
		if err := rows.Scan(&sum.ParticipantID, &date, &metric, &sum.Mean, &count, &sum.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan daily summary: %w", err)
		}
		sum.Date = domain.Date(date)
		sum.Metric = domain.Metric(metric)
		sum.SampleCount = int(count)
		result = append(result, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily summaries: %w", err)
	}
	return result, nil
}
