package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// ActivityRecordStore implements storage.ActivityRecordStore using PostgreSQL.
type ActivityRecordStore struct {
	pool *Pool
}

// NewActivityRecordStore creates a new ActivityRecordStore.
func NewActivityRecordStore(pool *Pool) *ActivityRecordStore {
	return &ActivityRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ActivityRecordStore = (*ActivityRecordStore)(nil)

// AppendNew inserts records whose natural key is absent. Existing rows are kept.
func (s *ActivityRecordStore) AppendNew(ctx context.Context, records []*domain.ActivityRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	type key struct {
		participantID string
		metric        domain.Metric
		date          domain.Date
		time          domain.TimeOfDay
	}
	seen := make(map[key]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.ParticipantID == "" || r.Metric == "" || r.Date == "" || !r.Time.Valid() {
			return 0, storage.ErrInvalidInput
		}
		k := key{r.ParticipantID, r.Metric, r.Date, r.Time}
		if _, exists := seen[k]; exists {
			return 0, storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	query := `
		INSERT INTO activity_records (
			participant_id, metric, record_date, time_of_day, value, recorded_at
		) VALUES ($1, $2, $3::text::date, $4, $5, $6)
		ON CONFLICT (participant_id, metric, record_date, time_of_day) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query,
			r.ParticipantID,
			string(r.Metric),
			string(r.Date),
			int32(r.Time),
			r.Value,
			r.RecordedAt,
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	inserted := 0
	for range records {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("insert activity record: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return inserted, nil
}

// GetByDateRange retrieves records with date in [from, to), ordered by (date, time) ASC.
func (s *ActivityRecordStore) GetByDateRange(ctx context.Context, participantID string, metric domain.Metric, from, to domain.Date) ([]*domain.ActivityRecord, error) {
	query := `
		SELECT participant_id, metric, record_date::text, time_of_day, value, recorded_at
		FROM activity_records
		WHERE participant_id = $1 AND metric = $2
		  AND record_date >= $3::text::date AND record_date < $4::text::date
		ORDER BY record_date ASC, time_of_day ASC
	`

	rows, err := s.pool.Query(ctx, query, participantID, string(metric), string(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("get activity records by date range: %w", err)
	}
	defer rows.Close()

	return scanActivityRecords(rows)
}

// GetByTimeRange retrieves records of one date with time in [start, end] (inclusive).
func (s *ActivityRecordStore) GetByTimeRange(ctx context.Context, participantID string, metric domain.Metric, date domain.Date, start, end domain.TimeOfDay) ([]*domain.ActivityRecord, error) {
	query := `
		SELECT participant_id, metric, record_date::text, time_of_day, value, recorded_at
		FROM activity_records
		WHERE participant_id = $1 AND metric = $2 AND record_date = $3::text::date
		  AND time_of_day >= $4 AND time_of_day <= $5
		ORDER BY time_of_day ASC
	`

	rows, err := s.pool.Query(ctx, query, participantID, string(metric), string(date), int32(start), int32(end))
	if err != nil {
		return nil, fmt.Errorf("get activity records by time range: %w", err)
	}
	defer rows.Close()

	return scanActivityRecords(rows)
}

func scanActivityRecords(rows pgx.Rows) ([]*domain.ActivityRecord, error) {
	var result []*domain.ActivityRecord
	for rows.Next() {
		var (
			r      domain.ActivityRecord
			metric string
			date   string
			tod    int32
		)
		if err := rows.Scan(&r.ParticipantID, &metric, &date, &tod, &r.Value, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan activity record: %w", err)
		}
		r.Metric = domain.Metric(metric)
		r.Date = domain.Date(date)
		r.Time = domain.TimeOfDay(tod)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity records: %w", err)
	}
	return result, nil
}
