package clickhouse

import (
	"context"
	"fmt"
	"time"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// ActivityRecordStore implements storage.ActivityRecordStore using ClickHouse.
type ActivityRecordStore struct {
	conn *Conn
}

// NewActivityRecordStore creates a new ActivityRecordStore.
func NewActivityRecordStore(conn *Conn) *ActivityRecordStore {
	return &ActivityRecordStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ActivityRecordStore = (*ActivityRecordStore)(nil)

type seriesKey struct {
	participantID string
	metric        domain.Metric
	date          domain.Date
}

// AppendNew inserts records whose natural key is absent.
// MergeTree does not enforce keys, so existing times are loaded per (participant, metric, date).
func (s *ActivityRecordStore) AppendNew(ctx context.Context, records []*domain.ActivityRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	// Validate and check for intra-batch duplicates
	batchKeys := make(map[seriesKey]map[domain.TimeOfDay]struct{})
	for _, r := range records {
		if r == nil || r.ParticipantID == "" || r.Metric == "" || r.Date == "" || !r.Time.Valid() {
			return 0, storage.ErrInvalidInput
		}
		k := seriesKey{r.ParticipantID, r.Metric, r.Date}
		times, ok := batchKeys[k]
		if !ok {
			times = make(map[domain.TimeOfDay]struct{})
			batchKeys[k] = times
		}
		if _, exists := times[r.Time]; exists {
			return 0, storage.ErrDuplicateKey
		}
		times[r.Time] = struct{}{}
	}

	existing := make(map[seriesKey]map[domain.TimeOfDay]struct{}, len(batchKeys))
	for k := range batchKeys {
		times, err := s.existingTimes(ctx, k)
		if err != nil {
			return 0, fmt.Errorf("check existing: %w", err)
		}
		existing[k] = times
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO activity_records (
			participant_id, metric, record_date, time_of_day, value, recorded_at
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	inserted := 0
	for _, r := range records {
		k := seriesKey{r.ParticipantID, r.Metric, r.Date}
		if _, exists := existing[k][r.Time]; exists {
			continue
		}
		date, err := time.Parse("2006-01-02", string(r.Date))
		if err != nil {
			batch.Abort()
			return 0, storage.ErrInvalidInput
		}
		err = batch.Append(
			r.ParticipantID, string(r.Metric), date,
			uint32(r.Time), r.Value, r.RecordedAt.UTC(),
		)
		if err != nil {
			batch.Abort()
			return 0, fmt.Errorf("append to batch: %w", err)
		}
		inserted++
	}

	if inserted == 0 {
		batch.Abort()
		return 0, nil
	}
	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}
	return inserted, nil
}

// GetByDateRange retrieves records with date in [from, to), ordered by (date, time) ASC.
func (s *ActivityRecordStore) GetByDateRange(ctx context.Context, participantID string, metric domain.Metric, from, to domain.Date) ([]*domain.ActivityRecord, error) {
	query := `
		SELECT participant_id, metric, toString(record_date), time_of_day, value, recorded_at
		FROM activity_records
		WHERE participant_id = ? AND metric = ?
		  AND record_date >= toDate(?) AND record_date < toDate(?)
		ORDER BY record_date ASC, time_of_day ASC
	`

	rows, err := s.conn.Query(ctx, query, participantID, string(metric), string(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanActivityRecords(rows)
}

// GetByTimeRange retrieves records of one date with time in [start, end] (inclusive).
func (s *ActivityRecordStore) GetByTimeRange(ctx context.Context, participantID string, metric domain.Metric, date domain.Date, start, end domain.TimeOfDay) ([]*domain.ActivityRecord, error) {
	query := `
		SELECT participant_id, metric, toString(record_date), time_of_day, value, recorded_at
		FROM activity_records
		WHERE participant_id = ? AND metric = ? AND record_date = toDate(?)
		  AND time_of_day >= ? AND time_of_day <= ?
		ORDER BY time_of_day ASC
	`

	rows, err := s.conn.Query(ctx, query, participantID, string(metric), string(date), uint32(start), uint32(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanActivityRecords(rows)
}

func (s *ActivityRecordStore) existingTimes(ctx context.Context, k seriesKey) (map[domain.TimeOfDay]struct{}, error) {
	query := `
		SELECT time_of_day FROM activity_records
		WHERE participant_id = ? AND metric = ? AND record_date = toDate(?)
	`

	rows, err := s.conn.Query(ctx, query, k.participantID, string(k.metric), string(k.date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	times := make(map[domain.TimeOfDay]struct{})
	for rows.Next() {
		var tod uint32
		if err := rows.Scan(&tod); err != nil {
			return nil, err
		}
		times[domain.TimeOfDay(tod)] = struct{}{}
	}
	return times, rows.Err()
}

func scanActivityRecords(rows chRows) ([]*domain.ActivityRecord, error) {
	var records []*domain.ActivityRecord

	for rows.Next() {
		var (
			r      domain.ActivityRecord
			metric string
			date   string
			tod    uint32
		)
		if err := rows.Scan(&r.ParticipantID, &metric, &date, &tod, &r.Value, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan activity record row: %w", err)
		}
		r.Metric = domain.Metric(metric)
		r.Date = domain.Date(date)
		r.Time = domain.TimeOfDay(tod)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity record rows: %w", err)
	}
	return records, nil
}
