package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// ActivityRecordStore is an in-memory implementation of storage.ActivityRecordStore.
type ActivityRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ActivityRecord // keyed by (participant_id, metric, date, time)
}

// NewActivityRecordStore creates a new in-memory activity record store.
func NewActivityRecordStore() *ActivityRecordStore {
	return &ActivityRecordStore{
		data: make(map[string]*domain.ActivityRecord),
	}
}

// activityKey generates the natural key of a record.
func activityKey(r *domain.ActivityRecord) string {
	return fmt.Sprintf("%s|%s|%s|%d", r.ParticipantID, r.Metric, r.Date, r.Time)
}

// AppendNew inserts records whose key is absent and skips existing ones.
func (s *ActivityRecordStore) AppendNew(_ context.Context, records []*domain.ActivityRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate and detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.ParticipantID == "" || r.Metric == "" || r.Date == "" || !r.Time.Valid() {
			return 0, storage.ErrInvalidInput
		}
		key := activityKey(r)
		if _, exists := batchKeys[key]; exists {
			return 0, storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert absent keys
	inserted := 0
	for _, r := range records {
		key := activityKey(r)
		if _, exists := s.data[key]; exists {
			continue
		}
		recordCopy := *r
		s.data[key] = &recordCopy
		inserted++
	}

	return inserted, nil
}

// GetByDateRange retrieves records with date in [from, to), ordered by (date, time) ASC.
func (s *ActivityRecordStore) GetByDateRange(_ context.Context, participantID string, metric domain.Metric, from, to domain.Date) ([]*domain.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActivityRecord
	for _, r := range s.data {
		if r.ParticipantID == participantID && r.Metric == metric && r.Date >= from && r.Date < to {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sortRecords(result)
	return result, nil
}

// GetByTimeRange retrieves records of one date with time in [start, end] (inclusive).
func (s *ActivityRecordStore) GetByTimeRange(_ context.Context, participantID string, metric domain.Metric, date domain.Date, start, end domain.TimeOfDay) ([]*domain.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActivityRecord
	for _, r := range s.data {
		if r.ParticipantID == participantID && r.Metric == metric && r.Date == date &&
			r.Time >= start && r.Time <= end {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sortRecords(result)
	return result, nil
}

func sortRecords(records []*domain.ActivityRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date < records[j].Date
		}
		return records[i].Time < records[j].Time
	})
}

var _ storage.ActivityRecordStore = (*ActivityRecordStore)(nil)
