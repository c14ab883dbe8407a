package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// DailySummaryStore is an in-memory implementation of storage.DailySummaryStore.
type DailySummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DailySummary // keyed by (participant_id, date, metric)
}

// NewDailySummaryStore creates a new in-memory daily summary store.
func NewDailySummaryStore() *DailySummaryStore {
	return &DailySummaryStore{
		data: make(map[string]*domain.DailySummary),
	}
}

func summaryKey(participantID string, date domain.Date, metric domain.Metric) string {
	return fmt.Sprintf("%s|%s|%s", participantID, date, metric)
}

// Insert adds a summary. Returns ErrDuplicateKey if the key exists.
func (s *DailySummaryStore) Insert(_ context.Context, sum *domain.DailySummary) error {
	if sum == nil || sum.ParticipantID == "" || sum.Date == "" || sum.Metric == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := summaryKey(sum.ParticipantID, sum.Date, sum.Metric)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	summaryCopy := *sum
	s.data[key] = &summaryCopy
	return nil
}

// GetByParticipant retrieves summaries with date in [from, to), ordered by (date, metric) ASC.
func (s *DailySummaryStore) GetByParticipant(_ context.Context, participantID string, from, to domain.Date) ([]*domain.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DailySummary
	for _, sum := range s.data {
		if sum.ParticipantID == participantID && sum.Date >= from && sum.Date < to {
			summaryCopy := *sum
			result = append(result, &summaryCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].Metric < result[j].Metric
	})
	return result, nil
}

var _ storage.DailySummaryStore = (*DailySummaryStore)(nil)
