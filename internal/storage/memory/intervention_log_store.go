package memory

import (
	"context"
	"sort"
	"sync"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// InterventionLogStore is an in-memory implementation of storage.InterventionLogStore.
type InterventionLogStore struct {
	mu   sync.RWMutex
	data map[string]*domain.InterventionLogEntry // keyed by entry_id
}

// NewInterventionLogStore creates a new in-memory intervention log store.
func NewInterventionLogStore() *InterventionLogStore {
	return &InterventionLogStore{
		data: make(map[string]*domain.InterventionLogEntry),
	}
}

// Insert appends an entry. Returns ErrDuplicateKey if entry_id exists.
func (s *InterventionLogStore) Insert(_ context.Context, e *domain.InterventionLogEntry) error {
	if e == nil || e.EntryID == "" || e.ParticipantID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EntryID]; exists {
		return storage.ErrDuplicateKey
	}

	entryCopy := *e
	s.data[e.EntryID] = &entryCopy
	return nil
}

// GetByParticipant retrieves entries with date in [from, to).
func (s *InterventionLogStore) GetByParticipant(_ context.Context, participantID string, from, to domain.Date) ([]*domain.InterventionLogEntry, error) {
	return s.filter(func(e *domain.InterventionLogEntry) bool {
		return e.ParticipantID == participantID && e.Date >= from && e.Date < to
	}), nil
}

// GetByDateRange retrieves entries of all participants with date in [from, to).
func (s *InterventionLogStore) GetByDateRange(_ context.Context, from, to domain.Date) ([]*domain.InterventionLogEntry, error) {
	return s.filter(func(e *domain.InterventionLogEntry) bool {
		return e.Date >= from && e.Date < to
	}), nil
}

func (s *InterventionLogStore) filter(match func(*domain.InterventionLogEntry) bool) []*domain.InterventionLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.InterventionLogEntry
	for _, e := range s.data {
		if match(e) {
			entryCopy := *e
			result = append(result, &entryCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		if result[i].Time != result[j].Time {
			return result[i].Time < result[j].Time
		}
		return result[i].ParticipantID < result[j].ParticipantID
	})
	return result
}

var _ storage.InterventionLogStore = (*InterventionLogStore)(nil)
