package memory

import (
	"context"
	"sort"
	"sync"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// ParticipantStore is an in-memory implementation of storage.ParticipantStore.
type ParticipantStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Participant // keyed by experiment_id
}

// NewParticipantStore creates a new in-memory participant store.
func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{
		data: make(map[string]*domain.Participant),
	}
}

// Insert adds a participant. Returns ErrDuplicateKey if experiment_id exists.
func (s *ParticipantStore) Insert(_ context.Context, p *domain.Participant) error {
	if p == nil || p.ExperimentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ExperimentID]; exists {
		return storage.ErrDuplicateKey
	}
	participantCopy := *p
	s.data[p.ExperimentID] = &participantCopy
	return nil
}

// GetByID retrieves a participant. Returns ErrNotFound if not exists.
func (s *ParticipantStore) GetByID(_ context.Context, experimentID string) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[experimentID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	participantCopy := *p
	return &participantCopy, nil
}

// ListActive retrieves active participants ordered by experiment_id ASC.
func (s *ParticipantStore) ListActive(_ context.Context) ([]*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Participant
	for _, p := range s.data {
		if p.Active {
			participantCopy := *p
			result = append(result, &participantCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExperimentID < result[j].ExperimentID
	})
	return result, nil
}

// UpdateCredential replaces the stored credential.
func (s *ParticipantStore) UpdateCredential(_ context.Context, experimentID string, cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data[experimentID]
	if !ok {
		return storage.ErrNotFound
	}
	p.Credential = cred
	return nil
}

var _ storage.ParticipantStore = (*ParticipantStore)(nil)
