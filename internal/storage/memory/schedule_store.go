package memory

import (
	"context"
	"sync"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// ScheduleStore is an in-memory implementation of storage.ScheduleStore.
type ScheduleStore struct {
	mu   sync.RWMutex
	data map[domain.Date]*domain.InterventionSchedule
}

// NewScheduleStore creates a new in-memory schedule store.
func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{
		data: make(map[domain.Date]*domain.InterventionSchedule),
	}
}

// Get retrieves the schedule of a date. Returns ErrNotFound if not exists.
func (s *ScheduleStore) Get(_ context.Context, date domain.Date) (*domain.InterventionSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.data[date]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copySchedule(stored), nil
}

// InsertIfAbsent stores sched unless the date already has one; first write wins.
func (s *ScheduleStore) InsertIfAbsent(_ context.Context, sched *domain.InterventionSchedule) (*domain.InterventionSchedule, error) {
	if sched == nil || sched.Date == "" || len(sched.Hours) == 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.data[sched.Date]; ok {
		return copySchedule(stored), nil
	}
	s.data[sched.Date] = copySchedule(sched)
	return copySchedule(sched), nil
}

func copySchedule(s *domain.InterventionSchedule) *domain.InterventionSchedule {
	c := *s
	c.Hours = append([]int(nil), s.Hours...)
	return &c
}

var _ storage.ScheduleStore = (*ScheduleStore)(nil)
