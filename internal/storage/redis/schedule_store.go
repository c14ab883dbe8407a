// Package redis provides a Redis-backed schedule store for multi-process deployments.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// DefaultKeyPrefix namespaces schedule keys.
const DefaultKeyPrefix = "nudge:schedule:"

// DefaultTTL keeps schedules long enough for audit queries on recent days.
const DefaultTTL = 14 * 24 * time.Hour

// ScheduleStore implements storage.ScheduleStore using SETNX, so concurrent
// generators across processes agree on one schedule per date.
type ScheduleStore struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Option configures ScheduleStore.
type Option func(*ScheduleStore)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *ScheduleStore) { s.prefix = prefix }
}

// WithTTL overrides DefaultTTL. Zero keeps keys forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *ScheduleStore) { s.ttl = ttl }
}

// NewScheduleStore creates a new ScheduleStore.
func NewScheduleStore(client goredis.UniversalClient, opts ...Option) *ScheduleStore {
	s := &ScheduleStore{client: client, prefix: DefaultKeyPrefix, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient connects to addr and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Compile-time interface check.
var _ storage.ScheduleStore = (*ScheduleStore)(nil)

type scheduleDoc struct {
	Date      string    `json:"date"`
	Hours     []int     `json:"hours"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *ScheduleStore) key(date domain.Date) string {
	return s.prefix + string(date)
}

// Get retrieves the schedule of a date. Returns ErrNotFound if not exists.
func (s *ScheduleStore) Get(ctx context.Context, date domain.Date) (*domain.InterventionSchedule, error) {
	raw, err := s.client.Get(ctx, s.key(date)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	var doc scheduleDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return &domain.InterventionSchedule{
		Date:      domain.Date(doc.Date),
		Hours:     doc.Hours,
		CreatedAt: doc.CreatedAt,
	}, nil
}

// InsertIfAbsent stores sched with SETNX and returns whichever schedule won.
func (s *ScheduleStore) InsertIfAbsent(ctx context.Context, sched *domain.InterventionSchedule) (*domain.InterventionSchedule, error) {
	if sched == nil || sched.Date == "" || len(sched.Hours) == 0 {
		return nil, storage.ErrInvalidInput
	}

	raw, err := json.Marshal(scheduleDoc{
		Date:      string(sched.Date),
		Hours:     sched.Hours,
		CreatedAt: sched.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}

	if _, err := s.client.SetNX(ctx, s.key(sched.Date), raw, s.ttl).Result(); err != nil {
		return nil, fmt.Errorf("setnx schedule: %w", err)
	}

	return s.Get(ctx, sched.Date)
}
