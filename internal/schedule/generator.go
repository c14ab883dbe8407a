package schedule

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// Block is a contiguous set of candidate hours. One hour is drawn per block.
type Block []int

// DefaultBlocks are the morning, early afternoon, late afternoon and evening blocks.
func DefaultBlocks() []Block {
	return []Block{
		{9, 10, 11, 12},
		{13, 14, 15},
		{16, 17, 18, 19},
		{20, 21, 22},
	}
}

// ValidateBlocks checks that blocks are non-empty, ascending, within the day and disjoint.
func ValidateBlocks(blocks []Block) error {
	if len(blocks) == 0 {
		return errors.New("no schedule blocks")
	}
	last := -1
	for i, b := range blocks {
		if len(b) == 0 {
			return fmt.Errorf("block %d is empty", i)
		}
		for _, h := range b {
			if h < 0 || h > 23 {
				return fmt.Errorf("block %d: hour %d out of range", i, h)
			}
			if h <= last {
				return fmt.Errorf("block %d: hour %d not ascending or overlaps previous block", i, h)
			}
			last = h
		}
	}
	return nil
}

// Generator produces the day's intervention schedule, at most once per date.
type Generator struct {
	store  storage.ScheduleStore
	blocks []Block
	now    func() time.Time
	logger *zap.Logger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// Option configures a Generator.
type Option func(*Generator)

// WithBlocks overrides the default blocks. Validated by NewGenerator.
func WithBlocks(blocks []Block) Option {
	return func(g *Generator) { g.blocks = blocks }
}

// WithRand sets the random source. Tests pass a seeded source.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithNow sets the clock used for CreatedAt.
func WithNow(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// NewGenerator creates a schedule generator backed by store.
func NewGenerator(store storage.ScheduleStore, opts ...Option) (*Generator, error) {
	g := &Generator{
		store:  store,
		blocks: DefaultBlocks(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := ValidateBlocks(g.blocks); err != nil {
		return nil, err
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g, nil
}

// Generate returns the schedule for date, drawing and storing one if none exists.
// When concurrent callers race, the store keeps the first write and every caller
// receives that schedule.
func (g *Generator) Generate(ctx context.Context, date domain.Date) (*domain.InterventionSchedule, error) {
	existing, err := g.store.Get(ctx, date)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get schedule %s: %w", date, err)
	}

	drawn := &domain.InterventionSchedule{
		Date:      date,
		Hours:     g.Draw(),
		CreatedAt: g.now().UTC(),
	}

	stored, err := g.store.InsertIfAbsent(ctx, drawn)
	if err != nil {
		return nil, fmt.Errorf("store schedule %s: %w", date, err)
	}

	g.logger.Info("intervention schedule ready",
		zap.String("date", string(date)),
		zap.Ints("hours", stored.Hours),
		zap.Bool("drawn_here", sameHours(stored.Hours, drawn.Hours)),
	)
	return stored, nil
}

// Draw picks one hour per block uniformly and returns them ascending.
func (g *Generator) Draw() []int {
	g.mu.Lock()
	defer g.mu.Unlock()

	hours := make([]int, len(g.blocks))
	for i, b := range g.blocks {
		hours[i] = b[g.rng.IntN(len(b))]
	}
	sort.Ints(hours)
	return hours
}

func sameHours(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
