// Package orchestrator runs the hourly cycle.
// It coordinates: schedule → per participant (ingestion → decision)
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"activity-nudge-lab/internal/decision"
	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/ingestion"
	"activity-nudge-lab/internal/observability"
	"activity-nudge-lab/internal/storage"
)

// Clock provides the current instant.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now implements Clock.
func (c FixedClock) Now() time.Time { return time.Time(c) }

// ScheduleSource returns the schedule of a date, creating it if needed.
type ScheduleSource interface {
	Generate(ctx context.Context, date domain.Date) (*domain.InterventionSchedule, error)
}

// Ingester pulls one participant's data for a window.
type Ingester interface {
	Ingest(ctx context.Context, p *domain.Participant, w ingestion.Window) *ingestion.Result
}

// Evaluator runs the intervention decision for one participant.
type Evaluator interface {
	Evaluate(ctx context.Context, p *domain.Participant, now time.Time, sched *domain.InterventionSchedule) (*decision.Outcome, error)
}

// Orchestrator coordinates one cycle across all active participants.
type Orchestrator struct {
	participants storage.ParticipantStore
	schedules    ScheduleSource
	ingester     Ingester
	evaluator    Evaluator
	clock        Clock
	location     *time.Location
	workers      int
	skipIngest   bool
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Participants storage.ParticipantStore
	Schedules    ScheduleSource
	Ingester     Ingester
	Evaluator    Evaluator

	// Options
	Clock      Clock          // Default: RealClock
	Location   *time.Location // Default: UTC
	Workers    int            // Default: 1 (sequential)
	SkipIngest bool           // Decide on stored data only
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		participants: opts.Participants,
		schedules:    opts.Schedules,
		ingester:     opts.Ingester,
		evaluator:    opts.Evaluator,
		clock:        opts.Clock,
		location:     opts.Location,
		workers:      opts.Workers,
		skipIngest:   opts.SkipIngest,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
	if o.clock == nil {
		o.clock = RealClock{}
	}
	if o.location == nil {
		o.location = time.UTC
	}
	if o.workers < 1 {
		o.workers = 1
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// RunResult contains results from one cycle.
type RunResult struct {
	Date         domain.Date
	Hour         int
	Participants int
	Inserted     int // activity records stored
	Executed     int // interventions logged
	Skipped      map[decision.SkipReason]int
	Errors       []string
	Duration     time.Duration
}

// RunCycle executes one cycle.
// Phases:
//  1. Resolve now and today's schedule
//  2. Load active participants
//  3. Per participant: ingest the previous clock hour, then evaluate
//
// Per-participant failures are collected in RunResult.Errors and never abort
// the cycle. Only loading the schedule or the participants is fatal.
func (o *Orchestrator) RunCycle(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	now := o.clock.Now().In(o.location)
	today := domain.DateOf(now)

	result := &RunResult{
		Date:    today,
		Hour:    now.Hour(),
		Skipped: make(map[decision.SkipReason]int),
	}

	// Phase 1: schedule
	sched, err := o.schedules.Generate(ctx, today)
	if err != nil {
		o.recordCycle("failed", start, result)
		return nil, fmt.Errorf("phase 1 (schedule) failed: %w", err)
	}

	// Phase 2: participants
	participants, err := o.participants.ListActive(ctx)
	if err != nil {
		o.recordCycle("failed", start, result)
		return nil, fmt.Errorf("phase 2 (load participants) failed: %w", err)
	}
	result.Participants = len(participants)

	o.logger.Info("cycle started",
		zap.String("date", string(today)),
		zap.Int("hour", now.Hour()),
		zap.Ints("scheduled_hours", sched.Hours),
		zap.Int("participants", len(participants)),
		zap.Int("workers", o.workers),
	)

	// Phase 3: worker pool over participants
	date, from, to := domain.PreviousHour(now)
	window := ingestion.Window{Date: date, Start: from, End: to}

	workers := o.workers
	if workers > len(participants) {
		workers = len(participants)
	}

	ch := make(chan *domain.Participant, len(participants))
	for _, p := range participants {
		ch <- p
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range ch {
				pr := o.runParticipant(ctx, p, now, sched, window)

				mu.Lock()
				result.Inserted += pr.inserted
				if pr.outcome != nil {
					if pr.outcome.Executed() {
						result.Executed++
					} else if pr.outcome.Skipped != "" {
						result.Skipped[pr.outcome.Skipped]++
					}
				}
				result.Errors = append(result.Errors, pr.errors...)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	o.recordCycle("ok", start, result)
	o.logger.Info("cycle completed",
		zap.String("date", string(today)),
		zap.Int("inserted", result.Inserted),
		zap.Int("executed", result.Executed),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

type participantResult struct {
	inserted int
	outcome  *decision.Outcome
	errors   []string
}

func (o *Orchestrator) runParticipant(ctx context.Context, p *domain.Participant, now time.Time, sched *domain.InterventionSchedule, window ingestion.Window) participantResult {
	var pr participantResult

	if !o.skipIngest {
		ing := o.ingester.Ingest(ctx, p, window)
		for _, n := range ing.Inserted {
			pr.inserted += n
		}
		for _, e := range ing.Errors {
			pr.errors = append(pr.errors, fmt.Sprintf("ingest %s: %s", p.ExperimentID, e))
		}
	}

	out, err := o.evaluator.Evaluate(ctx, p, now, sched)
	if err != nil {
		pr.errors = append(pr.errors, fmt.Sprintf("evaluate %s: %v", p.ExperimentID, err))
		return pr
	}
	pr.outcome = out

	if o.metrics != nil {
		switch {
		case out.Executed():
			o.metrics.RecordIntervention(out.Entry.MessageKind, out.Entry.Delivered)
		case out.Skipped != "":
			o.metrics.RecordSkip(string(out.Skipped))
		}
	}
	if out.DeliveryErr != nil {
		pr.errors = append(pr.errors, fmt.Sprintf("notify %s: %v", p.ExperimentID, out.DeliveryErr))
	}
	return pr
}

func (o *Orchestrator) recordCycle(status string, start time.Time, result *RunResult) {
	result.Duration = time.Since(start)
	if o.metrics != nil {
		o.metrics.RecordCycle(status, result.Duration, len(result.Errors), result.Participants)
	}
}
