package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"activity-nudge-lab/internal/baseline"
	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

// SkipReason explains why no intervention was executed.
type SkipReason string

const (
	SkipNotScheduled SkipReason = "not_scheduled"
	SkipNoRecentData SkipReason = "no_recent_data"
	SkipNoBaseline   SkipReason = "no_baseline"
)

// BaselineSource computes trailing-window baselines.
type BaselineSource interface {
	Compute(ctx context.Context, participantID string, metric domain.Metric, asOf domain.Date, windowDays int, band domain.TimeBand) (*domain.Baseline, error)
}

// Notifier delivers a message to a participant's destination.
type Notifier interface {
	Notify(ctx context.Context, destination, text string) error
}

// Publisher receives executed interventions after they are logged.
type Publisher interface {
	PublishIntervention(ctx context.Context, entry *domain.InterventionLogEntry) error
}

// Outcome is the result of one evaluation.
type Outcome struct {
	ParticipantID string
	Skipped       SkipReason                  // empty when executed
	Entry         *domain.InterventionLogEntry // set when executed
	DeliveryErr   error                        // dispatch failure, entry still logged
}

// Executed reports whether a message was selected and logged.
func (o *Outcome) Executed() bool {
	return o != nil && o.Skipped == "" && o.Entry != nil
}

// Config holds study parameters of the decision.
type Config struct {
	K          float64
	WindowDays int
	Band       domain.TimeBand
	Location   *time.Location
	Messages   Messages
}

// DefaultConfig returns the stock study parameters.
func DefaultConfig() Config {
	return Config{
		K:          DefaultThresholdK,
		WindowDays: baseline.DefaultWindowDays,
		Band:       domain.DefaultBaselineBand,
		Location:   time.UTC,
		Messages:   DefaultMessages(),
	}
}

// Options for creating Engine.
type Options struct {
	// Required
	Records   storage.ActivityRecordStore
	Baselines BaselineSource
	Logs      storage.InterventionLogStore
	Notifier  Notifier

	// Optional
	Publisher Publisher
	Config    Config
	Logger    *zap.Logger
	NewID     func() string
}

// Engine decides, dispatches and logs hourly interventions.
type Engine struct {
	records   storage.ActivityRecordStore
	baselines BaselineSource
	logs      storage.InterventionLogStore
	notifier  Notifier
	publisher Publisher
	cfg       Config
	logger    *zap.Logger
	newID     func() string
}

// NewEngine creates a decision engine. Zero-valued config fields take defaults.
func NewEngine(opts Options) *Engine {
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.K <= 0 {
		cfg.K = def.K
	}
	if cfg.WindowDays < 1 {
		cfg.WindowDays = def.WindowDays
	}
	if cfg.Band == (domain.TimeBand{}) {
		cfg.Band = def.Band
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}

	e := &Engine{
		records:   opts.Records,
		baselines: opts.Baselines,
		logs:      opts.Logs,
		notifier:  opts.Notifier,
		publisher: opts.Publisher,
		cfg:       cfg,
		logger:    opts.Logger,
		newID:     opts.NewID,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// Evaluate runs the decision for one participant at now.
//
// Flow: schedule gate, previous-hour means of steps and sedentary minutes,
// trailing baselines, classification, message selection, dispatch, log.
// A dispatch failure is recorded on the outcome and the entry; the entry is
// logged either way. A log write failure is returned as an error.
func (e *Engine) Evaluate(ctx context.Context, p *domain.Participant, now time.Time, sched *domain.InterventionSchedule) (*Outcome, error) {
	local := now.In(e.cfg.Location)
	out := &Outcome{ParticipantID: p.ExperimentID}
	log := e.logger.With(zap.String("participant", p.ExperimentID))

	if !sched.Contains(local.Hour()) {
		out.Skipped = SkipNotScheduled
		return out, nil
	}

	// Recent window: previous clock hour
	date, start, end := domain.PreviousHour(local)
	stepMean, err := e.recentMean(ctx, p.ExperimentID, domain.MetricSteps, date, start, end)
	if err != nil {
		return nil, err
	}
	sedMean, err := e.recentMean(ctx, p.ExperimentID, domain.MetricSedentary, date, start, end)
	if err != nil {
		return nil, err
	}
	if stepMean == nil || sedMean == nil {
		log.Info("skipping intervention: no recent data", zap.String("date", string(date)), zap.Stringer("from", start))
		out.Skipped = SkipNoRecentData
		return out, nil
	}

	// Baselines
	today := domain.DateOf(local)
	stepBase, err := e.baselines.Compute(ctx, p.ExperimentID, domain.MetricSteps, today, e.cfg.WindowDays, e.cfg.Band)
	if err != nil {
		return nil, fmt.Errorf("steps baseline: %w", err)
	}
	sedBase, err := e.baselines.Compute(ctx, p.ExperimentID, domain.MetricSedentary, today, e.cfg.WindowDays, e.cfg.Band)
	if err != nil {
		return nil, fmt.Errorf("sedentary baseline: %w", err)
	}
	if stepBase == nil || sedBase == nil || !stepBase.HasSpread() || !sedBase.HasSpread() {
		log.Info("skipping intervention: no baseline", zap.String("date", string(today)))
		out.Skipped = SkipNoBaseline
		return out, nil
	}

	stepClass := Classify(*stepMean, *stepBase, e.cfg.K)
	sedClass := Classify(*sedMean, *sedBase, e.cfg.K)
	kind := SelectMessage(stepClass, sedClass)
	text := e.cfg.Messages.Text(kind)

	// Dispatch before logging
	if err := e.notifier.Notify(ctx, p.NotificationDestination, text); err != nil {
		log.Warn("notification failed", zap.String("kind", string(kind)), zap.Error(err))
		out.DeliveryErr = err
	}

	entry := &domain.InterventionLogEntry{
		EntryID:                 e.newID(),
		ParticipantID:           p.ExperimentID,
		Date:                    today,
		Time:                    domain.TimeOfDayOf(local),
		StepClassification:      stepClass,
		SedentaryClassification: sedClass,
		StepMean:                *stepMean,
		SedentaryMean:           *sedMean,
		MessageKind:             kind,
		Message:                 text,
		Delivered:               out.DeliveryErr == nil,
		RecordedAt:              now.UTC(),
	}
	if err := e.logs.Insert(ctx, entry); err != nil {
		return out, fmt.Errorf("append intervention log: %w", err)
	}
	out.Entry = entry

	log.Info("intervention executed",
		zap.String("kind", string(kind)),
		zap.String("steps", string(stepClass)),
		zap.String("sedentary", string(sedClass)),
		zap.Bool("delivered", entry.Delivered),
	)

	if e.publisher != nil {
		if err := e.publisher.PublishIntervention(ctx, entry); err != nil {
			log.Warn("publish intervention failed", zap.String("entry_id", entry.EntryID), zap.Error(err))
		}
	}

	return out, nil
}

// recentMean averages one metric over [start, end] of date. Returns nil when no records exist.
func (e *Engine) recentMean(ctx context.Context, participantID string, metric domain.Metric, date domain.Date, start, end domain.TimeOfDay) (*float64, error) {
	records, err := e.records.GetByTimeRange(ctx, participantID, metric, date, start, end)
	if err != nil {
		return nil, fmt.Errorf("load recent %s: %w", metric, err)
	}
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Value
	}
	return baseline.ComputeStats(values).Mean, nil
}
