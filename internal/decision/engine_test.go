package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"activity-nudge-lab/internal/baseline"
	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage/memory"
)

var jst = time.FixedZone("JST", 9*3600)

type fakeNotifier struct {
	calls []string
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, destination, text string) error {
	f.calls = append(f.calls, destination+"|"+text)
	return f.err
}

type fakePublisher struct {
	entries []*domain.InterventionLogEntry
	err     error
}

func (f *fakePublisher) PublishIntervention(_ context.Context, e *domain.InterventionLogEntry) error {
	f.entries = append(f.entries, e)
	return f.err
}

type failingLogStore struct {
	*memory.InterventionLogStore
}

func (failingLogStore) Insert(context.Context, *domain.InterventionLogEntry) error {
	return errors.New("disk full")
}

type fixture struct {
	records   *memory.ActivityRecordStore
	logs      *memory.InterventionLogStore
	notifier  *fakeNotifier
	publisher *fakePublisher
	engine    *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		records:   memory.NewActivityRecordStore(),
		logs:      memory.NewInterventionLogStore(),
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}
	cfg := DefaultConfig()
	cfg.Location = jst
	f.engine = NewEngine(Options{
		Records:   f.records,
		Baselines: baseline.NewEngine(f.records, nil),
		Logs:      f.logs,
		Notifier:  f.notifier,
		Publisher: f.publisher,
		Config:    cfg,
		Logger:    zaptest.NewLogger(t),
		NewID:     func() string { return "00000000-0000-0000-0000-000000000001" },
	})
	return f
}

func (f *fixture) add(t *testing.T, metric domain.Metric, date domain.Date, tod domain.TimeOfDay, v float64) {
	t.Helper()
	_, err := f.records.AppendNew(context.Background(), []*domain.ActivityRecord{{
		ParticipantID: "P001", Metric: metric, Date: date, Time: tod, Value: v,
	}})
	require.NoError(t, err)
}

// seedHistory gives steps mean 120 / sd 28.28 and sedentary mean 40 / sd 14.14.
func (f *fixture) seedHistory(t *testing.T) {
	f.add(t, domain.MetricSteps, "2026-04-02", domain.NewTimeOfDay(10, 0, 0), 100)
	f.add(t, domain.MetricSteps, "2026-04-03", domain.NewTimeOfDay(10, 0, 0), 140)
	f.add(t, domain.MetricSedentary, "2026-04-02", domain.NewTimeOfDay(10, 0, 0), 30)
	f.add(t, domain.MetricSedentary, "2026-04-03", domain.NewTimeOfDay(10, 0, 0), 50)
}

var (
	participant = &domain.Participant{ExperimentID: "P001", NotificationDestination: "D123", Active: true}
	schedule    = &domain.InterventionSchedule{Date: "2026-04-08", Hours: []int{10, 14, 17, 21}}
	scheduledAt = time.Date(2026, 4, 8, 10, 0, 30, 0, jst)
)

func TestEvaluate_WalkMore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedHistory(t)

	// Previous hour 09:00-09:59: low steps, long sitting
	f.add(t, domain.MetricSteps, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 10)
	f.add(t, domain.MetricSteps, "2026-04-08", domain.NewTimeOfDay(9, 59, 0), 20)
	f.add(t, domain.MetricSedentary, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 60)
	// Current hour is outside the window
	f.add(t, domain.MetricSteps, "2026-04-08", domain.NewTimeOfDay(10, 0, 0), 5000)

	out, err := f.engine.Evaluate(ctx, participant, scheduledAt, schedule)
	require.NoError(t, err)
	require.True(t, out.Executed())

	assert.Equal(t, domain.BelowThreshold, out.Entry.StepClassification)
	assert.Equal(t, domain.AboveThreshold, out.Entry.SedentaryClassification)
	assert.Equal(t, domain.MessageWalkMore, out.Entry.MessageKind)
	assert.Equal(t, 15.0, out.Entry.StepMean)
	assert.Equal(t, 60.0, out.Entry.SedentaryMean)
	assert.Equal(t, domain.Date("2026-04-08"), out.Entry.Date)
	assert.Equal(t, domain.NewTimeOfDay(10, 0, 30), out.Entry.Time)
	assert.True(t, out.Entry.Delivered)

	require.Len(t, f.notifier.calls, 1)
	assert.Equal(t, "D123|"+DefaultMessages().WalkMore, f.notifier.calls[0])

	logged, err := f.logs.GetByParticipant(ctx, "P001", "2026-04-08", "2026-04-09")
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, domain.MessageWalkMore, logged[0].MessageKind)

	require.Len(t, f.publisher.entries, 1)
}

func TestEvaluate_NotScheduled(t *testing.T) {
	f := newFixture(t)
	f.seedHistory(t)

	out, err := f.engine.Evaluate(context.Background(), participant, time.Date(2026, 4, 8, 11, 0, 0, 0, jst), schedule)
	require.NoError(t, err)
	assert.Equal(t, SkipNotScheduled, out.Skipped)
	assert.False(t, out.Executed())
	assert.Empty(t, f.notifier.calls)
}

func TestEvaluate_UsesStudyTimezone(t *testing.T) {
	f := newFixture(t)
	f.seedHistory(t)
	f.add(t, domain.MetricSteps, "2026-04-08", domain.NewTimeOfDay(9, 30, 0), 120)
	f.add(t, domain.MetricSedentary, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 40)

	// 01:00 UTC is 10:00 JST
	out, err := f.engine.Evaluate(context.Background(), participant, time.Date(2026, 4, 8, 1, 0, 0, 0, time.UTC), schedule)
	require.NoError(t, err)
	require.True(t, out.Executed())
	assert.Equal(t, domain.MessageOnTrack, out.Entry.MessageKind)
}

func TestEvaluate_NoRecentData(t *testing.T) {
	f := newFixture(t)
	f.seedHistory(t)
	// Steps only; sedentary missing
	f.add(t, domain.MetricSteps, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 10)

	out, err := f.engine.Evaluate(context.Background(), participant, scheduledAt, schedule)
	require.NoError(t, err)
	assert.Equal(t, SkipNoRecentData, out.Skipped)
	assert.Empty(t, f.notifier.calls)
}

func TestEvaluate_NoBaseline(t *testing.T) {
	f := newFixture(t)
	f.add(t, domain.MetricSteps, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 10)
	f.add(t, domain.MetricSedentary, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 60)
	// A single historical point is not enough
	f.add(t, domain.MetricSteps, "2026-04-05", domain.NewTimeOfDay(12, 0, 0), 100)

	out, err := f.engine.Evaluate(context.Background(), participant, scheduledAt, schedule)
	require.NoError(t, err)
	assert.Equal(t, SkipNoBaseline, out.Skipped)

	logged, err := f.logs.GetByParticipant(context.Background(), "P001", "2026-04-01", "2026-04-30")
	require.NoError(t, err)
	assert.Empty(t, logged)
}

func TestEvaluate_DispatchFailureStillLogs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedHistory(t)
	f.add(t, domain.MetricSteps, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 200)
	f.add(t, domain.MetricSedentary, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 0)
	f.notifier.err = errors.New("channel_not_found")

	out, err := f.engine.Evaluate(ctx, participant, scheduledAt, schedule)
	require.NoError(t, err)
	require.True(t, out.Executed())
	assert.Error(t, out.DeliveryErr)
	assert.Equal(t, domain.MessageTakeABreak, out.Entry.MessageKind)
	assert.False(t, out.Entry.Delivered)

	logged, err := f.logs.GetByParticipant(ctx, "P001", "2026-04-08", "2026-04-09")
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.False(t, logged[0].Delivered)
}

func TestEvaluate_LogFailureReturnsError(t *testing.T) {
	f := newFixture(t)
	f.seedHistory(t)
	f.add(t, domain.MetricSteps, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 120)
	f.add(t, domain.MetricSedentary, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 40)

	f.engine.logs = failingLogStore{f.logs}

	_, err := f.engine.Evaluate(context.Background(), participant, scheduledAt, schedule)
	require.Error(t, err)
	// Dispatch happened before the log write
	assert.Len(t, f.notifier.calls, 1)
	assert.Empty(t, f.publisher.entries)
}

func TestEvaluate_PublishFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.seedHistory(t)
	f.add(t, domain.MetricSteps, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 120)
	f.add(t, domain.MetricSedentary, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 40)
	f.publisher.err = errors.New("broker down")

	out, err := f.engine.Evaluate(context.Background(), participant, scheduledAt, schedule)
	require.NoError(t, err)
	assert.True(t, out.Executed())
}

type fixedBaselines map[domain.Metric]*domain.Baseline

func (f fixedBaselines) Compute(_ context.Context, _ string, metric domain.Metric, _ domain.Date, _ int, _ domain.TimeBand) (*domain.Baseline, error) {
	return f[metric], nil
}

func TestEvaluate_WalkMoreAgainstWeeklyBaseline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stepSD, sedSD := 1000.0, 10.0
	cfg := DefaultConfig()
	cfg.Location = jst
	engine := NewEngine(Options{
		Records: f.records,
		Baselines: fixedBaselines{
			domain.MetricSteps:     {Mean: 6000, StdDev: &stepSD, SampleCount: 70},
			domain.MetricSedentary: {Mean: 40, StdDev: &sedSD, SampleCount: 70},
		},
		Logs:     f.logs,
		Notifier: f.notifier,
		Config:   cfg,
		Logger:   zaptest.NewLogger(t),
		NewID:    func() string { return "00000000-0000-0000-0000-000000000002" },
	})

	f.add(t, domain.MetricSteps, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 5200)
	f.add(t, domain.MetricSedentary, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 48)

	out, err := engine.Evaluate(ctx, participant, scheduledAt, schedule)
	require.NoError(t, err)
	require.True(t, out.Executed())
	assert.Equal(t, domain.BelowThreshold, out.Entry.StepClassification)
	assert.Equal(t, domain.AboveThreshold, out.Entry.SedentaryClassification)
	assert.Equal(t, domain.MessageWalkMore, out.Entry.MessageKind)
	assert.Equal(t, 5200.0, out.Entry.StepMean)
	assert.Equal(t, 48.0, out.Entry.SedentaryMean)

	logged, err := f.logs.GetByParticipant(ctx, "P001", "2026-04-08", "2026-04-09")
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, domain.MessageWalkMore, logged[0].MessageKind)
	assert.Len(t, f.notifier.calls, 1)
}

func TestEvaluate_SinglePointBaselineSkips(t *testing.T) {
	f := newFixture(t)
	f.add(t, domain.MetricSteps, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 10)
	f.add(t, domain.MetricSedentary, "2026-04-08", domain.NewTimeOfDay(9, 0, 0), 60)
	f.add(t, domain.MetricSteps, "2026-04-05", domain.NewTimeOfDay(12, 0, 0), 100)
	f.add(t, domain.MetricSedentary, "2026-04-05", domain.NewTimeOfDay(12, 0, 0), 30)

	out, err := f.engine.Evaluate(context.Background(), participant, scheduledAt, schedule)
	require.NoError(t, err)
	assert.Equal(t, SkipNoBaseline, out.Skipped)
	assert.Empty(t, f.notifier.calls)
}
