package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"activity-nudge-lab/internal/credential"
	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/fitbit"
	"activity-nudge-lab/internal/normalization"
	"activity-nudge-lab/internal/storage/memory"
)

type stubFetcher struct {
	samples map[domain.Metric][]domain.RawSample
	errs    map[domain.Metric]error
	calls   []domain.Metric
}

func (f *stubFetcher) Fetch(ctx context.Context, _ string, cred *domain.Credential, req fitbit.IntradayRequest) (*fitbit.IntradayResponse, error) {
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("fetch without deadline")
	}
	f.calls = append(f.calls, req.Metric)
	if err := f.errs[req.Metric]; err != nil {
		return nil, err
	}
	return &fitbit.IntradayResponse{Metric: req.Metric, Date: req.Date, Samples: f.samples[req.Metric]}, nil
}

var window = Window{
	Date:  "2026-04-08",
	Start: domain.NewTimeOfDay(9, 0, 0),
	End:   domain.NewTimeOfDay(9, 59, 59),
}

func newTestRunner(f *stubFetcher, store *memory.ActivityRecordStore) *Runner {
	return NewRunner(RunnerOptions{
		Fetcher:    f,
		Normalizer: normalization.NewRunner(store),
		Now:        func() time.Time { return time.Date(2026, 4, 8, 1, 0, 0, 0, time.UTC) },
	})
}

func TestIngest_AllMetrics(t *testing.T) {
	ctx := context.Background()
	store := memory.NewActivityRecordStore()
	f := &stubFetcher{samples: map[domain.Metric][]domain.RawSample{
		domain.MetricSteps: {
			{Time: domain.NewTimeOfDay(9, 0, 0), Value: 10},
			{Time: domain.NewTimeOfDay(9, 1, 0), Value: 20},
			{Time: domain.NewTimeOfDay(10, 0, 0), Value: 99}, // outside window
		},
		domain.MetricSedentary: {
			{Time: domain.NewTimeOfDay(9, 0, 0), Value: 1},
			{Time: domain.NewTimeOfDay(9, 1, 0), Value: 1},
		},
	}}

	res := newTestRunner(f, store).Ingest(ctx, &domain.Participant{ExperimentID: "P001"}, window)

	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if len(f.calls) != len(domain.AllMetrics()) {
		t.Errorf("expected %d fetches, got %d", len(domain.AllMetrics()), len(f.calls))
	}
	if res.Inserted[domain.MetricSteps] != 2 {
		t.Errorf("expected 2 steps inserted, got %d", res.Inserted[domain.MetricSteps])
	}
	if res.Inserted[domain.MetricSedentary] != 1 {
		t.Errorf("expected 1 sedentary bucket, got %d", res.Inserted[domain.MetricSedentary])
	}

	sed, _ := store.GetByTimeRange(ctx, "P001", domain.MetricSedentary, "2026-04-08", window.Start, window.End)
	if len(sed) != 1 || sed[0].Value != 2 {
		t.Errorf("unexpected sedentary records: %+v", sed)
	}
}

func TestIngest_ExpiredSkipsRemaining(t *testing.T) {
	f := &stubFetcher{errs: map[domain.Metric]error{
		domain.MetricHeart: credential.ErrExpiredAfterRetry,
	}}

	res := newTestRunner(f, memory.NewActivityRecordStore()).Ingest(context.Background(), &domain.Participant{ExperimentID: "P001"}, window)

	if !res.Expired {
		t.Error("expected Expired")
	}
	// steps, heart; nothing after heart
	if len(f.calls) != 2 {
		t.Errorf("expected 2 fetches, got %v", f.calls)
	}
}

func TestIngest_UpstreamErrorContinues(t *testing.T) {
	f := &stubFetcher{errs: map[domain.Metric]error{
		domain.MetricSteps: credential.ErrUpstream,
	}}

	res := newTestRunner(f, memory.NewActivityRecordStore()).Ingest(context.Background(), &domain.Participant{ExperimentID: "P001"}, window)

	if res.Expired {
		t.Error("upstream error must not mark credential expired")
	}
	if len(res.Errors) != 1 {
		t.Errorf("expected 1 error, got %v", res.Errors)
	}
	if len(f.calls) != len(domain.AllMetrics()) {
		t.Errorf("expected all metrics attempted, got %v", f.calls)
	}
}
