package reporting

import (
	"context"
	"testing"
	"time"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage/memory"
)

func TestSummarizeDay(t *testing.T) {
	ctx := context.Background()
	records := memory.NewActivityRecordStore()
	participants := memory.NewParticipantStore()
	summaries := memory.NewDailySummaryStore()

	if err := participants.Insert(ctx, &domain.Participant{ExperimentID: "P001", Active: true}); err != nil {
		t.Fatalf("insert participant: %v", err)
	}

	_, err := records.AppendNew(ctx, []*domain.ActivityRecord{
		{ParticipantID: "P001", Metric: domain.MetricSteps, Date: "2026-04-07", Time: domain.NewTimeOfDay(9, 0, 0), Value: 10},
		{ParticipantID: "P001", Metric: domain.MetricSteps, Date: "2026-04-07", Time: domain.NewTimeOfDay(9, 1, 0), Value: 30},
		{ParticipantID: "P001", Metric: domain.MetricSteps, Date: "2026-04-08", Time: domain.NewTimeOfDay(9, 0, 0), Value: 1000},
		// sedentary is not a summary metric
		{ParticipantID: "P001", Metric: domain.MetricSedentary, Date: "2026-04-07", Time: domain.NewTimeOfDay(9, 0, 0), Value: 50},
	})
	if err != nil {
		t.Fatalf("seed records: %v", err)
	}

	fixed := time.Date(2026, 4, 8, 0, 10, 0, 0, time.UTC)
	s := NewSummarizer(records, participants, summaries, nil).WithClock(func() time.Time { return fixed })

	res, err := s.SummarizeDay(ctx, "2026-04-07")
	if err != nil {
		t.Fatalf("SummarizeDay failed: %v", err)
	}
	if res.Stored != 1 {
		t.Errorf("expected 1 summary stored, got %d", res.Stored)
	}
	if res.Empty != len(domain.SummaryMetrics())-1 {
		t.Errorf("expected %d empty metrics, got %d", len(domain.SummaryMetrics())-1, res.Empty)
	}

	got, err := summaries.GetByParticipant(ctx, "P001", "2026-04-07", "2026-04-08")
	if err != nil {
		t.Fatalf("GetByParticipant failed: %v", err)
	}
	if len(got) != 1 || got[0].Metric != domain.MetricSteps || got[0].Mean != 20 || got[0].SampleCount != 2 {
		t.Errorf("unexpected summaries: %+v", got)
	}
	if !got[0].RecordedAt.Equal(fixed) {
		t.Errorf("expected injected clock, got %v", got[0].RecordedAt)
	}

	// Rerun keeps the existing row
	res, err = s.SummarizeDay(ctx, "2026-04-07")
	if err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if res.Stored != 0 || res.Existing != 1 {
		t.Errorf("expected 0 stored / 1 existing on rerun, got %+v", res)
	}
}
