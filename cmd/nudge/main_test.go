package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/reporting"
	"activity-nudge-lab/internal/storage/memory"
)

func TestDateOrToday(t *testing.T) {
	d, err := dateOrToday("2026-04-08", time.UTC, -1)
	if err != nil || d != "2026-04-08" {
		t.Errorf("explicit date: got %s, %v", d, err)
	}

	if _, err := dateOrToday("04/08/2026", time.UTC, 0); err == nil {
		t.Error("expected error for malformed date")
	}

	today := domain.DateOf(time.Now().UTC())
	d, err = dateOrToday("", time.UTC, -1)
	if err != nil || d != today.AddDays(-1) {
		t.Errorf("default: got %s, want %s", d, today.AddDays(-1))
	}
}

func TestRenderExport(t *testing.T) {
	ctx := context.Background()
	logs := memory.NewInterventionLogStore()
	err := logs.Insert(ctx, &domain.InterventionLogEntry{
		EntryID: "e1", ParticipantID: "P001", Date: "2026-04-08", Time: domain.NewTimeOfDay(10, 0, 0),
		MessageKind: domain.MessageWalkMore, Message: "walk", Delivered: true, RecordedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	g := reporting.NewGenerator(logs)

	var buf bytes.Buffer
	ct, err := renderExport(ctx, g, "csv", "2026-04-08", "2026-04-09", &buf)
	if err != nil || ct != "text/csv" {
		t.Fatalf("csv export: %s, %v", ct, err)
	}
	if !strings.Contains(buf.String(), "P001") {
		t.Errorf("csv missing entry:\n%s", buf.String())
	}

	buf.Reset()
	ct, err = renderExport(ctx, g, "md", "2026-04-08", "2026-04-09", &buf)
	if err != nil || ct != "text/markdown" {
		t.Fatalf("md export: %s, %v", ct, err)
	}
	if !strings.HasPrefix(buf.String(), "# Intervention Report") {
		t.Errorf("unexpected markdown:\n%s", buf.String())
	}

	if _, err := renderExport(ctx, g, "xml", "2026-04-08", "2026-04-09", &buf); err == nil {
		t.Error("expected error for unknown format")
	}
}
