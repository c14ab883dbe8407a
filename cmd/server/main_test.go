package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"activity-nudge-lab/internal/app"
	"activity-nudge-lab/internal/config"
	"activity-nudge-lab/internal/decision"
	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/schedule"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		StorageBackend:    config.BackendMemory,
		FitbitRatePerHour: 150,
		FetchTimeout:      time.Second,
		Location:          time.UTC,
		Workers:           1,
		CORSOrigins:       []string{"http://localhost:3000"},
		CycleInterval:     time.Hour,
		Study: config.Study{
			Blocks:     schedule.DefaultBlocks(),
			Band:       domain.DefaultBaselineBand,
			WindowDays: 7,
			K:          decision.DefaultThresholdK,
			Messages:   decision.DefaultMessages(),
		},
	}
	logger := zaptest.NewLogger(t)
	a, err := app.New(cfg, app.MemoryStores(), logger)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	return &Server{app: a, cfg: cfg, logger: logger, started: time.Now()}
}

func TestRoutes_Health(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRoutes_StatusAfterCycle(t *testing.T) {
	s := newTestServer(t)
	s.runCycle(context.Background())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.CycleRuns)
	assert.False(t, resp.CycleRunning)
	require.NotNil(t, resp.LastCycle)
	assert.Equal(t, 0, resp.LastCycle.Participants)
}

func TestRoutes_Interventions(t *testing.T) {
	s := newTestServer(t)
	err := s.app.Stores.Logs.Insert(context.Background(), &domain.InterventionLogEntry{
		EntryID:       "9f1c2f3e-0000-4000-8000-000000000001",
		ParticipantID: "P001",
		Date:          "2026-04-08",
		Time:          domain.NewTimeOfDay(10, 0, 2),
		MessageKind:   domain.MessageTakeABreak,
		Message:       "Time to stand up",
		Delivered:     true,
		RecordedAt:    time.Date(2026, 4, 8, 1, 0, 2, 0, time.UTC),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/participants/P001/interventions?from=2026-04-01&to=2026-04-09", nil)
	s.routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []InterventionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "10:00:02", resp[0].Time)
	assert.Equal(t, "TAKE_A_BREAK", resp[0].MessageKind)

	// Another participant sees nothing
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/participants/P002/interventions?from=2026-04-01&to=2026-04-09", nil)
	s.routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRoutes_InterventionsBadRange(t *testing.T) {
	s := newTestServer(t)

	for _, q := range []string{"from=yesterday", "from=2026-04-09&to=2026-04-01"} {
		rec := httptest.NewRecorder()
		s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/participants/P001/interventions?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestNextAligned(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	now := time.Date(2026, 4, 8, 9, 59, 30, 0, loc)
	assert.True(t, time.Date(2026, 4, 8, 10, 0, 0, 0, loc).Equal(nextAligned(now, time.Hour, loc)), "got %v", nextAligned(now, time.Hour, loc))

	// Exactly on the boundary moves to the next one
	now = time.Date(2026, 4, 8, 10, 0, 0, 0, loc)
	assert.True(t, time.Date(2026, 4, 8, 11, 0, 0, 0, loc).Equal(nextAligned(now, time.Hour, loc)), "got %v", nextAligned(now, time.Hour, loc))

	now = time.Date(2026, 4, 8, 23, 40, 0, 0, loc)
	assert.True(t, time.Date(2026, 4, 9, 0, 0, 0, 0, loc).Equal(nextAligned(now, 30*time.Minute, loc)), "got %v", nextAligned(now, 30*time.Minute, loc))
}

func TestNextSummary(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 4, 8, 0, 5, 0, 0, loc)
	assert.True(t, time.Date(2026, 4, 8, 0, 10, 0, 0, loc).Equal(nextSummary(now, loc)), "got %v", nextSummary(now, loc))

	now = time.Date(2026, 4, 8, 13, 0, 0, 0, loc)
	assert.True(t, time.Date(2026, 4, 9, 0, 10, 0, 0, loc).Equal(nextSummary(now, loc)), "got %v", nextSummary(now, loc))
}
