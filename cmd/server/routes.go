package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	"go.uber.org/zap"

	"activity-nudge-lab/internal/domain"
)

// defaultLogDays is the range served when the log endpoint gets no from/to.
const defaultLogDays = 7

// routes builds the HTTP router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	c := corslib.New(corslib.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	})
	r.Use(c.Handler)

	// --- Routes ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", s.app.MetricsHandler())
	r.Handle("/ws", s.app.Hub)
	r.Get("/participants/{id}/interventions", s.handleInterventions)

	return r
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status         string        `json:"status"`
	Uptime         string        `json:"uptime"`
	Timezone       string        `json:"timezone"`
	LastCycleRun   time.Time     `json:"last_cycle_run,omitempty"`
	LastSummaryRun time.Time     `json:"last_summary_run,omitempty"`
	CycleRuns      int           `json:"cycle_runs"`
	SummaryRuns    int           `json:"summary_runs"`
	CycleRunning   bool          `json:"cycle_running"`
	LastCycle      *CycleSummary `json:"last_cycle,omitempty"`
	LiveClients    int           `json:"live_clients"`
}

// CycleSummary is the last cycle result as served by /status.
type CycleSummary struct {
	Date         string         `json:"date"`
	Hour         int            `json:"hour"`
	Participants int            `json:"participants"`
	Inserted     int            `json:"inserted"`
	Executed     int            `json:"executed"`
	Skipped      map[string]int `json:"skipped"`
	Errors       int            `json:"errors"`
	Duration     string         `json:"duration"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:         "running",
		Uptime:         time.Since(s.started).Round(time.Second).String(),
		Timezone:       s.cfg.Location.String(),
		LastCycleRun:   s.lastCycleRun,
		LastSummaryRun: s.lastSummaryRun,
		CycleRuns:      s.cycleRuns,
		SummaryRuns:    s.summaryRuns,
		CycleRunning:   s.cycleRunning,
	}
	if res := s.lastCycle; res != nil {
		cs := &CycleSummary{
			Date:         string(res.Date),
			Hour:         res.Hour,
			Participants: res.Participants,
			Inserted:     res.Inserted,
			Executed:     res.Executed,
			Skipped:      make(map[string]int, len(res.Skipped)),
			Errors:       len(res.Errors),
			Duration:     res.Duration.String(),
		}
		for reason, n := range res.Skipped {
			cs.Skipped[string(reason)] = n
		}
		resp.LastCycle = cs
	}
	s.mu.Unlock()

	resp.LiveClients = s.app.Hub.Clients()
	writeJSON(w, http.StatusOK, resp)
}

// InterventionResponse is one log entry as served by the API.
type InterventionResponse struct {
	EntryID                 string    `json:"entry_id"`
	Date                    string    `json:"date"`
	Time                    string    `json:"time"`
	StepClassification      string    `json:"step_classification"`
	SedentaryClassification string    `json:"sedentary_classification"`
	StepMean                float64   `json:"step_mean"`
	SedentaryMean           float64   `json:"sedentary_mean"`
	MessageKind             string    `json:"message_kind"`
	Message                 string    `json:"message"`
	Delivered               bool      `json:"delivered"`
	RecordedAt              time.Time `json:"recorded_at"`
}

// handleInterventions serves a participant's log over [from, to).
// Defaults to the last seven days including today.
func (s *Server) handleInterventions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	today := domain.DateOf(time.Now().In(s.cfg.Location))
	from, to := today.AddDays(1-defaultLogDays), today.AddDays(1)

	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = domain.ParseDate(v); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = domain.ParseDate(v); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if to <= from {
		writeError(w, http.StatusBadRequest, errors.New("to must be after from"))
		return
	}

	entries, err := s.app.Stores.Logs.GetByParticipant(r.Context(), id, from, to)
	if err != nil {
		s.logger.Error("load intervention logs", zap.String("participant", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("failed to load intervention logs"))
		return
	}

	resp := make([]InterventionResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, InterventionResponse{
			EntryID:                 e.EntryID,
			Date:                    string(e.Date),
			Time:                    e.Time.String(),
			StepClassification:      string(e.StepClassification),
			SedentaryClassification: string(e.SedentaryClassification),
			StepMean:                e.StepMean,
			SedentaryMean:           e.SedentaryMean,
			MessageKind:             string(e.MessageKind),
			Message:                 e.Message,
			Delivered:               e.Delivered,
			RecordedAt:              e.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
