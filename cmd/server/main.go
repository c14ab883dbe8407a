// Package main provides the long-running server that runs all components together:
// - Cycle (hourly): ingestion of the previous hour, then intervention decisions
// - Summary (daily): per-metric daily means of the previous day
// - HTTP: health, status, metrics, live notifications and intervention logs
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"activity-nudge-lab/internal/app"
	"activity-nudge-lab/internal/config"
	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/logging"
	"activity-nudge-lab/internal/orchestrator"
)

// summaryDelay is how long after midnight the daily summary runs.
const summaryDelay = 10 * time.Minute

// Server holds all components of the service.
type Server struct {
	app    *app.App
	cfg    *config.Config
	logger *zap.Logger

	// State
	mu             sync.Mutex
	started        time.Time
	lastCycleRun   time.Time
	lastCycle      *orchestrator.RunResult
	lastSummaryRun time.Time
	cycleRunning   bool

	// Stats
	cycleRuns   int
	summaryRuns int
}

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to create stores", zap.Error(err))
	}
	defer stores.Close()

	a, err := app.New(cfg, stores, logger)
	if err != nil {
		logger.Fatal("failed to assemble engine", zap.Error(err))
	}
	defer a.Close()

	server := &Server{
		app:     a,
		cfg:     cfg,
		logger:  logger,
		started: time.Now(),
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting HTTP server", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
			cancel()
		}
	}()

	err = server.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("HTTP shutdown", zap.Error(serr))
	}
	shutdownCancel()
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// Run starts the schedulers and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting server",
		zap.String("timezone", s.cfg.Location.String()),
		zap.Duration("cycle_interval", s.cfg.CycleInterval),
		zap.Int("workers", s.cfg.Workers),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runCycleScheduler(ctx)
	}()
	go func() {
		defer wg.Done()
		s.runSummaryScheduler(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// nextAligned returns the first multiple of interval after now, measured from
// midnight in loc. An hourly interval fires at the top of every hour.
func nextAligned(now time.Time, interval time.Duration, loc *time.Location) time.Time {
	now = now.In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	elapsed := now.Sub(midnight)
	return midnight.Add((elapsed/interval + 1) * interval)
}

// nextSummary returns the next summary time, summaryDelay after a midnight in loc.
func nextSummary(now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)
	t := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).Add(summaryDelay)
	if !t.After(now) {
		t = time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, loc).Add(summaryDelay)
	}
	return t
}

// runCycleScheduler runs the cycle at every aligned interval.
func (s *Server) runCycleScheduler(ctx context.Context) {
	for {
		next := nextAligned(time.Now(), s.cfg.CycleInterval, s.cfg.Location)
		s.logger.Info("next cycle scheduled", zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle executes one cycle unless one is still running.
func (s *Server) runCycle(ctx context.Context) {
	s.mu.Lock()
	if s.cycleRunning {
		s.mu.Unlock()
		s.logger.Warn("cycle already running, skipping")
		return
	}
	s.cycleRunning = true
	s.mu.Unlock()

	res, err := s.app.Orchestrator.RunCycle(ctx)

	s.mu.Lock()
	s.cycleRunning = false
	s.lastCycleRun = time.Now()
	s.cycleRuns++
	if err == nil {
		s.lastCycle = res
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("cycle failed", zap.Error(err))
		return
	}
	for _, msg := range res.Errors {
		s.logger.Warn("cycle error", zap.String("error", msg))
	}
}

// runSummaryScheduler stores the previous day's summary once per day.
func (s *Server) runSummaryScheduler(ctx context.Context) {
	for {
		next := nextSummary(time.Now(), s.cfg.Location)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runSummary(ctx, domain.DateOf(next.In(s.cfg.Location)).AddDays(-1))
		}
	}
}

func (s *Server) runSummary(ctx context.Context, date domain.Date) {
	res, err := s.app.Summarizer.SummarizeDay(ctx, date)

	s.mu.Lock()
	s.lastSummaryRun = time.Now()
	s.summaryRuns++
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("daily summary failed", zap.String("date", string(date)), zap.Error(err))
		return
	}
	s.app.Metrics.RecordSummaries(res.Stored)
	for _, msg := range res.Errors {
		s.logger.Warn("summary error", zap.String("date", string(date)), zap.String("error", msg))
	}
}
