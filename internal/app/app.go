// Package app assembles the engine from configuration. Shared by cmd/nudge
// and cmd/server.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"activity-nudge-lab/internal/baseline"
	"activity-nudge-lab/internal/config"
	"activity-nudge-lab/internal/credential"
	"activity-nudge-lab/internal/decision"
	"activity-nudge-lab/internal/events"
	"activity-nudge-lab/internal/fitbit"
	"activity-nudge-lab/internal/ingestion"
	"activity-nudge-lab/internal/normalization"
	"activity-nudge-lab/internal/notify"
	"activity-nudge-lab/internal/observability"
	"activity-nudge-lab/internal/orchestrator"
	"activity-nudge-lab/internal/reporting"
	"activity-nudge-lab/internal/schedule"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "nudge"

// App is the assembled engine.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Stores   *Stores
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Hub      *notify.Hub

	Schedules    *schedule.Generator
	Decisions    *decision.Engine
	Orchestrator *orchestrator.Orchestrator
	Summarizer   *reporting.Summarizer
	Reports      *reporting.Generator

	publisher *events.KafkaPublisher
}

// New wires all components on top of stores. The caller keeps ownership of stores.
func New(cfg *config.Config, stores *Stores, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(MetricsNamespace, reg)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Stores:   stores,
		Registry: reg,
		Metrics:  metrics,
		Hub:      notify.NewHub(nil, logger.Named("hub")),
	}

	schedules, err := schedule.NewGenerator(stores.Schedules,
		schedule.WithBlocks(cfg.Study.Blocks),
		schedule.WithLogger(logger.Named("schedule")),
	)
	if err != nil {
		return nil, fmt.Errorf("create schedule generator: %w", err)
	}
	a.Schedules = schedules

	// Upstream
	client := fitbit.NewClient(
		fitbit.WithBaseURL(cfg.FitbitAPIBase),
		fitbit.WithTimeout(cfg.FetchTimeout),
		fitbit.WithRateLimiter(fitbit.PerHourLimiter(cfg.FitbitRatePerHour)),
	)
	tokens := fitbit.NewTokenClient(cfg.FitbitAuthBase, &http.Client{Timeout: cfg.FetchTimeout})
	guard := credential.NewGuard(client, tokens, stores.Participants,
		credential.WithLogger(logger.Named("credential")),
		credential.WithObserver(metrics),
	)

	ingester := ingestion.NewRunner(ingestion.RunnerOptions{
		Fetcher:      guard,
		Normalizer:   normalization.NewRunner(stores.Records),
		FetchTimeout: cfg.FetchTimeout,
		Observer:     metrics,
		Logger:       logger.Named("ingestion"),
	})

	// Delivery
	decisionOpts := decision.Options{
		Records:   stores.Records,
		Baselines: baseline.NewEngine(stores.Records, logger.Named("baseline")),
		Logs:      stores.Logs,
		Notifier:  a.notifier(),
		Config:    cfg.DecisionConfig(),
		Logger:    logger.Named("decision"),
	}
	if len(cfg.KafkaBrokers) > 0 {
		a.publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		decisionOpts.Publisher = a.publisher
	}
	a.Decisions = decision.NewEngine(decisionOpts)

	a.Orchestrator = orchestrator.New(orchestrator.Options{
		Participants: stores.Participants,
		Schedules:    schedules,
		Ingester:     ingester,
		Evaluator:    a.Decisions,
		Location:     cfg.Location,
		Workers:      cfg.Workers,
		Metrics:      metrics,
		Logger:       logger.Named("orchestrator"),
	})

	a.Summarizer = reporting.NewSummarizer(stores.Records, stores.Participants, stores.Summaries, logger.Named("summary"))
	a.Reports = reporting.NewGenerator(stores.Logs)

	return a, nil
}

// notifier fans out to the log, live subscribers and Slack when configured.
func (a *App) notifier() notify.Notifier {
	targets := notify.Multi{
		notify.LogNotifier{Logger: a.Logger.Named("notify")},
		a.Hub,
	}
	if a.Config.SlackBotToken != "" {
		targets = append(targets, notify.NewSlack(a.Config.SlackBotToken, notify.WithSlackBaseURL(a.Config.SlackAPIBase)))
	} else {
		a.Logger.Warn("SLACK_BOT_TOKEN not set, messages are only logged and broadcast")
	}
	return targets
}

// Archiver returns the S3 archiver when S3_BUCKET is set, else a local directory archiver.
func (a *App) Archiver(ctx context.Context) (reporting.Archiver, error) {
	if a.Config.S3Bucket == "" {
		return reporting.DirArchiver{Root: a.Config.ReportDir}, nil
	}
	return reporting.NewS3Archiver(ctx, reporting.S3Config{
		Bucket:    a.Config.S3Bucket,
		Region:    a.Config.S3Region,
		Endpoint:  a.Config.S3Endpoint,
		AccessKey: a.Config.S3AccessKey,
		SecretKey: a.Config.S3SecretKey,
		Prefix:    "reports/",
	})
}

// MetricsHandler serves the app registry.
func (a *App) MetricsHandler() http.Handler {
	return observability.HandlerFor(a.Registry)
}

// Close stops background delivery. Stores are closed by their owner.
func (a *App) Close() {
	a.Hub.Close()
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Logger.Warn("close kafka publisher", zap.Error(err))
		}
	}
}
