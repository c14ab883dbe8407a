// Package config provides centralized configuration loaded from environment
// variables, with study parameters optionally overridden by a TOML file.
// Shared by cmd/nudge and cmd/server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // study timezone must resolve in minimal images

	"github.com/BurntSushi/toml"

	"activity-nudge-lab/internal/baseline"
	"activity-nudge-lab/internal/decision"
	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/schedule"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// DefaultTimezone is the study timezone when TIMEZONE is unset.
const DefaultTimezone = "Asia/Tokyo"

// Config struct, populated from environment variables.
type Config struct {
	// Storage
	StorageBackend string
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration
	MigrateOnStart bool
	ClickhouseDSN  string // optional, activity records go to ClickHouse when set
	RedisAddr      string // optional, schedules go to Redis when set
	RedisPassword  string
	AgeIdentity    string // optional, seals stored credentials

	// Upstream provider
	FitbitAPIBase     string
	FitbitAuthBase    string
	FitbitRatePerHour int
	FetchTimeout      time.Duration

	// Delivery
	SlackBotToken string
	SlackAPIBase  string
	KafkaBrokers  []string
	KafkaTopic    string

	// Report archive
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	ReportDir   string

	// Runtime
	Timezone      string
	Location      *time.Location
	Workers       int
	HTTPAddr      string
	CORSOrigins   []string
	CycleInterval time.Duration
	LogLevel      string
	LogFormat     string

	Study Study
}

// Study holds the experiment parameters.
type Study struct {
	Blocks     []schedule.Block
	Band       domain.TimeBand
	WindowDays int
	K          float64
	Messages   decision.Messages
}

// studyFile is the TOML layout of STUDY_CONFIG.
type studyFile struct {
	Blocks       [][]int            `toml:"blocks"`
	BaselineBand string             `toml:"baseline_band"`
	WindowDays   int                `toml:"window_days"`
	ThresholdK   float64            `toml:"threshold_k"`
	Messages     *decision.Messages `toml:"messages"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		StorageBackend: envOr("STORAGE_BACKEND", BackendMemory),
		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  envDuration("DB_POOL_MAX_LIFE", 30*time.Minute),
		MigrateOnStart: envBool("MIGRATE_ON_START", false),
		ClickhouseDSN:  envOr("CLICKHOUSE_DSN", ""),
		RedisAddr:      envOr("REDIS_ADDR", ""),
		RedisPassword:  envOr("REDIS_PASSWORD", ""),
		AgeIdentity:    envOr("AGE_IDENTITY", ""),

		FitbitAPIBase:     envOr("FITBIT_API_BASE", "https://api.fitbit.com"),
		FitbitAuthBase:    envOr("FITBIT_AUTH_BASE", "https://api.fitbit.com"),
		FitbitRatePerHour: envInt("FITBIT_RATE_PER_HOUR", 150),
		FetchTimeout:      envDuration("FETCH_TIMEOUT", 30*time.Second),

		SlackBotToken: envOr("SLACK_BOT_TOKEN", ""),
		SlackAPIBase:  envOr("SLACK_API_BASE", "https://slack.com/api"),
		KafkaBrokers:  envList("KAFKA_BROKERS", nil),
		KafkaTopic:    envOr("KAFKA_TOPIC", "interventions.executed"),

		S3Bucket:    envOr("S3_BUCKET", ""),
		S3Region:    envOr("S3_REGION", ""),
		S3Endpoint:  envOr("S3_ENDPOINT", ""),
		S3AccessKey: envOr("S3_ACCESS_KEY", ""),
		S3SecretKey: envOr("S3_SECRET_KEY", ""),
		ReportDir:   envOr("REPORT_DIR", "output"),

		Timezone:      envOr("TIMEZONE", DefaultTimezone),
		Workers:       envInt("WORKERS", 4),
		HTTPAddr:      envOr("HTTP_ADDR", ":8080"),
		CORSOrigins:   envList("CORS_ALLOW_ORIGINS", []string{"http://localhost:3000"}),
		CycleInterval: envDuration("CYCLE_INTERVAL", time.Hour),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "json"),

		Study: Study{
			Blocks:     schedule.DefaultBlocks(),
			Band:       domain.DefaultBaselineBand,
			WindowDays: envInt("BASELINE_WINDOW_DAYS", baseline.DefaultWindowDays),
			K:          envFloat("THRESHOLD_K", decision.DefaultThresholdK),
			Messages:   decision.DefaultMessages(),
		},
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if v := os.Getenv("BASELINE_BAND"); v != "" {
		band, err := domain.ParseTimeBand(v)
		if err != nil {
			return nil, fmt.Errorf("BASELINE_BAND: %w", err)
		}
		cfg.Study.Band = band
	}

	if path := os.Getenv("STUDY_CONFIG"); path != "" {
		if err := cfg.Study.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overrides study parameters with the values present in a TOML file.
func (s *Study) LoadFile(path string) error {
	var f studyFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return fmt.Errorf("decode study config %s: %w", path, err)
	}

	if len(f.Blocks) > 0 {
		s.Blocks = make([]schedule.Block, len(f.Blocks))
		for i, b := range f.Blocks {
			s.Blocks[i] = schedule.Block(b)
		}
	}
	if f.BaselineBand != "" {
		band, err := domain.ParseTimeBand(f.BaselineBand)
		if err != nil {
			return fmt.Errorf("study config baseline_band: %w", err)
		}
		s.Band = band
	}
	if f.WindowDays != 0 {
		s.WindowDays = f.WindowDays
	}
	if f.ThresholdK != 0 {
		s.K = f.ThresholdK
	}
	if f.Messages != nil {
		if f.Messages.WalkMore != "" {
			s.Messages.WalkMore = f.Messages.WalkMore
		}
		if f.Messages.TakeABreak != "" {
			s.Messages.TakeABreak = f.Messages.TakeABreak
		}
		if f.Messages.OnTrack != "" {
			s.Messages.OnTrack = f.Messages.OnTrack
		}
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendMemory, BackendPostgres, c.StorageBackend))
	}

	if c.Workers < 1 {
		errs = append(errs, errors.New("WORKERS must be >= 1"))
	}
	if c.FitbitRatePerHour < 1 {
		errs = append(errs, errors.New("FITBIT_RATE_PER_HOUR must be >= 1"))
	}
	if err := c.Study.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks the study parameters.
func (s *Study) Validate() error {
	var errs []error
	if err := s.Band.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("baseline band: %w", err))
	}
	if err := schedule.ValidateBlocks(s.Blocks); err != nil {
		errs = append(errs, fmt.Errorf("time blocks: %w", err))
	}
	if s.K <= 0 {
		errs = append(errs, fmt.Errorf("threshold k must be > 0, got %v", s.K))
	}
	if s.WindowDays < 1 {
		errs = append(errs, fmt.Errorf("window days must be >= 1, got %d", s.WindowDays))
	}
	return errors.Join(errs...)
}

// DecisionConfig returns the decision engine parameters.
func (c *Config) DecisionConfig() decision.Config {
	return decision.Config{
		K:          c.Study.K,
		WindowDays: c.Study.WindowDays,
		Band:       c.Study.Band,
		Location:   c.Location,
		Messages:   c.Study.Messages,
	}
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
