package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"activity-nudge-lab/internal/config"
	"activity-nudge-lab/internal/secrets"
	"activity-nudge-lab/internal/storage"
	chstore "activity-nudge-lab/internal/storage/clickhouse"
	"activity-nudge-lab/internal/storage/memory"
	"activity-nudge-lab/internal/storage/migrations"
	pgstore "activity-nudge-lab/internal/storage/postgres"
	redisstore "activity-nudge-lab/internal/storage/redis"
)

// Stores holds all storage implementations.
type Stores struct {
	Records      storage.ActivityRecordStore
	Logs         storage.InterventionLogStore
	Schedules    storage.ScheduleStore
	Participants storage.ParticipantStore
	Summaries    storage.DailySummaryStore

	pool  *pgstore.Pool
	ch    *chstore.Conn
	redis *goredis.Client
}

// MemoryStores returns in-memory stores.
func MemoryStores() *Stores {
	return &Stores{
		Records:      memory.NewActivityRecordStore(),
		Logs:         memory.NewInterventionLogStore(),
		Schedules:    memory.NewScheduleStore(),
		Participants: memory.NewParticipantStore(),
		Summaries:    memory.NewDailySummaryStore(),
	}
}

// OpenStores creates the stores selected by cfg.
//
// The postgres backend holds all tables. CLICKHOUSE_DSN moves activity
// records to ClickHouse and REDIS_ADDR moves schedules to Redis.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	if cfg.StorageBackend == config.BackendMemory {
		logger.Warn("using in-memory storage, data is lost on exit")
		return MemoryStores(), nil
	}

	sealer, err := newSealer(cfg.AgeIdentity)
	if err != nil {
		return nil, err
	}

	// PostgreSQL
	pool, err := pgstore.NewPoolWithConfig(ctx, cfg.DatabaseURL, pgstore.PoolConfig{
		MinConns:        int32(cfg.DBPoolMinConns),
		MaxConns:        int32(cfg.DBPoolMaxConns),
		MaxConnLifetime: cfg.DBPoolMaxLife,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	s := &Stores{
		Records:      pgstore.NewActivityRecordStore(pool),
		Logs:         pgstore.NewInterventionLogStore(pool),
		Schedules:    pgstore.NewScheduleStore(pool),
		Participants: pgstore.NewParticipantStore(pool, sealer),
		Summaries:    pgstore.NewDailySummaryStore(pool),
		pool:         pool,
	}

	// ClickHouse (analytics)
	if cfg.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		s.ch = conn
		s.Records = chstore.NewActivityRecordStore(conn)
		logger.Info("activity records stored in clickhouse")
	}

	// Redis (schedule)
	if cfg.RedisAddr != "" {
		client, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		s.redis = client
		s.Schedules = redisstore.NewScheduleStore(client)
		logger.Info("schedules stored in redis")
	}

	if cfg.MigrateOnStart {
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

// Migrate applies the embedded schemas of the open databases.
func (s *Stores) Migrate(ctx context.Context) error {
	if s.pool != nil {
		if err := migrations.RunPostgres(ctx, s.pool.Pool); err != nil {
			return err
		}
	}
	if s.ch != nil {
		if err := migrations.RunClickhouse(ctx, s.ch); err != nil {
			return err
		}
	}
	return nil
}

// Persistent reports whether the stores outlive the process.
func (s *Stores) Persistent() bool {
	return s.pool != nil
}

// Close releases all connections.
func (s *Stores) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.ch != nil {
		s.ch.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func newSealer(identity string) (secrets.Sealer, error) {
	if identity == "" {
		return secrets.NopSealer{}, nil
	}
	sealer, err := secrets.NewAgeSealer(identity)
	if err != nil {
		return nil, fmt.Errorf("AGE_IDENTITY: %w", err)
	}
	return sealer, nil
}
