// Command eligibility runs the eligibility API, the bulk job dispatcher, and the stale item reaper.
// SERVICES selects which of them run in this process.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/target/eligibility-api/config"
	"github.com/target/eligibility-api/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	cfg, cfgErr := bootstrap.LoadConfig()
	logger := bootstrap.InitLogger(cfg.IsDev)

	err := cfgErr
	if err == nil {
		err = run(ctx, logger, &cfg)
	}
	if err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // non-zero exit on fatal startup or runtime errors
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) (err error) {
	logger.InfoContext(ctx, "starting eligibility service",
		"enabled_services", bootstrap.GetEnabledServices(cfg),
		"mock_mode", cfg.Eligibility.MockMode,
		"rate_limit_backend", cfg.HTTP.RateLimit.Backend,
		"redis_enabled", cfg.Redis.Enabled,
		"db", fmt.Sprintf("%s:%d/%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Name),
	)

	if err = errors.Join(bootstrap.ValidateServiceConfig(cfg), bootstrap.ValidateRuntimeConfig(cfg)); err != nil {
		return err
	}

	in, err := connect(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, in.Close()) }()

	if !cfg.Postgres.RunMigrationsOnStart {
		logger.InfoContext(ctx, "startup migrations disabled")
	} else if err = bootstrap.RunMigrations(ctx, in.db, logger); err != nil {
		return err
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      cfg,
		DB:          in.db,
		RedisClient: in.redis,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := services.Observability.Close(); cerr != nil {
			logger.WarnContext(ctx, "close metrics sink failed", "error", cerr)
		}
	}()

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:      cfg,
		Services:    services,
		DB:          in.db,
		RedisClient: in.redis,
		Logger:      logger,
	})
}

// infra is the set of long-lived connections shared by every enabled service.
type infra struct {
	db    *sql.DB
	redis redis.UniversalClient // nil when REDIS_ENABLED is false
}

func connect(cfg *config.AppConfig, logger *slog.Logger) (*infra, error) {
	dbCfg := bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	db, err := bootstrap.ConnectDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	client, err := bootstrap.ConnectRedis(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", errors.Join(err, db.Close()))
	}
	return &infra{db: db, redis: client}, nil
}

func (in *infra) Close() error {
	var errs []error
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := in.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
