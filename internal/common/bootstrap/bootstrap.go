// Package bootstrap connects the backing services shared by the API server
// and the worker manager.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"visa-portal/internal/common/camunda"
	"visa-portal/internal/common/config"
	"visa-portal/internal/common/database"
	"visa-portal/internal/common/errors"
)

// RetryWithBackoff attempts to execute a function with exponential backoff
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// Backends holds the connected clients. Elasticsearch and Zeebe are nil
// when disabled in config.
type Backends struct {
	Postgres      *database.PostgresClient
	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient
	Zeebe         *camunda.Client
}

// Connect dials every enabled backend, retrying while dependencies that
// start alongside the service come up.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Backends, error) {
	b := &Backends{}

	var err error
	if b.Postgres, err = connectPostgres(ctx, cfg.Database.Postgres, 15, 2*time.Second, log); err != nil {
		return nil, err
	}
	log.Info("PostgreSQL connected successfully")

	err = RetryWithBackoff(func() error {
		var err error
		if b.Redis, err = database.NewRedis(cfg.Database.Redis); err != nil {
			return err
		}
		return b.Redis.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		b.Close()
		return nil, err
	}
	log.Info("Redis connected successfully")

	if cfg.Database.Elasticsearch.Enabled {
		err = RetryWithBackoff(func() error {
			var err error
			if b.Elasticsearch, err = database.NewElasticsearch(cfg.Database.Elasticsearch); err != nil {
				return err
			}
			return b.Elasticsearch.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			b.Close()
			return nil, err
		}
		log.Info("Elasticsearch connected successfully")
	}

	if cfg.Camunda.Enabled {
		err = RetryWithBackoff(func() error {
			var err error
			b.Zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			b.Close()
			return nil, err
		}
		log.Info("Zeebe client connected successfully")
	}

	return b, nil
}

func connectPostgres(ctx context.Context, cfg config.PostgresConfig, attempts int, delay time.Duration, log *zap.Logger) (*database.PostgresClient, error) {
	var pg *database.PostgresClient
	err := RetryWithBackoff(func() error {
		client, err := database.NewPostgres(cfg)
		if err != nil {
			return err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return err
		}
		pg = client
		return nil
	}, attempts, delay, log, "PostgreSQL connection")
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	return pg, nil
}

// Checkers lists the connected backends for the readiness endpoint.
func (b *Backends) Checkers() []database.Checker {
	checks := []database.Checker{b.Postgres, b.Redis}
	if b.Elasticsearch != nil {
		checks = append(checks, b.Elasticsearch)
	}
	if b.Zeebe != nil {
		checks = append(checks, b.Zeebe)
	}
	return checks
}

func (b *Backends) Close() {
	if b.Zeebe != nil {
		_ = b.Zeebe.Close()
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.Postgres != nil {
		_ = b.Postgres.Close()
	}
}
