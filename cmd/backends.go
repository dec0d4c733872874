package main

import (
	"cloudnest/config"
	"cloudnest/ratelimit"
	"cloudnest/repository"
	"cloudnest/repository/memory"
	"cloudnest/repository/mongodb"
	"cloudnest/repository/postgres"
	"cloudnest/storage"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

func mongoOptions(cfg *config.Config) mongodb.Options {
	return mongodb.Options{
		URI:          cfg.MongoURI,
		Database:     cfg.DatabaseName,
		Transactions: cfg.MongoTransactionMode(),
	}
}

func postgresOptions(cfg *config.Config) postgres.Options {
	return postgres.Options{
		URL:             cfg.PostgresURL,
		MaxConns:        cfg.PostgresMaxConns,
		MaxConnIdleTime: 5 * time.Minute,
		RetryAttempts:   5,
		RetryInterval:   2 * time.Second,
	}
}

func openStore(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	switch cfg.DBDriver {
	case "mongo":
		return mongodb.Connect(connectCtx, mongoOptions(cfg))
	case "postgres":
		pool, err := postgres.Connect(connectCtx, postgresOptions(cfg))
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := postgres.Migrate(connectCtx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return postgres.NewStore(pool), nil
	case "memory":
		log.Warn().Msg("Using the in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

func closeStore(store *repository.Store) {
	ctx, cancel := config.CreateContext(5 * time.Second)
	defer cancel()

	if err := store.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to close database connection")
	}
}

func openObjectStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.StorageDriver {
	case "b2":
		return storage.NewB2(ctx, cfg.B2ApplicationKeyID, cfg.B2ApplicationKey, cfg.B2BucketName)
	case "s3":
		return storage.NewS3(ctx, storage.S3Config{
			Bucket:         cfg.S3Bucket,
			Region:         cfg.S3Region,
			AccessKeyID:    cfg.S3AccessKeyID,
			SecretKey:      cfg.S3SecretAccessKey,
			Endpoint:       cfg.S3Endpoint,
			ForcePathStyle: cfg.S3UsePathStyle,
		})
	case "memory":
		log.Warn().Msg("Using in-memory object storage, uploads are lost on restart")
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

// openLimiter returns the Redis limiter when REDIS_URL is set so limits are
// shared across instances, and a process-local one otherwise.
func openLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func(), error) {
	rlCfg := ratelimit.Config{Requests: cfg.RateLimitRequests, Window: cfg.RateLimitWindow}

	if cfg.RedisURL == "" {
		limiter, err := ratelimit.NewMemory(rlCfg)
		return limiter, func() {}, err
	}

	client, err := ratelimit.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	limiter, err := ratelimit.NewRedis(client, rlCfg)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	log.Info().Msg("Rate limiting backed by Redis")

	return limiter, func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}, nil
}
