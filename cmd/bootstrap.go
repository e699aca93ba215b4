package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/netlinkisp/ispadmin/internal/config"
	"github.com/netlinkisp/ispadmin/internal/logger"
	"github.com/netlinkisp/ispadmin/internal/repository"
	"github.com/netlinkisp/ispadmin/internal/server"
	"github.com/netlinkisp/ispadmin/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

// runtime is the connected infrastructure shared by every command
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	mongo    *mongo.Client
	redis    *redis.Client
	otel     *telemetry.Provider
	deps     server.AppDependencies
	services *server.Services
}

// bootstrap loads config and connects MongoDB, Redis and (optionally) S3 and OTLP.
// withFiles controls whether the document store is connected.
func bootstrap(ctx context.Context, withFiles bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(log)

	rt := &runtime{cfg: cfg, logger: log}

	rt.otel, err = telemetry.Initialize(ctx, telemetry.ConfigFrom(cfg.OTEL), log)
	if err != nil {
		log.Warn("failed to initialize OpenTelemetry", "error", err)
	}

	metrics, err := telemetry.NewReconcilerMetrics()
	if err != nil {
		log.Warn("failed to create reconciler metrics", "error", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoOpts := options.Client().ApplyURI(cfg.MongoDB.URI)
	if cfg.OTEL.Enabled {
		mongoOpts.SetMonitor(otelmongo.NewMonitor())
	}
	rt.mongo, err = mongo.Connect(connectCtx, mongoOpts)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := rt.mongo.Ping(connectCtx, nil); err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Info("MongoDB connected", "database", cfg.MongoDB.Database)

	rt.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rt.redis.Ping(connectCtx).Err(); err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("Redis connected", "addr", cfg.Redis.Addr)

	rt.deps = server.AppDependencies{
		Config:      cfg,
		MongoDB:     rt.mongo.Database(cfg.MongoDB.Database),
		RedisClient: rt.redis,
		Logger:      log,
		Metrics:     metrics,
	}

	if withFiles && cfg.S3.Enabled {
		files, err := repository.NewS3DocumentRepository(connectCtx, cfg.S3)
		if err != nil {
			// Uploads fail with a config error until storage is reachable.
			log.Warn("document storage unavailable", "endpoint", cfg.S3.Endpoint, "error", err)
		} else {
			rt.deps.Files = files
			log.Info("document storage connected", "bucket", cfg.S3.Bucket)
		}
	}

	rt.services, err = server.NewServices(rt.deps)
	if err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.logger.Warn("error closing Redis", "error", err)
		}
	}
	if rt.mongo != nil {
		if err := rt.mongo.Disconnect(ctx); err != nil {
			rt.logger.Warn("error disconnecting from MongoDB", "error", err)
		}
	}
	if rt.otel != nil {
		if err := rt.otel.Shutdown(ctx); err != nil {
			rt.logger.Warn("error shutting down OpenTelemetry", "error", err)
		}
	}
}
