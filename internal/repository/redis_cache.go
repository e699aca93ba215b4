package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Analytics caching prefixes, suffixed with the caller's scope
	AnalyticsKeyPrefix          = "analytics:"
	subscriptionStatsKeyPrefix  = AnalyticsKeyPrefix + "subscriptions:"
	superadminDashboardKey      = AnalyticsKeyPrefix + "dashboard:superadmin"
	branchDashboardKeyPrefix    = AnalyticsKeyPrefix + "dashboard:branch:"
	ticketStatsKeyPrefix        = AnalyticsKeyPrefix + "tickets:"
	lastReconciliationReportKey = "reconciler:last_report"
)

var ErrCacheMiss = errors.New("cache miss")

// RedisCacheRepository is a JSON cache on top of Redis with OTel tracing
type RedisCacheRepository struct {
	client *redis.Client
}

func NewRedisCacheRepository(client *redis.Client) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
	}
}

// Get retrieves a value from cache by key
func (r *RedisCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Get",
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.String("cache.result", "miss"))
			return ErrCacheMiss
		}
		span.RecordError(err)
		return fmt.Errorf("redis get error: %w", err)
	}

	span.SetAttributes(attribute.String("cache.result", "hit"))
	if err := json.Unmarshal(data, dest); err != nil {
		span.RecordError(err)
		return fmt.Errorf("unmarshal error: %w", err)
	}

	return nil
}

// Set stores a value with TTL. A zero TTL keeps the key until deleted.
func (r *RedisCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())),
		),
	)
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal error: %w", err)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

// Delete removes keys from cache
func (r *RedisCacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Delete",
		trace.WithAttributes(attribute.Int("cache.key_count", len(keys))),
	)
	defer span.End()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis delete error: %w", err)
	}

	return nil
}

// DeleteByPattern removes keys matching a pattern using SCAN
func (r *RedisCacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.DeleteByPattern",
		trace.WithAttributes(attribute.String("cache.pattern", pattern)),
	)
	defer span.End()

	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis scan error: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	span.SetAttributes(attribute.Int("cache.matched_keys", len(keys)))
	return r.client.Del(ctx, keys...).Err()
}

// SubscriptionStatsKey is the cache key for subscription counts visible to a branch ("" for all)
func SubscriptionStatsKey(branchID string) string {
	if branchID == "" {
		return subscriptionStatsKeyPrefix + "all"
	}
	return subscriptionStatsKeyPrefix + branchID
}

// DashboardKey is the cache key for a dashboard ("" for the superadmin view)
func DashboardKey(branchID string) string {
	if branchID == "" {
		return superadminDashboardKey
	}
	return branchDashboardKeyPrefix + branchID
}

// TicketStatsKey is the cache key for ticket statistics
func TicketStatsKey(branchID string) string {
	if branchID == "" {
		return ticketStatsKeyPrefix + "all"
	}
	return ticketStatsKeyPrefix + branchID
}

// InvalidateSubscriptionStats drops cached subscription counts and the
// dashboards that embed them, for every scope
func (r *RedisCacheRepository) InvalidateSubscriptionStats(ctx context.Context) error {
	if err := r.DeleteByPattern(ctx, subscriptionStatsKeyPrefix+"*"); err != nil {
		return err
	}
	return r.DeleteByPattern(ctx, AnalyticsKeyPrefix+"dashboard:*")
}

// InvalidateAnalytics drops every cached analytics entry
func (r *RedisCacheRepository) InvalidateAnalytics(ctx context.Context) error {
	return r.DeleteByPattern(ctx, AnalyticsKeyPrefix+"*")
}
