package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/repository"
)

const analyticsCacheTTL = 5 * time.Minute

// AnalyticsCache is the JSON cache used for aggregated counts.
// RedisCacheRepository implements it.
type AnalyticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidateSubscriptionStats(ctx context.Context) error
	InvalidateAnalytics(ctx context.Context) error
}

// cached returns the value under key, computing and storing it on a miss.
// Cache failures never fail the request.
func cached[T any](ctx context.Context, cache AnalyticsCache, key string, compute func(context.Context) (T, error)) (T, error) {
	var out T
	if cache != nil {
		if err := cache.Get(ctx, key, &out); err == nil {
			return out, nil
		} else if !errors.Is(err, repository.ErrCacheMiss) {
			slog.Warn("analytics cache read failed", "key", key, "error", err)
		}
	}

	out, err := compute(ctx)
	if err != nil {
		return out, err
	}

	if cache != nil {
		if err := cache.Set(ctx, key, out, analyticsCacheTTL); err != nil {
			slog.Warn("analytics cache write failed", "key", key, "error", err)
		}
	}
	return out, nil
}

func invalidateAnalytics(ctx context.Context, cache AnalyticsCache) {
	if cache == nil {
		return
	}
	if err := cache.InvalidateAnalytics(ctx); err != nil {
		slog.Warn("failed to invalidate analytics cache", "error", err)
	}
}

// scopeKey is the cache discriminator for a scope: "" for global
func scopeKey(scope domain.Scope) string {
	if scope.IsGlobal() {
		return ""
	}
	if scope.BranchID == "" {
		return "unassigned"
	}
	return scope.BranchID
}
