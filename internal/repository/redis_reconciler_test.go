package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRunLock(t *testing.T) {
	mr, client := setupRedis(t)
	lock := NewRedisRunLock(client)
	ctx := context.Background()

	ok, err := lock.TryAcquire(ctx, "run-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.TryAcquire(ctx, "run-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be rejected")

	// Releasing with the wrong owner leaves the lock in place
	require.NoError(t, lock.Release(ctx, "run-b"))
	assert.True(t, mr.Exists(reconcilerLockKey))

	require.NoError(t, lock.Release(ctx, "run-a"))
	assert.False(t, mr.Exists(reconcilerLockKey))

	ok, err = lock.TryAcquire(ctx, "run-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRunLock_ExpiresAfterTTL(t *testing.T) {
	mr, client := setupRedis(t)
	lock := NewRedisRunLock(client)
	ctx := context.Background()

	ok, err := lock.TryAcquire(ctx, "crashed-run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = lock.TryAcquire(ctx, "next-run", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisExpiryPublisher(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, ExpiringSoonChannel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	notices := []domain.ExpiringSoonNotice{
		{RunID: "r1", SubscriptionID: "s1", CustomerID: "c1"},
		{RunID: "r1", SubscriptionID: "s2", CustomerID: "c2"},
	}
	require.NoError(t, NewRedisExpiryPublisher(client).NotifyExpiringSoon(ctx, notices))

	ch := sub.Channel()
	var got []string
	for range notices {
		select {
		case msg := <-ch:
			var n domain.ExpiringSoonNotice
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
			got = append(got, n.SubscriptionID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for notice")
		}
	}
	assert.ElementsMatch(t, []string{"s1", "s2"}, got)
}

func TestRedisExpiryPublisher_EmptyIsNoop(t *testing.T) {
	_, client := setupRedis(t)
	assert.NoError(t, NewRedisExpiryPublisher(client).NotifyExpiringSoon(context.Background(), nil))
}

func TestRedisReportStore(t *testing.T) {
	_, client := setupRedis(t)
	store := NewRedisReportStore(NewRedisCacheRepository(client))
	ctx := context.Background()

	_, err := store.GetLastReport(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	report := &domain.ReconciliationReport{
		RunID:             "01J0000000000000000000000",
		ExpiredTodayCount: 2,
		ExpiredTodayIDs:   []string{"a", "b"},
		Complete:          true,
	}
	require.NoError(t, store.SaveLastReport(ctx, report))

	got, err := store.GetLastReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, got.RunID)
	assert.Equal(t, []string{"a", "b"}, got.ExpiredTodayIDs)
	assert.True(t, got.Complete)
}

func TestRedisCache_InvalidateAnalytics(t *testing.T) {
	mr, client := setupRedis(t)
	cache := NewRedisCacheRepository(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, SubscriptionStatsKey(""), map[string]int{"active": 1}, time.Minute))
	require.NoError(t, cache.Set(ctx, SubscriptionStatsKey("branch1"), map[string]int{"active": 1}, time.Minute))
	require.NoError(t, cache.Set(ctx, DashboardKey("branch1"), map[string]int{"customers": 3}, time.Minute))
	require.NoError(t, cache.Set(ctx, "package:active", []string{"p"}, time.Minute))

	require.NoError(t, cache.Set(ctx, TicketStatsKey("branch1"), map[string]int{"open": 2}, time.Minute))

	require.NoError(t, cache.InvalidateSubscriptionStats(ctx))
	assert.False(t, mr.Exists(SubscriptionStatsKey("")))
	assert.False(t, mr.Exists(SubscriptionStatsKey("branch1")))
	assert.False(t, mr.Exists(DashboardKey("branch1")))
	assert.True(t, mr.Exists(TicketStatsKey("branch1")))

	require.NoError(t, cache.InvalidateAnalytics(ctx))
	assert.False(t, mr.Exists(TicketStatsKey("branch1")))
	assert.True(t, mr.Exists("package:active"))

	var out map[string]int
	assert.ErrorIs(t, cache.Get(ctx, TicketStatsKey("branch1"), &out), ErrCacheMiss)
}
