package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	reconcilerLockKey = "reconciler:lock"
	// ExpiringSoonChannel carries one JSON notice per expiring-soon subscription
	ExpiringSoonChannel = "subscriptions:expiring_soon"
)

// releaseScript deletes the lock only when the caller still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock implements domain.RunLock with SET NX PX
type RedisRunLock struct {
	client *redis.Client
	key    string
}

func NewRedisRunLock(client *redis.Client) *RedisRunLock {
	return &RedisRunLock{client: client, key: reconcilerLockKey}
}

func (l *RedisRunLock) TryAcquire(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire reconciler lock: %w", err)
	}
	return ok, nil
}

func (l *RedisRunLock) Release(ctx context.Context, owner string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release reconciler lock: %w", err)
	}
	return nil
}

// RedisExpiryPublisher implements domain.ExpiryNotifier over Redis pub/sub
type RedisExpiryPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisExpiryPublisher(client *redis.Client) *RedisExpiryPublisher {
	return &RedisExpiryPublisher{client: client, channel: ExpiringSoonChannel}
}

func (p *RedisExpiryPublisher) NotifyExpiringSoon(ctx context.Context, notices []domain.ExpiringSoonNotice) error {
	if len(notices) == 0 {
		return nil
	}

	pipe := p.client.Pipeline()
	for _, n := range notices {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to marshal notice: %w", err)
		}
		pipe.Publish(ctx, p.channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish expiring-soon notices: %w", err)
	}
	return nil
}

// RedisReportStore implements domain.ReportStore on top of the JSON cache
type RedisReportStore struct {
	cache *RedisCacheRepository
}

func NewRedisReportStore(cache *RedisCacheRepository) *RedisReportStore {
	return &RedisReportStore{cache: cache}
}

func (s *RedisReportStore) SaveLastReport(ctx context.Context, report *domain.ReconciliationReport) error {
	return s.cache.Set(ctx, lastReconciliationReportKey, report, 0)
}

func (s *RedisReportStore) GetLastReport(ctx context.Context) (*domain.ReconciliationReport, error) {
	var report domain.ReconciliationReport
	if err := s.cache.Get(ctx, lastReconciliationReportKey, &report); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &report, nil
}
