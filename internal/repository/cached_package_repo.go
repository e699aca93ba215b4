package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
)

const (
	packageByIDKeyPrefix = "package:id:"
	activePackagesKey    = "package:active"
	packageCacheTTL      = 10 * time.Minute
)

// CachedPackageRepository wraps MongoPackageRepository with Redis caching
type CachedPackageRepository struct {
	mongo *MongoPackageRepository
	cache *RedisCacheRepository
}

func NewCachedPackageRepository(mongo *MongoPackageRepository, cache *RedisCacheRepository) *CachedPackageRepository {
	return &CachedPackageRepository{
		mongo: mongo,
		cache: cache,
	}
}

func (r *CachedPackageRepository) GetByID(ctx context.Context, id string) (*domain.Package, error) {
	key := packageByIDKeyPrefix + id

	var pkg domain.Package
	if err := r.cache.Get(ctx, key, &pkg); err == nil {
		return &pkg, nil
	}

	result, err := r.mongo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Store in cache (ignore cache errors)
	_ = r.cache.Set(ctx, key, result, packageCacheTTL)

	return result, nil
}

func (r *CachedPackageRepository) GetActivePackages(ctx context.Context) ([]*domain.Package, error) {
	var pkgs []*domain.Package
	if err := r.cache.Get(ctx, activePackagesKey, &pkgs); err == nil {
		return pkgs, nil
	}

	result, err := r.mongo.GetActivePackages(ctx)
	if err != nil {
		return nil, err
	}

	_ = r.cache.Set(ctx, activePackagesKey, result, packageCacheTTL)
	return result, nil
}

func (r *CachedPackageRepository) GetByName(ctx context.Context, name string) (*domain.Package, error) {
	return r.mongo.GetByName(ctx, name)
}

func (r *CachedPackageRepository) Create(ctx context.Context, pkg *domain.Package) error {
	if err := r.mongo.Create(ctx, pkg); err != nil {
		return err
	}
	r.invalidate(ctx, pkg.ID)
	return nil
}

func (r *CachedPackageRepository) Update(ctx context.Context, pkg *domain.Package) error {
	if err := r.mongo.Update(ctx, pkg); err != nil {
		return err
	}
	r.invalidate(ctx, pkg.ID)
	return nil
}

func (r *CachedPackageRepository) invalidate(ctx context.Context, id string) {
	if err := r.cache.Delete(ctx, packageByIDKeyPrefix+id, activePackagesKey); err != nil {
		slog.WarnContext(ctx, "failed to invalidate package cache", "package_id", id, "error", err)
	}
}
