package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPackageRepository implements domain.PackageRepository.
// Packages use readable string IDs such as "pkg_home_20".
type MongoPackageRepository struct {
	collection *mongo.Collection
}

func NewMongoPackageRepository(db *mongo.Database) *MongoPackageRepository {
	coll := db.Collection("packages")
	return &MongoPackageRepository{
		collection: coll,
	}
}

func (r *MongoPackageRepository) Create(ctx context.Context, pkg *domain.Package) error {
	now := time.Now().UTC()
	pkg.CreatedAt = now
	pkg.UpdatedAt = now

	doc := bson.M{
		"_id":             pkg.ID,
		"name":            pkg.Name,
		"speed_mbps":      pkg.SpeedMbps,
		"data_limit_gb":   pkg.DataLimitGB,
		"duration_months": pkg.DurationMonths,
		"price":           pkg.Price,
		"description":     pkg.Description,
		"is_active":       pkg.IsActive,
		"created_at":      pkg.CreatedAt,
		"updated_at":      pkg.UpdatedAt,
	}

	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to create package: %w", err)
	}
	return nil
}

func (r *MongoPackageRepository) GetByID(ctx context.Context, id string) (*domain.Package, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoPackageRepository) GetByName(ctx context.Context, name string) (*domain.Package, error) {
	return r.findOne(ctx, bson.M{"name": name})
}

func (r *MongoPackageRepository) GetActivePackages(ctx context.Context) ([]*domain.Package, error) {
	opts := options.Find().SetSort(bson.D{{Key: "price", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"is_active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list active packages: %w", err)
	}
	defer cursor.Close(ctx)

	var packages []*domain.Package
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		packages = append(packages, mapBsonToPackage(raw))
	}
	return packages, cursor.Err()
}

func (r *MongoPackageRepository) Update(ctx context.Context, pkg *domain.Package) error {
	pkg.UpdatedAt = time.Now().UTC()

	update := bson.M{
		"$set": bson.M{
			"name":            pkg.Name,
			"speed_mbps":      pkg.SpeedMbps,
			"data_limit_gb":   pkg.DataLimitGB,
			"duration_months": pkg.DurationMonths,
			"price":           pkg.Price,
			"description":     pkg.Description,
			"is_active":       pkg.IsActive,
			"updated_at":      pkg.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": pkg.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update package: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DefaultPackages is the catalogue created by the seed command
var DefaultPackages = []domain.Package{
	{ID: "pkg_basic_10", Name: "Basic 10", SpeedMbps: 10, DataLimitGB: 200, DurationMonths: 1, Price: 150000, Description: "Entry level home connection", IsActive: true},
	{ID: "pkg_home_20", Name: "Home 20", SpeedMbps: 20, DataLimitGB: 500, DurationMonths: 1, Price: 250000, Description: "Family home connection", IsActive: true},
	{ID: "pkg_pro_50", Name: "Pro 50", SpeedMbps: 50, DataLimitGB: 0, DurationMonths: 3, Price: 1200000, Description: "Unlimited quarterly plan", IsActive: true},
	{ID: "pkg_business_100", Name: "Business 100", SpeedMbps: 100, DataLimitGB: 0, DurationMonths: 12, Price: 9000000, Description: "Annual business fibre", IsActive: true},
}

// SeedDefaultPackages creates DefaultPackages that do not exist yet.
// Idempotency: checks by _id so re-running never duplicates.
func (r *MongoPackageRepository) SeedDefaultPackages(ctx context.Context, logger *slog.Logger) (int, error) {
	created := 0
	for _, p := range DefaultPackages {
		_, err := r.GetByID(ctx, p.ID)
		if err == nil {
			logger.Debug("package already exists, skipping", "package_id", p.ID)
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return created, fmt.Errorf("failed to check package existence: %w", err)
		}

		pkg := p
		if err := r.Create(ctx, &pkg); err != nil {
			return created, fmt.Errorf("failed to seed package %s: %w", p.ID, err)
		}
		created++
		logger.Info("seeded package", "package_id", pkg.ID, "name", pkg.Name, "price", pkg.Price, "duration_months", pkg.DurationMonths)
	}
	return created, nil
}

func (r *MongoPackageRepository) findOne(ctx context.Context, filter bson.M) (*domain.Package, error) {
	var raw bson.M
	if err := r.collection.FindOne(ctx, filter).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return mapBsonToPackage(raw), nil
}

func mapBsonToPackage(raw bson.M) *domain.Package {
	pkg := &domain.Package{}

	if id, ok := raw["_id"].(string); ok {
		pkg.ID = id
	}
	if name, ok := raw["name"].(string); ok {
		pkg.Name = name
	}
	if desc, ok := raw["description"].(string); ok {
		pkg.Description = desc
	}
	pkg.SpeedMbps = int(asInt64(raw["speed_mbps"]))
	pkg.DataLimitGB = int(asInt64(raw["data_limit_gb"]))
	pkg.DurationMonths = int(asInt64(raw["duration_months"]))
	pkg.Price = asInt64(raw["price"])
	if isActive, ok := raw["is_active"].(bool); ok {
		pkg.IsActive = isActive
	}
	if created, ok := raw["created_at"].(interface{ Time() time.Time }); ok {
		pkg.CreatedAt = created.Time()
	}
	if updated, ok := raw["updated_at"].(interface{ Time() time.Time }); ok {
		pkg.UpdatedAt = updated.Time()
	}

	return pkg
}

// asInt64 reads a numeric field that may have been stored as int32, int64 or double
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
