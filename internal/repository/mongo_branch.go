package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBranchRepository implements domain.BranchRepository
type MongoBranchRepository struct {
	collection *mongo.Collection
}

func NewMongoBranchRepository(db *mongo.Database) *MongoBranchRepository {
	coll := db.Collection("branches")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location.city", Value: 1}}},
		{Keys: bson.D{{Key: "location.geolocation", Value: "2dsphere"}}},
	})

	return &MongoBranchRepository{collection: coll}
}

func (r *MongoBranchRepository) Create(ctx context.Context, branch *domain.Branch) error {
	now := time.Now().UTC()
	branch.CreatedAt = now
	branch.UpdatedAt = now
	branch.Bandwidth.Recompute()
	if branch.Status == "" {
		branch.Status = domain.BranchActive
	}

	objID := primitive.NewObjectID()
	branch.ID = objID.Hex()

	doc := bson.M{
		"_id":  objID,
		"name": branch.Name,
		"location": bson.M{
			"address":     branch.Location.Address,
			"city":        branch.Location.City,
			"coordinates": branch.Location.Coordinates,
			"geolocation": bson.M{"type": "Point", "coordinates": branch.Location.Coordinates},
		},
		"bandwidth":      branch.Bandwidth,
		"admin_id":       branch.AdminID,
		"customer_count": branch.CustomerCount,
		"status":         branch.Status,
		"created_at":     branch.CreatedAt,
		"updated_at":     branch.UpdatedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create branch: %w", err)
	}
	return nil
}

func (r *MongoBranchRepository) GetByID(ctx context.Context, id string) (*domain.Branch, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": objID})
}

func (r *MongoBranchRepository) GetByName(ctx context.Context, name string) (*domain.Branch, error) {
	return r.findOne(ctx, bson.M{"name": name})
}

func (r *MongoBranchRepository) List(ctx context.Context, f domain.BranchFilter) ([]*domain.Branch, int64, error) {
	filter := bson.M{}
	if f.City != "" {
		filter["location.city"] = f.City
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count branches: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, pageOptions(f.Page, f.Limit).SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list branches: %w", err)
	}
	branches, err := decodeAll[domain.Branch](ctx, cursor)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode branches: %w", err)
	}
	return branches, total, nil
}

func (r *MongoBranchRepository) Update(ctx context.Context, branch *domain.Branch) error {
	objID, err := primitive.ObjectIDFromHex(branch.ID)
	if err != nil {
		return domain.ErrNotFound
	}

	branch.UpdatedAt = time.Now().UTC()
	branch.Bandwidth.Recompute()
	update := bson.M{
		"$set": bson.M{
			"name":                 branch.Name,
			"location.address":     branch.Location.Address,
			"location.city":        branch.Location.City,
			"location.coordinates": branch.Location.Coordinates,
			"location.geolocation": bson.M{"type": "Point", "coordinates": branch.Location.Coordinates},
			"bandwidth":            branch.Bandwidth,
			"status":               branch.Status,
			"updated_at":           branch.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return fmt.Errorf("failed to update branch: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoBranchRepository) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return fmt.Errorf("failed to delete branch: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoBranchRepository) AssignAdmin(ctx context.Context, branchID, adminID string) error {
	return r.updateFields(ctx, branchID, bson.M{"$set": bson.M{"admin_id": adminID, "updated_at": time.Now().UTC()}})
}

func (r *MongoBranchRepository) IncrementCustomerCount(ctx context.Context, branchID string, delta int64) error {
	return r.updateFields(ctx, branchID, bson.M{"$inc": bson.M{"customer_count": delta}})
}

func (r *MongoBranchRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count branches: %w", err)
	}
	return n, nil
}

func (r *MongoBranchRepository) BandwidthTotals(ctx context.Context) (domain.BandwidthTotals, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":             nil,
			"total_allocated": bson.M{"$sum": "$bandwidth.allocated"},
			"total_used":      bson.M{"$sum": "$bandwidth.used"},
			"total_remaining": bson.M{"$sum": "$bandwidth.remaining"},
		}}},
	}

	var totals domain.BandwidthTotals
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return totals, fmt.Errorf("failed to aggregate bandwidth: %w", err)
	}
	defer cursor.Close(ctx)

	if cursor.Next(ctx) {
		var row struct {
			Allocated int64 `bson:"total_allocated"`
			Used      int64 `bson:"total_used"`
			Remaining int64 `bson:"total_remaining"`
		}
		if err := cursor.Decode(&row); err != nil {
			return totals, fmt.Errorf("failed to decode bandwidth totals: %w", err)
		}
		totals = domain.BandwidthTotals{TotalAllocated: row.Allocated, TotalUsed: row.Used, TotalRemaining: row.Remaining}
	}
	return totals, cursor.Err()
}

// Usage returns per-branch bandwidth usage, optionally for a single branch
func (r *MongoBranchRepository) Usage(ctx context.Context, branchID string) ([]domain.BranchUsage, error) {
	filter := bson.M{}
	if branchID != "" {
		objID, err := primitive.ObjectIDFromHex(branchID)
		if err != nil {
			return nil, domain.ErrNotFound
		}
		filter["_id"] = objID
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load branch usage: %w", err)
	}
	branches, err := decodeAll[domain.Branch](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode branches: %w", err)
	}

	usage := make([]domain.BranchUsage, 0, len(branches))
	for _, b := range branches {
		usage = append(usage, domain.BranchUsage{
			BranchID:      b.ID,
			Name:          b.Name,
			Bandwidth:     b.Bandwidth,
			CustomerCount: b.CustomerCount,
			UsagePercent:  b.Bandwidth.UsagePercent(),
		})
	}
	return usage, nil
}

func (r *MongoBranchRepository) findOne(ctx context.Context, filter bson.M) (*domain.Branch, error) {
	var branch domain.Branch
	if err := r.collection.FindOne(ctx, filter).Decode(&branch); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	return &branch, nil
}

func (r *MongoBranchRepository) updateFields(ctx context.Context, id string, update bson.M) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return fmt.Errorf("failed to update branch: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
