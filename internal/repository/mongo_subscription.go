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

// MongoSubscriptionRepository implements domain.SubscriptionRepository
type MongoSubscriptionRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoSubscriptionRepository creates a new subscription repository
func NewMongoSubscriptionRepository(db *mongo.Database) *MongoSubscriptionRepository {
	coll := db.Collection("customer_subscriptions")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Both classification queries filter on status and an end_date range
	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_date", Value: 1}}},
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "start_date", Value: -1}}},
		{Keys: bson.D{{Key: "branch_id", Value: 1}}},
	})

	return &MongoSubscriptionRepository{
		collection: coll,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *MongoSubscriptionRepository) Create(ctx context.Context, subscription *domain.Subscription) error {
	now := r.now()
	subscription.CreatedAt = now
	subscription.UpdatedAt = now
	if subscription.StartDate.IsZero() {
		subscription.StartDate = now
	}
	if subscription.Status == "" {
		subscription.Status = domain.StatusPending
	}
	if err := subscription.Validate(); err != nil {
		return err
	}

	objID := primitive.NewObjectID()
	subscription.ID = objID.Hex()

	history := subscription.RenewalHistory
	if history == nil {
		history = []domain.RenewalRecord{}
	}

	doc := bson.M{
		"_id":             objID,
		"customer_id":     subscription.CustomerID,
		"package_id":      subscription.PackageID,
		"branch_id":       subscription.BranchID,
		"start_date":      subscription.StartDate,
		"end_date":        subscription.EndDate,
		"status":          subscription.Status,
		"auto_renewal":    subscription.AutoRenewal,
		"renewal_history": history,
		"created_at":      subscription.CreatedAt,
		"updated_at":      subscription.UpdatedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return storeErr("failed to create subscription", err)
	}
	return nil
}

func (r *MongoSubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	var sub domain.Subscription
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr("failed to get subscription", err)
	}
	return &sub, nil
}

func (r *MongoSubscriptionRepository) GetByCustomerID(ctx context.Context, customerID string) ([]*domain.Subscription, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: -1}})
	return r.find(ctx, "failed to list subscriptions by customer", bson.M{"customer_id": customerID}, opts)
}

// GetCurrentByCustomerID returns the most recently started subscription that is not expired
func (r *MongoSubscriptionRepository) GetCurrentByCustomerID(ctx context.Context, customerID string) (*domain.Subscription, error) {
	filter := bson.M{
		"customer_id": customerID,
		"status":      bson.M{"$ne": domain.StatusExpired},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "start_date", Value: -1}})

	var sub domain.Subscription
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr("failed to get current subscription", err)
	}
	return &sub, nil
}

func (r *MongoSubscriptionRepository) FindExpiringSoon(ctx context.Context, start, end time.Time) ([]*domain.Subscription, error) {
	filter := bson.M{
		"status":   domain.StatusActive,
		"end_date": bson.M{"$gte": start, "$lte": end},
	}
	return r.find(ctx, "failed to find expiring subscriptions", filter)
}

func (r *MongoSubscriptionRepository) FindExpiringToday(ctx context.Context, start, end time.Time) ([]*domain.Subscription, error) {
	filter := bson.M{
		"status":   bson.M{"$in": domain.ExpirableStatuses},
		"end_date": bson.M{"$gte": start, "$lte": end},
	}
	return r.find(ctx, "failed to find subscriptions ending today", filter)
}

func (r *MongoSubscriptionRepository) FindOverdue(ctx context.Context, before time.Time) ([]*domain.Subscription, error) {
	filter := bson.M{
		"status":   bson.M{"$in": domain.ExpirableStatuses},
		"end_date": bson.M{"$lt": before},
	}
	return r.find(ctx, "failed to find overdue subscriptions", filter)
}

// MarkExpired sets status to expired. A guarded write only matches active or
// pending documents, so a concurrent suspend is never overwritten.
func (r *MongoSubscriptionRepository) MarkExpired(ctx context.Context, id string, guarded bool) (domain.WriteResult, error) {
	if !guarded {
		return r.setStatus(ctx, id, bson.M{"$ne": domain.StatusExpired}, domain.StatusExpired)
	}
	return r.SetStatus(ctx, id, domain.ExpirableStatuses, domain.StatusExpired)
}

func (r *MongoSubscriptionRepository) SetStatus(ctx context.Context, id string, from []domain.SubscriptionStatus, to domain.SubscriptionStatus) (domain.WriteResult, error) {
	return r.setStatus(ctx, id, bson.M{"$in": from}, to)
}

func (r *MongoSubscriptionRepository) setStatus(ctx context.Context, id string, statusCond bson.M, to domain.SubscriptionStatus) (domain.WriteResult, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.WriteNotFound, nil
	}

	filter := bson.M{"_id": objID, "status": statusCond}
	update := bson.M{"$set": bson.M{"status": to, "updated_at": r.now()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, storeErr("failed to update subscription status", err)
	}
	if result.MatchedCount == 1 {
		return domain.WriteApplied, nil
	}

	current, err := r.currentStatus(ctx, objID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.WriteNotFound, nil
		}
		return 0, err
	}
	if current == to {
		return domain.WriteNoop, nil
	}
	return domain.WriteConflict, nil
}

// Renew extends the end date only while it still equals the value the
// caller based its calculation on.
func (r *MongoSubscriptionRepository) Renew(ctx context.Context, id string, record domain.RenewalRecord) (domain.WriteResult, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.WriteNotFound, nil
	}

	filter := bson.M{"_id": objID, "end_date": record.PreviousEndDate}
	update := bson.M{
		"$set": bson.M{
			"end_date":   record.NewEndDate,
			"status":     domain.StatusActive,
			"updated_at": r.now(),
		},
		"$push": bson.M{"renewal_history": record},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, storeErr("failed to renew subscription", err)
	}
	if result.MatchedCount == 1 {
		return domain.WriteApplied, nil
	}

	if _, err := r.currentStatus(ctx, objID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.WriteNotFound, nil
		}
		return 0, err
	}
	return domain.WriteConflict, nil
}

func (r *MongoSubscriptionRepository) CountByStatus(ctx context.Context, scope domain.Scope) (map[domain.SubscriptionStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: scopeFilter(scope, "branch_id")}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeErr("failed to count subscriptions", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[domain.SubscriptionStatus]int64, len(domain.AllSubscriptionStatuses))
	for _, s := range domain.AllSubscriptionStatuses {
		counts[s] = 0
	}
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode status count: %w", err)
		}
		counts[domain.SubscriptionStatus(row.Status)] = row.Count
	}
	return counts, cursor.Err()
}

func (r *MongoSubscriptionRepository) currentStatus(ctx context.Context, objID primitive.ObjectID) (domain.SubscriptionStatus, error) {
	opts := options.FindOne().SetProjection(bson.M{"status": 1})

	var raw bson.M
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}, opts).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", domain.ErrNotFound
		}
		return "", storeErr("failed to read subscription status", err)
	}
	status, _ := raw["status"].(string)
	return domain.SubscriptionStatus(status), nil
}

func (r *MongoSubscriptionRepository) find(ctx context.Context, op string, filter bson.M, opts ...*options.FindOptions) ([]*domain.Subscription, error) {
	cursor, err := r.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	subs, err := decodeAll[domain.Subscription](ctx, cursor)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return subs, nil
}
