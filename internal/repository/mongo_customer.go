package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCustomerRepository implements domain.CustomerRepository
type MongoCustomerRepository struct {
	collection *mongo.Collection
}

func NewMongoCustomerRepository(db *mongo.Database) *MongoCustomerRepository {
	coll := db.Collection("customers")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "personal_info.email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "personal_info.cnic", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "personal_info.phone", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "branch_id", Value: 1}}},
	})

	return &MongoCustomerRepository{collection: coll}
}

func (r *MongoCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	now := time.Now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	customer.PersonalInfo.Email = strings.ToLower(strings.TrimSpace(customer.PersonalInfo.Email))

	objID := primitive.NewObjectID()
	customer.ID = objID.Hex()

	docs := customer.Documents
	if docs == nil {
		docs = []domain.Document{}
	}

	doc := bson.M{
		"_id":           objID,
		"branch_id":     customer.BranchID,
		"personal_info": customer.PersonalInfo,
		"password_hash": customer.PasswordHash,
		"documents":     docs,
		"created_at":    customer.CreatedAt,
		"updated_at":    customer.UpdatedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (r *MongoCustomerRepository) GetByID(ctx context.Context, scope domain.Scope, id string) (*domain.Customer, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	filter := scopeFilter(scope, "branch_id")
	filter["_id"] = objID

	var customer domain.Customer
	if err := r.collection.FindOne(ctx, filter).Decode(&customer); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &customer, nil
}

func (r *MongoCustomerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	filter := bson.M{"personal_info.email": strings.ToLower(strings.TrimSpace(email))}

	var customer domain.Customer
	if err := r.collection.FindOne(ctx, filter).Decode(&customer); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer by email: %w", err)
	}
	return &customer, nil
}

func (r *MongoCustomerRepository) List(ctx context.Context, scope domain.Scope, f domain.CustomerFilter) ([]*domain.Customer, int64, error) {
	filter := scopeFilter(scope, "branch_id")
	if f.Search != "" {
		filter["personal_info.name"] = nameSearch(f.Search)
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	opts := pageOptions(f.Page, f.Limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}
	customers, err := decodeAll[domain.Customer](ctx, cursor)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode customers: %w", err)
	}
	return customers, total, nil
}

func (r *MongoCustomerRepository) UpdatePersonalInfo(ctx context.Context, scope domain.Scope, id string, info domain.PersonalInfo) (*domain.Customer, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	info.Email = strings.ToLower(strings.TrimSpace(info.Email))
	filter := scopeFilter(scope, "branch_id")
	filter["_id"] = objID
	update := bson.M{"$set": bson.M{"personal_info": info, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var customer domain.Customer
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&customer); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}
	return &customer, nil
}

func (r *MongoCustomerRepository) AddDocuments(ctx context.Context, scope domain.Scope, id string, docs []domain.Document) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}

	filter := scopeFilter(scope, "branch_id")
	filter["_id"] = objID
	update := bson.M{
		"$push": bson.M{"documents": bson.M{"$each": docs}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoCustomerRepository) Count(ctx context.Context, scope domain.Scope) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, scopeFilter(scope, "branch_id"))
	if err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return n, nil
}
