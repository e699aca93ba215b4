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

// MongoUserRepository implements domain.UserRepository
type MongoUserRepository struct {
	collection *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	coll := db.Collection("users")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	})

	return &MongoUserRepository{
		collection: coll,
	}
}

func (r *MongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	objID := primitive.NewObjectID()
	user.ID = objID.Hex()

	permissions := user.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	doc := bson.M{
		"_id":           objID,
		"name":          user.Name,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"role":          user.Role,
		"branch_id":     user.BranchID,
		"permissions":   permissions,
		"is_active":     user.IsActive,
		"created_at":    user.CreatedAt,
		"updated_at":    user.UpdatedAt,
	}

	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": objID})
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *MongoUserRepository) SetBranch(ctx context.Context, userID, branchID string) error {
	return r.set(ctx, userID, bson.M{"branch_id": branchID, "updated_at": time.Now().UTC()})
}

func (r *MongoUserRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return r.set(ctx, userID, bson.M{"last_login": at})
}

func (r *MongoUserRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"role": role})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (r *MongoUserRepository) set(ctx context.Context, userID string, fields bson.M) error {
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return domain.ErrNotFound
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var raw bson.M
	if err := r.collection.FindOne(ctx, filter).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return mapBsonToUser(raw), nil
}

func mapBsonToUser(raw bson.M) *domain.User {
	user := &domain.User{}

	if oid, ok := raw["_id"].(primitive.ObjectID); ok {
		user.ID = oid.Hex()
	}
	if name, ok := raw["name"].(string); ok {
		user.Name = name
	}
	if email, ok := raw["email"].(string); ok {
		user.Email = email
	}
	if hash, ok := raw["password_hash"].(string); ok {
		user.PasswordHash = hash
	}
	if role, ok := raw["role"].(string); ok {
		user.Role = role
	}
	if branchID, ok := raw["branch_id"].(string); ok {
		user.BranchID = branchID
	}
	if perms, ok := raw["permissions"].(primitive.A); ok {
		for _, p := range perms {
			if s, ok := p.(string); ok {
				user.Permissions = append(user.Permissions, s)
			}
		}
	}
	if active, ok := raw["is_active"].(bool); ok {
		user.IsActive = active
	}
	if lastLogin, ok := raw["last_login"].(primitive.DateTime); ok {
		t := lastLogin.Time()
		user.LastLogin = &t
	}
	if created, ok := raw["created_at"].(primitive.DateTime); ok {
		user.CreatedAt = created.Time()
	}
	if updated, ok := raw["updated_at"].(primitive.DateTime); ok {
		user.UpdatedAt = updated.Time()
	}

	return user
}
