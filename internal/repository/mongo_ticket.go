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

// MongoTicketRepository implements domain.TicketRepository
type MongoTicketRepository struct {
	collection *mongo.Collection
}

func NewMongoTicketRepository(db *mongo.Database) *MongoTicketRepository {
	coll := db.Collection("tickets")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ticket_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "branch_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_by", Value: 1}}},
	})

	return &MongoTicketRepository{collection: coll}
}

func (r *MongoTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	objID := primitive.NewObjectID()
	ticket.ID = objID.Hex()

	history := ticket.StatusHistory
	if history == nil {
		history = []domain.StatusChange{}
	}

	doc := bson.M{
		"_id":            objID,
		"ticket_number":  ticket.TicketNumber,
		"title":          ticket.Title,
		"description":    ticket.Description,
		"priority":       ticket.Priority,
		"category":       ticket.Category,
		"status":         ticket.Status,
		"created_by":     ticket.CreatedBy,
		"branch_id":      ticket.BranchID,
		"assigned_to":    ticket.AssignedTo,
		"customer_id":    ticket.CustomerID,
		"status_history": history,
		"created_at":     ticket.CreatedAt,
		"updated_at":     ticket.UpdatedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

func (r *MongoTicketRepository) GetByID(ctx context.Context, scope domain.Scope, id string) (*domain.Ticket, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	filter := scopeFilter(scope, "branch_id")
	filter["_id"] = objID

	var ticket domain.Ticket
	if err := r.collection.FindOne(ctx, filter).Decode(&ticket); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &ticket, nil
}

func (r *MongoTicketRepository) List(ctx context.Context, scope domain.Scope, f domain.TicketFilter) ([]*domain.Ticket, int64, error) {
	filter := scopeFilter(scope, "branch_id")
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Priority != "" {
		filter["priority"] = f.Priority
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	opts := pageOptions(f.Page, f.Limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", err)
	}
	tickets, err := decodeAll[domain.Ticket](ctx, cursor)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode tickets: %w", err)
	}
	return tickets, total, nil
}

func (r *MongoTicketRepository) AppendStatus(ctx context.Context, id string, change domain.StatusChange, assignedTo string, resolvedAt, closedAt *time.Time) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}

	set := bson.M{"status": change.Status, "updated_at": change.UpdatedAt}
	if assignedTo != "" {
		set["assigned_to"] = assignedTo
	}
	if resolvedAt != nil {
		set["resolved_at"] = *resolvedAt
	}
	if closedAt != nil {
		set["closed_at"] = *closedAt
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"status_history": change},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return fmt.Errorf("failed to update ticket status: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoTicketRepository) Stats(ctx context.Context, scope domain.Scope) (*domain.TicketStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: scopeFilter(scope, "branch_id")}},
		{{Key: "$facet", Value: bson.M{
			"by_status":   bson.A{bson.M{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
			"by_priority": bson.A{bson.M{"$group": bson.M{"_id": "$priority", "count": bson.M{"$sum": 1}}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ticket stats: %w", err)
	}
	defer cursor.Close(ctx)

	type bucket struct {
		Key   string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	var facets struct {
		ByStatus   []bucket `bson:"by_status"`
		ByPriority []bucket `bson:"by_priority"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&facets); err != nil {
			return nil, fmt.Errorf("failed to decode ticket stats: %w", err)
		}
	}

	stats := &domain.TicketStats{
		ByStatus:   make(map[domain.TicketStatus]int64),
		ByPriority: make(map[string]int64),
	}
	for _, b := range facets.ByStatus {
		stats.ByStatus[domain.TicketStatus(b.Key)] = b.Count
		stats.Total += b.Count
	}
	for _, b := range facets.ByPriority {
		stats.ByPriority[b.Key] = b.Count
	}
	return stats, cursor.Err()
}
