package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// scopeFilter restricts a query to the caller's branch. Superadmins see everything.
func scopeFilter(scope domain.Scope, field string) bson.M {
	if scope.IsGlobal() {
		return bson.M{}
	}
	return bson.M{field: scope.BranchID}
}

// pageOptions converts 1-based page/limit into skip/limit options
func pageOptions(page, limit int64) *options.FindOptions {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return options.Find().SetSkip((page - 1) * limit).SetLimit(limit)
}

// nameSearch builds a case-insensitive, literal substring match
func nameSearch(term string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
}

// storeErr marks connectivity failures so callers can tell them apart from
// per-document failures.
func storeErr(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor) ([]*T, error) {
	defer cursor.Close(ctx)

	var out []*T
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		out = append(out, &item)
	}
	return out, cursor.Err()
}
