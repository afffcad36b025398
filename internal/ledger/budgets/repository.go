package budgets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
)

const collection = "budgets"

// UpdateSet carries the partially updatable budget fields. A new amount
// recomputes remaining against the accrued spend.
type UpdateSet struct {
	Name        *string
	AmountMinor *int64
	EndDate     *time.Time
	IsActive    *bool
}

// Repository is the persistence port for budgets.
type Repository interface {
	Insert(ctx context.Context, budget Budget) error
	GetByID(ctx context.Context, id string) (Budget, error)
	ListByAccount(ctx context.Context, accountID string) ([]Budget, error)
	// ListActiveForAccountAt returns the active budgets whose window
	// contains the given instant.
	ListActiveForAccountAt(ctx context.Context, accountID string, at time.Time) ([]Budget, error)
	// ApplySpend accrues amountMinor onto spent and off remaining in one
	// atomic update, returning the budget as it stands afterwards.
	ApplySpend(ctx context.Context, id string, amountMinor int64, at time.Time) (Budget, error)
	Update(ctx context.Context, id string, set UpdateSet, at time.Time) (Budget, error)
}

type repository struct {
	col *mongo.Collection
}

// NewRepository builds the Mongo-backed repository.
func NewRepository(db *mongo.Database) Repository {
	return &repository{col: db.Collection(collection)}
}

// EnsureIndexes creates the lookup indexes.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(collection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "is_active", Value: 1}}},
		{Keys: bson.D{{Key: "start_date", Value: 1}, {Key: "end_date", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("budgets: ensure indexes: %w", err)
	}
	return nil
}

func (r *repository) Insert(ctx context.Context, budget Budget) error {
	if _, err := r.col.InsertOne(ctx, budget); err != nil {
		return fmt.Errorf("budgets: insert: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (Budget, error) {
	var budget Budget
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&budget); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Budget{}, shared.ErrNotFound
		}
		return Budget{}, fmt.Errorf("budgets: get %s: %w", id, err)
	}
	return budget, nil
}

func (r *repository) ListByAccount(ctx context.Context, accountID string) ([]Budget, error) {
	return r.list(ctx, bson.M{"account_id": accountID})
}

func (r *repository) ListActiveForAccountAt(ctx context.Context, accountID string, at time.Time) ([]Budget, error) {
	return r.list(ctx, bson.M{
		"account_id": accountID,
		"is_active":  true,
		"start_date": bson.M{"$lte": at},
		"end_date":   bson.M{"$gte": at},
	})
}

func (r *repository) list(ctx context.Context, filter bson.M) ([]Budget, error) {
	cursor, err := r.col.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("budgets: list: %w", err)
	}
	var out []Budget
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("budgets: decode list: %w", err)
	}
	return out, nil
}

// ApplySpend uses a single $inc on both spent and remaining so concurrent
// postings against the same budget window cannot lose updates and the
// remaining = amount - spent invariant holds at every point.
func (r *repository) ApplySpend(ctx context.Context, id string, amountMinor int64, at time.Time) (Budget, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{
		"$inc": bson.M{
			"spent_minor":     amountMinor,
			"remaining_minor": -amountMinor,
		},
		"$set": bson.M{"updated_at": at},
	})
}

func (r *repository) Update(ctx context.Context, id string, set UpdateSet, at time.Time) (Budget, error) {
	fields := bson.M{"updated_at": at}
	if set.Name != nil {
		fields["name"] = *set.Name
	}
	if set.EndDate != nil {
		fields["end_date"] = *set.EndDate
	}
	if set.IsActive != nil {
		fields["is_active"] = *set.IsActive
	}
	if set.AmountMinor == nil {
		return r.findOneAndUpdate(ctx, id, bson.M{"$set": fields})
	}

	// Changing the cap must recompute remaining against accrued spend in
	// the same update, which $set alone cannot express. An aggregation
	// pipeline update keeps it a single atomic write.
	fields["amount_minor"] = *set.AmountMinor
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: fields}},
		{{Key: "$set", Value: bson.M{
			"remaining_minor": bson.M{"$subtract": bson.A{"$amount_minor", "$spent_minor"}},
		}}},
	}
	return r.findOneAndUpdate(ctx, id, pipeline)
}

func (r *repository) findOneAndUpdate(ctx context.Context, id string, update any) (Budget, error) {
	res := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	var budget Budget
	if err := res.Decode(&budget); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Budget{}, shared.ErrNotFound
		}
		return Budget{}, fmt.Errorf("budgets: update %s: %w", id, err)
	}
	return budget, nil
}
