package accounts

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

// Collection is the accounts collection name, exported because transaction
// posting applies balance increments to it inside its own write scope.
const Collection = "accounts"

// UpdateSet carries the partially updatable account fields.
type UpdateSet struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// Repository is the persistence port for accounts.
type Repository interface {
	Insert(ctx context.Context, account Account) error
	GetByID(ctx context.Context, id string) (Account, error)
	GetByNumber(ctx context.Context, number string) (Account, error)
	GetActiveByUser(ctx context.Context, userID string) (Account, error)
	ListByType(ctx context.Context, t AccountType) ([]Account, error)
	Update(ctx context.Context, id string, set UpdateSet, at time.Time) (Account, error)
	IncrementBalance(ctx context.Context, id string, deltaMinor int64, at time.Time) (Account, error)
}

type repository struct {
	col *mongo.Collection
}

// NewRepository builds the Mongo-backed repository.
func NewRepository(db *mongo.Database) Repository {
	return &repository{col: db.Collection(Collection)}
}

// EnsureIndexes creates the uniqueness and lookup indexes. The partial
// unique index on user_id backs the one-active-account-per-user rule at the
// store level; the service checks it first for a friendlier error.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(Collection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"is_active": true,
					"user_id":   bson.M{"$type": "string", "$gt": ""},
				}),
		},
		{Keys: bson.D{{Key: "type", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("accounts: ensure indexes: %w", err)
	}
	return nil
}

func (r *repository) Insert(ctx context.Context, account Account) error {
	if _, err := r.col.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return shared.NewConflictError("account %s already exists", account.Number)
		}
		return fmt.Errorf("accounts: insert: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (Account, error) {
	return r.getOne(ctx, bson.M{"_id": id})
}

func (r *repository) GetByNumber(ctx context.Context, number string) (Account, error) {
	return r.getOne(ctx, bson.M{"number": number})
}

func (r *repository) GetActiveByUser(ctx context.Context, userID string) (Account, error) {
	return r.getOne(ctx, bson.M{"user_id": userID, "is_active": true})
}

func (r *repository) getOne(ctx context.Context, filter bson.M) (Account, error) {
	var account Account
	if err := r.col.FindOne(ctx, filter).Decode(&account); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, fmt.Errorf("accounts: get: %w", err)
	}
	return account, nil
}

func (r *repository) ListByType(ctx context.Context, t AccountType) ([]Account, error) {
	cursor, err := r.col.Find(ctx, bson.M{"type": t},
		options.Find().SetSort(bson.D{{Key: "number", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("accounts: list by type: %w", err)
	}
	var out []Account
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("accounts: decode list: %w", err)
	}
	return out, nil
}

func (r *repository) Update(ctx context.Context, id string, set UpdateSet, at time.Time) (Account, error) {
	fields := bson.M{"updated_at": at}
	if set.Name != nil {
		fields["name"] = *set.Name
	}
	if set.Description != nil {
		fields["description"] = *set.Description
	}
	if set.IsActive != nil {
		fields["is_active"] = *set.IsActive
	}
	return r.findOneAndUpdate(ctx, id, bson.M{"$set": fields})
}

// IncrementBalance moves the balance by deltaMinor as a single atomic $inc,
// so concurrent postings against the same account cannot lose updates.
func (r *repository) IncrementBalance(ctx context.Context, id string, deltaMinor int64, at time.Time) (Account, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{
		"$inc": bson.M{"balance_minor": deltaMinor},
		"$set": bson.M{"updated_at": at},
	})
}

func (r *repository) findOneAndUpdate(ctx context.Context, id string, update bson.M) (Account, error) {
	res := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	var account Account
	if err := res.Decode(&account); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, fmt.Errorf("accounts: update: %w", err)
	}
	return account, nil
}
