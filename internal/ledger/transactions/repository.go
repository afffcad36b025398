package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/atlas-erp/atlas-erp/internal/ledger/accounts"
	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
	"github.com/atlas-erp/atlas-erp/internal/platform/mongodb"
)

const collection = "transactions"

// Repository is the persistence port for transactions. Posting and voiding
// bundle the transaction write with the account balance increments; whether
// that bundle is atomic depends on the store's topology capability.
type Repository interface {
	// AtomicWrites reports whether ApplyPosting/ApplyVoid run atomically.
	AtomicWrites() bool
	ApplyPosting(ctx context.Context, txn Transaction, deltas []BalanceDelta) error
	ApplyVoid(ctx context.Context, id string, deltas []BalanceDelta, at time.Time) error
	GetByID(ctx context.Context, id string) (Transaction, error)
	// List methods page newest-first and return the total match count
	// alongside the requested window.
	ListByAccount(ctx context.Context, accountID string, offset, limit int64) ([]Transaction, int64, error)
	ListByDateRange(ctx context.Context, from, to time.Time, offset, limit int64) ([]Transaction, int64, error)
}

type repository struct {
	store *mongodb.Store
	col   *mongo.Collection
	accs  *mongo.Collection
}

// NewRepository builds the Mongo-backed repository on the shared store.
func NewRepository(store *mongodb.Store) Repository {
	db := store.Database()
	return &repository{
		store: store,
		col:   db.Collection(collection),
		accs:  db.Collection(accounts.Collection),
	}
}

// EnsureIndexes creates the uniqueness and lookup indexes.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(collection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "entries.account_id", Value: 1}}},
		{Keys: bson.D{{Key: "date", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("transactions: ensure indexes: %w", err)
	}
	return nil
}

func (r *repository) AtomicWrites() bool { return r.store.AtomicWrites() }

// ApplyPosting inserts the transaction and applies every balance delta. With
// atomic writes available the whole bundle runs in one session transaction
// and rolls back on the first failure; without them the writes land one by
// one and a crash mid-sequence can leave a partially applied posting.
func (r *repository) ApplyPosting(ctx context.Context, txn Transaction, deltas []BalanceDelta) error {
	apply := func(ctx context.Context) error {
		if _, err := r.col.InsertOne(ctx, txn); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return shared.NewConflictError("transaction number %s already assigned", txn.Number)
			}
			return fmt.Errorf("transactions: insert %s: %w", txn.Number, err)
		}
		return r.applyDeltas(ctx, deltas, txn.CreatedAt)
	}
	if r.store.AtomicWrites() {
		return r.store.WithTransaction(ctx, apply)
	}
	return apply(ctx)
}

// ApplyVoid flips the status POSTED -> VOIDED and applies the reversal
// deltas under the same atomicity discipline as posting. The status filter
// makes the transition race-safe: a concurrent void loses with a conflict.
func (r *repository) ApplyVoid(ctx context.Context, id string, deltas []BalanceDelta, at time.Time) error {
	apply := func(ctx context.Context) error {
		res, err := r.col.UpdateOne(ctx,
			bson.M{"_id": id, "status": StatusPosted},
			bson.M{"$set": bson.M{"status": StatusVoided, "updated_at": at}},
		)
		if err != nil {
			return fmt.Errorf("transactions: void %s: %w", id, err)
		}
		if res.MatchedCount == 0 {
			return shared.NewConflictError("transaction %s is already voided", id)
		}
		return r.applyDeltas(ctx, deltas, at)
	}
	if r.store.AtomicWrites() {
		return r.store.WithTransaction(ctx, apply)
	}
	return apply(ctx)
}

func (r *repository) applyDeltas(ctx context.Context, deltas []BalanceDelta, at time.Time) error {
	for _, delta := range deltas {
		res, err := r.accs.UpdateOne(ctx,
			bson.M{"_id": delta.AccountID},
			bson.M{
				"$inc": bson.M{"balance_minor": delta.DeltaMinor},
				"$set": bson.M{"updated_at": at},
			},
		)
		if err != nil {
			return fmt.Errorf("transactions: apply delta to %s: %w", delta.AccountID, err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("transactions: account %s disappeared mid-posting", delta.AccountID)
		}
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (Transaction, error) {
	var txn Transaction
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&txn); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Transaction{}, shared.ErrNotFound
		}
		return Transaction{}, fmt.Errorf("transactions: get %s: %w", id, err)
	}
	return txn, nil
}

func (r *repository) ListByAccount(ctx context.Context, accountID string, offset, limit int64) ([]Transaction, int64, error) {
	return r.list(ctx, bson.M{"entries.account_id": accountID}, offset, limit)
}

func (r *repository) ListByDateRange(ctx context.Context, from, to time.Time, offset, limit int64) ([]Transaction, int64, error) {
	return r.list(ctx, bson.M{"date": bson.M{"$gte": from, "$lte": to}}, offset, limit)
}

func (r *repository) list(ctx context.Context, filter bson.M, offset, limit int64) ([]Transaction, int64, error) {
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("transactions: count: %w", err)
	}
	cursor, err := r.col.Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "date", Value: -1}, {Key: "number", Value: -1}}).
			SetSkip(offset).
			SetLimit(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("transactions: list: %w", err)
	}
	var out []Transaction
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("transactions: decode list: %w", err)
	}
	return out, total, nil
}
