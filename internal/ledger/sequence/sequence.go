// Package sequence issues monotonically increasing numbers per scope using a
// counters collection updated with an atomic find-and-increment, so two
// concurrent creations in the same scope can never observe the same value.
package sequence

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const collection = "counters"

// Generator hands out the next number for a scope.
type Generator struct {
	col *mongo.Collection
}

// NewGenerator builds a Generator on the shared database.
func NewGenerator(db *mongo.Database) *Generator {
	return &Generator{col: db.Collection(collection)}
}

type counter struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// Next atomically increments and returns the counter for scope, creating it
// on first use.
func (g *Generator) Next(ctx context.Context, scope string) (int64, error) {
	res := g.col.FindOneAndUpdate(ctx,
		bson.M{"_id": scope},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var c counter
	if err := res.Decode(&c); err != nil {
		return 0, fmt.Errorf("sequence: next %q: %w", scope, err)
	}
	return c.Seq, nil
}

// AccountScope keys account numbering by account type.
func AccountScope(accountType string) string {
	return "account:" + accountType
}

// TransactionScope keys transaction numbering by calendar day (UTC).
func TransactionScope(at time.Time) string {
	return "txn:" + at.UTC().Format("20060102")
}

// FormatAccountNumber renders an account number: a one-digit type prefix
// followed by the zero-padded sequence (first asset account is 10001).
func FormatAccountNumber(prefix int, seq int64) string {
	return fmt.Sprintf("%d%04d", prefix, seq)
}

// FormatTransactionNumber renders a date-scoped transaction number, e.g.
// TXN-20260901-000001.
func FormatTransactionNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("TXN-%s-%06d", at.UTC().Format("20060102"), seq)
}
