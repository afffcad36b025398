// Package audit persists an audit trail for privileged ledger operations.
// Single-sided balance adjustments and transaction voids must stay
// reconstructable after the fact, so every such call records who did what to
// which entity.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const collection = "audit_log"

// Entry is one audit record.
type Entry struct {
	ID       string         `bson:"_id" json:"id"`
	ActorID  string         `bson:"actor_id" json:"actorId"`
	Action   string         `bson:"action" json:"action"`
	Entity   string         `bson:"entity" json:"entity"`
	EntityID string         `bson:"entity_id" json:"entityId"`
	Meta     map[string]any `bson:"meta,omitempty" json:"meta,omitempty"`
	At       time.Time      `bson:"at" json:"at"`
}

// Service writes and reads the audit trail.
type Service struct {
	col *mongo.Collection
	now func() time.Time
}

// NewService builds the audit service on the shared database.
func NewService(db *mongo.Database) *Service {
	return &Service{col: db.Collection(collection), now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// EnsureIndexes creates the lookup indexes.
func (s *Service) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "entity", Value: 1}, {Key: "entity_id", Value: 1}}},
		{Keys: bson.D{{Key: "at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("audit: ensure indexes: %w", err)
	}
	return nil
}

// Record persists one audit entry. ID and timestamp are filled when absent.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = s.now()
	}
	if _, err := s.col.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("audit: record %s: %w", entry.Action, err)
	}
	return nil
}

// ListByEntity returns the newest-first trail for one entity.
func (s *Service) ListByEntity(ctx context.Context, entity, entityID string, limit int64) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	cursor, err := s.col.Find(ctx,
		bson.M{"entity": entity, "entity_id": entityID},
		options.Find().SetSort(bson.D{{Key: "at", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("audit: list %s/%s: %w", entity, entityID, err)
	}
	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("audit: decode %s/%s: %w", entity, entityID, err)
	}
	return entries, nil
}
