// Package mongodb owns the document-store connection and the one-shot
// topology capability probe the ledger write paths branch on.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Store wraps the Mongo client together with the capability probe result.
// Multi-document transactions need a replica set or mongos; against a
// standalone server the ledger falls back to sequential writes.
type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	atomicWrites bool
}

type helloReply struct {
	SetName string `bson:"setName"`
	Msg     string `bson:"msg"`
}

// Connect dials the server, verifies connectivity and probes the deployment
// topology once. The probe result is cached for the life of the Store.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("platform/mongodb: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("platform/mongodb: ping: %w", err)
	}

	db := client.Database(database)

	var hello helloReply
	if err := db.RunCommand(pingCtx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("platform/mongodb: hello: %w", err)
	}

	return &Store{
		client:       client,
		db:           db,
		atomicWrites: hello.SetName != "" || hello.Msg == "isdbgrid",
	}, nil
}

// AtomicWrites reports whether the deployment supports multi-document
// transactions. Cached from the startup probe.
func (s *Store) AtomicWrites() bool { return s.atomicWrites }

// Database returns the application database handle.
func (s *Store) Database() *mongo.Database { return s.db }

// Client returns the underlying client, needed to start sessions.
func (s *Store) Client() *mongo.Client { return s.client }

// WithTransaction runs fn inside a session transaction. Callers must check
// AtomicWrites first; on a standalone deployment the server rejects this.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("platform/mongodb: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
