// Package mongostore implements the repository interfaces on MongoDB.
//
// Documents mirror the model types' bson tags: elections embed their
// candidate roster, ballots embed a candidate snapshot. IDs are xid strings
// rather than ObjectIDs so they look the same as in the SQLite store.
//
// The single-ballot invariant is a unique compound index on
// {userId, electionId}; the change feed is a database change stream and
// therefore needs a replica set (a single-node one is enough).
package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var _ repository.Store = (*Store)(nil)

// connectTimeout bounds the initial ping and index creation.
const connectTimeout = 10 * time.Second

// emailCollation makes email comparisons case-insensitive, matching the
// SQLite store's COLLATE NOCASE.
var emailCollation = &options.Collation{Locale: "en", Strength: 2}

// Store is a MongoDB-backed repository.Store.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	users     *mongo.Collection
	elections *mongo.Collection
	ballots   *mongo.Collection
	clock     func() time.Time
	logger    *slog.Logger
}

// New connects to uri, verifies the connection and ensures indexes on
// database dbName. The logger reports change stream failures.
func New(ctx context.Context, uri, dbName string, logger *slog.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connecting: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background()) //nolint:errcheck
		return nil, fmt.Errorf("mongostore: pinging: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client:    client,
		db:        db,
		users:     db.Collection(model.CollectionUsers),
		elections: db.Collection(model.CollectionElections),
		ballots:   db.Collection(model.CollectionBallots),
		clock:     time.Now,
		logger:    logger.With(slog.String("store", "mongo")),
	}

	if err := s.ensureIndexes(pingCtx); err != nil {
		client.Disconnect(context.Background()) //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetCollation(emailCollation),
	})
	if err != nil {
		return fmt.Errorf("mongostore: creating users.email index: %w", err)
	}

	_, err = s.ballots.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "electionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "electionId", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("mongostore: creating userVotes indexes: %w", err)
	}

	_, err = s.elections.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongostore: creating elections index: %w", err)
	}
	return nil
}

// Close disconnects the client. Open change streams end with it.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// now is truncated to milliseconds, the resolution BSON dates keep.
func (s *Store) now() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}
