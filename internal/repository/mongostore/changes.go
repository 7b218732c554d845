package mongostore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/campus-ballot/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// changeBuffer matches the SQLite notifier's per-subscriber backlog.
const changeBuffer = 64

// changeEvent is the subset of a change stream document we read.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	NS            struct {
		Coll string `bson:"coll"`
	} `bson:"ns"`
	DocumentKey struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument struct {
		ElectionID string `bson:"electionId"`
	} `bson:"fullDocument"`
}

// Changes opens a change stream over the users, elections and userVotes
// collections. The channel closes when ctx ends or the stream fails.
func (s *Store) Changes(ctx context.Context) (<-chan model.Change, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"ns.coll":       bson.M{"$in": bson.A{model.CollectionUsers, model.CollectionElections, model.CollectionBallots}},
			"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	stream, err := s.db.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: opening change stream: %w", err)
	}

	out := make(chan model.Change, changeBuffer)
	go pump(ctx, stream, out, s.logger)
	return out, nil
}

// eventStream is the part of *mongo.ChangeStream that pump reads.
type eventStream interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Err() error
	Close(ctx context.Context) error
}

// pump forwards stream events to out until the stream ends, then closes out.
// Undecodable events are skipped with a warning. A stream that ends for any
// reason other than ctx is logged as an error, since watchers then only see
// their periodic resync.
func pump(ctx context.Context, stream eventStream, out chan<- model.Change, logger *slog.Logger) {
	defer close(out)
	defer stream.Close(context.Background()) //nolint:errcheck

	for stream.Next(ctx) {
		var ev changeEvent
		if err := stream.Decode(&ev); err != nil {
			logger.Warn("skipping undecodable change event", slog.String("error", err.Error()))
			continue
		}
		c, ok := toChange(ev)
		if !ok {
			continue
		}
		select {
		case out <- c:
		default:
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := stream.Err(); err != nil {
		logger.Error("change stream failed; live tallies fall back to resync",
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Error("change stream ended; live tallies fall back to resync")
}

func toChange(ev changeEvent) (model.Change, bool) {
	c := model.Change{Collection: ev.NS.Coll, ID: ev.DocumentKey.ID}

	switch ev.OperationType {
	case "insert":
		c.Op = model.ChangeInsert
	case "update", "replace":
		c.Op = model.ChangeUpdate
	case "delete":
		c.Op = model.ChangeDelete
	default:
		return model.Change{}, false
	}

	switch ev.NS.Coll {
	case model.CollectionElections:
		c.ElectionID = ev.DocumentKey.ID
	case model.CollectionBallots:
		// Deleted ballots have no full document; their election's own
		// delete event is what watchers act on.
		c.ElectionID = ev.FullDocument.ElectionID
	}
	return c, true
}
