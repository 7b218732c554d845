package mongostore

import (
	"context"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertBallot relies on the unique {userId, electionId} index: a second
// ballot for the pair fails with a duplicate key error, which becomes
// apperror.AlreadyVoted. There is no prior lookup for an existing ballot.
func (s *Store) InsertBallot(ctx context.Context, ballot *model.Ballot) error {
	n, err := s.elections.CountDocuments(ctx, bson.M{"_id": ballot.ElectionID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("mongostore: checking election %s: %w", ballot.ElectionID, err)
	}
	if n == 0 {
		return apperror.NotFound("election", ballot.ElectionID)
	}

	ballot.ID = xid.New().String()
	ballot.CastAt = s.now()

	if _, err := s.ballots.InsertOne(ctx, ballot); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.AlreadyVoted(ballot.UserID, ballot.ElectionID)
		}
		return fmt.Errorf("mongostore: inserting ballot (user=%s, election=%s): %w",
			ballot.UserID, ballot.ElectionID, err)
	}
	return nil
}

func (s *Store) HasVoted(ctx context.Context, userID, electionID string) (bool, error) {
	n, err := s.ballots.CountDocuments(ctx,
		bson.M{"userId": userID, "electionId": electionID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongostore: checking ballot (user=%s, election=%s): %w", userID, electionID, err)
	}
	return n > 0, nil
}

func (s *Store) ListBallots(ctx context.Context, filter repository.BallotFilter) ([]model.Ballot, error) {
	opts := options.Find().SetSort(bson.D{{Key: "castAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.ballots.Find(ctx, ballotQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: listing ballots: %w", err)
	}
	defer cur.Close(ctx)

	ballots := []model.Ballot{}
	if err := cur.All(ctx, &ballots); err != nil {
		return nil, fmt.Errorf("mongostore: decoding ballots: %w", err)
	}
	return ballots, nil
}

func (s *Store) CountBallots(ctx context.Context, filter repository.BallotFilter) (int, error) {
	n, err := s.ballots.CountDocuments(ctx, ballotQuery(filter))
	if err != nil {
		return 0, fmt.Errorf("mongostore: counting ballots: %w", err)
	}
	return int(n), nil
}

func ballotQuery(filter repository.BallotFilter) bson.M {
	q := bson.M{}
	if filter.ElectionID != "" {
		q["electionId"] = filter.ElectionID
	}
	if filter.UserID != "" {
		q["userId"] = filter.UserID
	}
	return q
}
