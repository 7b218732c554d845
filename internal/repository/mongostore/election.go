package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) CreateElection(ctx context.Context, election *model.Election) error {
	now := s.now()
	election.ID = xid.New().String()
	election.StartDate = election.StartDate.UTC()
	election.EndDate = election.EndDate.UTC()
	election.CreatedAt = now
	election.UpdatedAt = now
	if election.Candidates == nil {
		election.Candidates = []model.Candidate{}
	}
	assignCandidateIDs(election.Candidates)

	if _, err := s.elections.InsertOne(ctx, election); err != nil {
		return fmt.Errorf("mongostore: inserting election: %w", err)
	}
	return nil
}

func (s *Store) GetElectionByID(ctx context.Context, id string) (*model.Election, error) {
	var e model.Election
	err := s.elections.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("election", id)
		}
		return nil, fmt.Errorf("mongostore: getting election %s: %w", id, err)
	}
	if e.Candidates == nil {
		e.Candidates = []model.Candidate{}
	}
	return &e, nil
}

// ListElections returns elections newest first.
func (s *Store) ListElections(ctx context.Context, filter repository.ElectionFilter) ([]model.Election, error) {
	q := bson.M{}
	if filter.AdminID != "" {
		q["adminId"] = filter.AdminID
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []model.Election{}, nil
		}
		q["_id"] = bson.M{"$in": filter.IDs}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.elections.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: listing elections: %w", err)
	}
	defer cur.Close(ctx)

	elections := []model.Election{}
	if err := cur.All(ctx, &elections); err != nil {
		return nil, fmt.Errorf("mongostore: decoding elections: %w", err)
	}
	for i := range elections {
		if elections[i].Candidates == nil {
			elections[i].Candidates = []model.Candidate{}
		}
	}
	return elections, nil
}

// UpdateElection replaces the mutable fields and the whole roster. Ballots
// keep the candidate snapshot they were cast with.
func (s *Store) UpdateElection(ctx context.Context, election *model.Election) error {
	election.StartDate = election.StartDate.UTC()
	election.EndDate = election.EndDate.UTC()
	election.UpdatedAt = s.now()
	if election.Candidates == nil {
		election.Candidates = []model.Candidate{}
	}
	assignCandidateIDs(election.Candidates)

	res, err := s.elections.UpdateByID(ctx, election.ID, bson.M{"$set": bson.M{
		"electionName": election.ElectionName,
		"faculty":      election.Faculty,
		"startDate":    election.StartDate,
		"endDate":      election.EndDate,
		"image":        election.Image,
		"candidates":   election.Candidates,
		"updatedAt":    election.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("mongostore: updating election %s: %w", election.ID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("election", election.ID)
	}
	return nil
}

// DeleteElection removes the election, then its ballots.
func (s *Store) DeleteElection(ctx context.Context, id string) error {
	res, err := s.elections.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongostore: deleting election %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("election", id)
	}

	if _, err := s.ballots.DeleteMany(ctx, bson.M{"electionId": id}); err != nil {
		return fmt.Errorf("mongostore: deleting ballots of election %s: %w", id, err)
	}
	return nil
}

func assignCandidateIDs(candidates []model.Candidate) {
	for i := range candidates {
		if candidates[i].ID == "" {
			candidates[i].ID = xid.New().String()
		}
	}
}
