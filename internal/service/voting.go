package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/election"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
)

// VotingService answers "has this user voted?" and casts ballots.
//
// THE SINGLE-BALLOT RULE:
// This service never checks HasVoted before inserting. The store's
// InsertBallot is a conditional insert guarded by a unique
// (user, election) key, so two concurrent casts by the same voter cannot
// both succeed: one gets apperror.ErrAlreadyVoted. A check here would only
// add a race window.
type VotingService struct {
	base
	elections repository.ElectionRepository
	ballots   repository.BallotRepository
	users     repository.UserRepository
}

func NewVotingService(
	elections repository.ElectionRepository,
	ballots repository.BallotRepository,
	users repository.UserRepository,
	logger *slog.Logger,
	opts Options,
) *VotingService {
	return &VotingService{
		base:      newBase(opts, logger),
		elections: elections,
		ballots:   ballots,
		users:     users,
	}
}

// CandidateRef picks a roster entry by ID or, when ID is empty, by name.
type CandidateRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// HasVoted reports whether userID already cast a ballot in electionID.
func (s *VotingService) HasVoted(ctx context.Context, userID, electionID string) (bool, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(electionID) == "" {
		return false, apperror.ValidationFailed("id", "user and election IDs are required")
	}
	return readStore(ctx, &s.base, "has voted", func(ctx context.Context) (bool, error) {
		return s.ballots.HasVoted(ctx, userID, electionID)
	})
}

// CastVote records userID's ballot for the referenced candidate.
//
// Errors:
//   - ErrValidation: missing IDs or a candidate not on the current roster
//   - ErrNotFound: unknown election
//   - ErrForbidden: caller is an admin, or the election is not visible to
//     them or not in progress
//   - ErrAlreadyVoted: a ballot for the pair already exists
//
// The insert is attempted exactly once; it is never retried.
func (s *VotingService) CastVote(ctx context.Context, userID, electionID string, ref CandidateRef) (*model.Ballot, error) {
	electionID = strings.TrimSpace(electionID)
	if strings.TrimSpace(userID) == "" || electionID == "" {
		return nil, apperror.ValidationFailed("id", "user and election IDs are required")
	}

	voter, err := readStore(ctx, &s.base, "get user", func(ctx context.Context) (*model.User, error) {
		return s.users.GetUserByID(ctx, userID)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.Unauthorized("account no longer exists")
		}
		return nil, err
	}
	if voter.IsAdmin() {
		return nil, apperror.Forbidden("only voters can cast ballots")
	}

	e, err := readStore(ctx, &s.base, "get election", func(ctx context.Context) (*model.Election, error) {
		return s.elections.GetElectionByID(ctx, electionID)
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !election.Votable(e, voter, now) {
		return nil, notVotable(e, voter, now)
	}

	candidate, ok := resolveCandidate(e, ref)
	if !ok {
		return nil, apperror.ValidationFailed("candidate", "candidate is not on this election's roster")
	}

	ballot := &model.Ballot{
		UserID:     voter.ID,
		ElectionID: e.ID,
		Candidate:  candidate,
		VoterName:  voter.FullName,
	}
	if err := writeStore(ctx, &s.base, "cast vote", func(ctx context.Context) error {
		return s.ballots.InsertBallot(ctx, ballot)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("ballot cast",
		slog.String("electionID", e.ID),
		slog.String("userID", voter.ID),
		slog.String("candidateID", candidate.ID),
	)
	return ballot, nil
}

func notVotable(e *model.Election, voter *model.User, now time.Time) error {
	if !election.InScope(e, voter) {
		return apperror.Forbidden(fmt.Sprintf("election %s is not open to faculty %q", e.ID, voter.Faculty))
	}
	switch election.Classify(e, now) {
	case election.PhasePending:
		return apperror.Forbidden("voting has not started yet")
	default:
		return apperror.Forbidden("voting has ended")
	}
}

func resolveCandidate(e *model.Election, ref CandidateRef) (model.Candidate, bool) {
	if id := strings.TrimSpace(ref.ID); id != "" {
		return e.CandidateByID(id)
	}
	if name := strings.TrimSpace(ref.Name); name != "" {
		return e.CandidateByName(name)
	}
	return model.Candidate{}, false
}
