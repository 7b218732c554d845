package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/auth"
	"github.com/sakif/campus-ballot/internal/election"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
)

// ElectionService handles election CRUD and the per-viewer election lists.
type ElectionService struct {
	base
	elections repository.ElectionRepository
	ballots   repository.BallotRepository
	users     repository.UserRepository
}

func NewElectionService(
	elections repository.ElectionRepository,
	ballots repository.BallotRepository,
	users repository.UserRepository,
	logger *slog.Logger,
	opts Options,
) *ElectionService {
	return &ElectionService{
		base:      newBase(opts, logger),
		elections: elections,
		ballots:   ballots,
		users:     users,
	}
}

// ElectionInput is the admin-editable part of an election.
type ElectionInput struct {
	ElectionName string
	Faculty      string
	StartDate    time.Time
	EndDate      time.Time
	Image        string
	Candidates   []model.Candidate
}

// ListQuery narrows ListFor.
type ListQuery struct {
	Tab    election.Tab
	Search string
}

// Create validates and stores a new election owned by adminID.
func (s *ElectionService) Create(ctx context.Context, adminID string, in ElectionInput) (*model.Election, error) {
	e := &model.Election{
		ElectionName: in.ElectionName,
		Faculty:      in.Faculty,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Image:        strings.TrimSpace(in.Image),
		Candidates:   append([]model.Candidate(nil), in.Candidates...),
		AdminID:      adminID,
	}
	// Fresh IDs: a client cannot choose candidate IDs on create.
	for i := range e.Candidates {
		e.Candidates[i].ID = xid.New().String()
	}

	if err := election.Validate(e); err != nil {
		return nil, err
	}

	if err := writeStore(ctx, &s.base, "create election", func(ctx context.Context) error {
		return s.elections.CreateElection(ctx, e)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("election created",
		slog.String("electionID", e.ID),
		slog.String("adminID", adminID),
		slog.Int("candidates", len(e.Candidates)),
	)
	return e, nil
}

// Get returns one election. Admins see any election; voters see elections
// scoped to their faculty, including ended ones so past ballots stay
// reviewable.
func (s *ElectionService) Get(ctx context.Context, viewer auth.Identity, id string) (*model.Election, error) {
	e, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer.IsAdmin() {
		return e, nil
	}

	voter, err := s.voter(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	if !election.InScope(e, voter) {
		return nil, apperror.NotFound("election", id)
	}
	return e, nil
}

// ListFor returns the elections the viewer may see, filtered by tab and
// search term. Voters see only elections visible to them.
func (s *ElectionService) ListFor(ctx context.Context, viewer auth.Identity, q ListQuery) ([]model.Election, error) {
	all, err := readStore(ctx, &s.base, "list elections", func(ctx context.Context) ([]model.Election, error) {
		return s.elections.ListElections(ctx, repository.ElectionFilter{})
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !viewer.IsAdmin() {
		voter, err := s.voter(ctx, viewer.UserID)
		if err != nil {
			return nil, err
		}
		all = election.Visible(all, voter, now)
	}

	tab := q.Tab
	if tab == "" {
		tab = election.TabAll
	}
	return election.Search(election.Filter(all, tab, now), q.Search), nil
}

// Update replaces an election's fields and roster.
//
// Candidate IDs are kept stable: a submitted candidate keeps its ID when it
// names an existing roster ID, or failing that matches an existing
// candidate's name. Anything else is a new candidate.
func (s *ElectionService) Update(ctx context.Context, id string, in ElectionInput) (*model.Election, error) {
	e, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	e.ElectionName = in.ElectionName
	e.Faculty = in.Faculty
	e.StartDate = in.StartDate
	e.EndDate = in.EndDate
	e.Image = strings.TrimSpace(in.Image)
	e.Candidates = reconcileCandidates(e.Candidates, in.Candidates)

	if err := election.Validate(e); err != nil {
		return nil, err
	}

	if err := writeStore(ctx, &s.base, "update election", func(ctx context.Context) error {
		return s.elections.UpdateElection(ctx, e)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("election updated",
		slog.String("electionID", e.ID),
		slog.Int("candidates", len(e.Candidates)),
	)
	return e, nil
}

// Delete removes the election together with its ballots.
func (s *ElectionService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "election ID is required")
	}

	if err := writeStore(ctx, &s.base, "delete election", func(ctx context.Context) error {
		return s.elections.DeleteElection(ctx, id)
	}); err != nil {
		return err
	}

	s.logger.Info("election deleted", slog.String("electionID", id))
	return nil
}

// VotedElections returns the elections userID has cast a ballot in,
// newest first.
func (s *ElectionService) VotedElections(ctx context.Context, userID string) ([]model.Election, error) {
	ballots, err := readStore(ctx, &s.base, "list ballots", func(ctx context.Context) ([]model.Ballot, error) {
		return s.ballots.ListBallots(ctx, repository.BallotFilter{UserID: userID})
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(ballots))
	for _, b := range ballots {
		ids = append(ids, b.ElectionID)
	}

	return readStore(ctx, &s.base, "list elections", func(ctx context.Context) ([]model.Election, error) {
		return s.elections.ListElections(ctx, repository.ElectionFilter{IDs: ids})
	})
}

func (s *ElectionService) get(ctx context.Context, id string) (*model.Election, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "election ID is required")
	}
	return readStore(ctx, &s.base, "get election", func(ctx context.Context) (*model.Election, error) {
		return s.elections.GetElectionByID(ctx, id)
	})
}

func (s *ElectionService) voter(ctx context.Context, userID string) (*model.User, error) {
	user, err := readStore(ctx, &s.base, "get user", func(ctx context.Context) (*model.User, error) {
		return s.users.GetUserByID(ctx, userID)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.Unauthorized("account no longer exists")
		}
		return nil, err
	}
	return user, nil
}

// reconcileCandidates assigns IDs to the submitted roster, reusing the IDs
// of current candidates it refers to.
func reconcileCandidates(current, submitted []model.Candidate) []model.Candidate {
	byID := make(map[string]bool, len(current))
	byName := make(map[string]string, len(current))
	for _, c := range current {
		byID[c.ID] = true
		byName[strings.TrimSpace(c.Name)] = c.ID
	}

	used := make(map[string]bool, len(submitted))
	out := make([]model.Candidate, len(submitted))
	for i, c := range submitted {
		named := byName[strings.TrimSpace(c.Name)]
		switch {
		case c.ID != "" && byID[c.ID] && !used[c.ID]:
		case named != "" && !used[named]:
			c.ID = named
		default:
			c.ID = xid.New().String()
		}
		used[c.ID] = true
		out[i] = c
	}
	return out
}
