package service

import (
	"context"
	"log/slog"

	"github.com/sakif/campus-ballot/internal/election"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
)

// Activity is the admin dashboard summary.
type Activity struct {
	Elections        int `json:"elections"`
	Ballots          int `json:"ballots"`
	Users            int `json:"users"`
	Voters           int `json:"voters"`
	Admins           int `json:"admins"`
	PendingElections int `json:"pendingElections"`
	ActiveElections  int `json:"activeElections"`
	ExpiredElections int `json:"expiredElections"`
}

// ActivityService computes dashboard counters.
type ActivityService struct {
	base
	store activityStore
}

// activityStore is the read-only slice of the store the dashboard needs.
type activityStore interface {
	ListElections(ctx context.Context, filter repository.ElectionFilter) ([]model.Election, error)
	ListUsers(ctx context.Context, filter repository.UserFilter) ([]model.User, error)
	CountBallots(ctx context.Context, filter repository.BallotFilter) (int, error)
}

func NewActivityService(store activityStore, logger *slog.Logger, opts Options) *ActivityService {
	return &ActivityService{base: newBase(opts, logger), store: store}
}

// Activity counts elections (by phase at the current time), ballots and
// users (by role).
func (s *ActivityService) Activity(ctx context.Context) (*Activity, error) {
	elections, err := readStore(ctx, &s.base, "list elections", func(ctx context.Context) ([]model.Election, error) {
		return s.store.ListElections(ctx, repository.ElectionFilter{})
	})
	if err != nil {
		return nil, err
	}

	users, err := readStore(ctx, &s.base, "list users", func(ctx context.Context) ([]model.User, error) {
		return s.store.ListUsers(ctx, repository.UserFilter{})
	})
	if err != nil {
		return nil, err
	}

	ballots, err := readStore(ctx, &s.base, "count ballots", func(ctx context.Context) (int, error) {
		return s.store.CountBallots(ctx, repository.BallotFilter{})
	})
	if err != nil {
		return nil, err
	}

	phases := election.CountPhases(elections, s.now())
	a := &Activity{
		Elections:        len(elections),
		Ballots:          ballots,
		Users:            len(users),
		PendingElections: phases.Pending,
		ActiveElections:  phases.InProgress,
		ExpiredElections: phases.Expired,
	}
	for _, u := range users {
		switch u.UserType {
		case model.UserTypeVoter:
			a.Voters++
		case model.UserTypeAdmin:
			a.Admins++
		}
	}
	return a, nil
}
