// Package repository declares the ballot store contracts. Implementations
// live in sub-packages (sqlite, mongostore); services depend only on these
// interfaces.
//
// Every implementation must:
//   - return apperror.NotFound for missing documents,
//   - return apperror.AlreadyVoted when InsertBallot would create a second
//     ballot for the same (user, election) pair, decided atomically by the
//     store itself,
//   - return apperror.Conflict for a duplicate user email,
//   - publish a model.Change on its change feed after each committed write.
package repository

import (
	"context"

	"github.com/sakif/campus-ballot/internal/model"
)

// UserFilter narrows ListUsers. Zero values mean "any".
type UserFilter struct {
	UserType model.UserType
	Status   model.UserStatus
}

// ElectionFilter narrows ListElections. Zero values mean "any".
//
// Time-based filtering is deliberately absent: phases are derived from the
// clock by the election package, never queried.
type ElectionFilter struct {
	AdminID string
	IDs     []string
}

// BallotFilter narrows ListBallots and CountBallots. Zero values mean "any".
type BallotFilter struct {
	ElectionID string
	UserID     string
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id string) error
}

type ElectionRepository interface {
	CreateElection(ctx context.Context, election *model.Election) error
	GetElectionByID(ctx context.Context, id string) (*model.Election, error)
	ListElections(ctx context.Context, filter ElectionFilter) ([]model.Election, error)
	UpdateElection(ctx context.Context, election *model.Election) error
	DeleteElection(ctx context.Context, id string) error
}

type BallotRepository interface {
	// InsertBallot stores a ballot unless one already exists for
	// (ballot.UserID, ballot.ElectionID). ID and CastAt are assigned here.
	InsertBallot(ctx context.Context, ballot *model.Ballot) error
	HasVoted(ctx context.Context, userID, electionID string) (bool, error)
	ListBallots(ctx context.Context, filter BallotFilter) ([]model.Ballot, error)
	CountBallots(ctx context.Context, filter BallotFilter) (int, error)
}

// ChangeFeed delivers store mutations. The returned channel is closed when
// ctx is done. Deliveries may be coalesced or dropped for slow receivers;
// receivers must re-read the store rather than apply changes incrementally.
type ChangeFeed interface {
	Changes(ctx context.Context) (<-chan model.Change, error)
}

// Store is a complete ballot store.
type Store interface {
	UserRepository
	ElectionRepository
	BallotRepository
	ChangeFeed
	Close() error
}
