package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/election"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
)

// TallyService computes election results, once or as a live stream.
type TallyService struct {
	base
	elections repository.ElectionRepository
	ballots   repository.BallotRepository
	feed      repository.ChangeFeed
}

func NewTallyService(
	elections repository.ElectionRepository,
	ballots repository.BallotRepository,
	feed repository.ChangeFeed,
	logger *slog.Logger,
	opts Options,
) *TallyService {
	return &TallyService{
		base:      newBase(opts, logger),
		elections: elections,
		ballots:   ballots,
		feed:      feed,
	}
}

// ComputeResults reads the election and all its ballots and aggregates
// them. Ballots naming a candidate that is no longer on the roster are
// counted in the total but credited to nobody; that is logged as a
// malformed election.
func (s *TallyService) ComputeResults(ctx context.Context, electionID string) (*model.Tally, error) {
	electionID = strings.TrimSpace(electionID)
	if electionID == "" {
		return nil, apperror.ValidationFailed("id", "election ID is required")
	}

	e, err := readStore(ctx, &s.base, "get election", func(ctx context.Context) (*model.Election, error) {
		return s.elections.GetElectionByID(ctx, electionID)
	})
	if err != nil {
		return nil, err
	}

	ballots, err := readStore(ctx, &s.base, "list ballots", func(ctx context.Context) ([]model.Ballot, error) {
		return s.ballots.ListBallots(ctx, repository.BallotFilter{ElectionID: electionID})
	})
	if err != nil {
		return nil, err
	}

	t := election.Compute(e, ballots, s.now())
	if t.Unattributed > 0 {
		s.logger.Warn("ballots reference candidates missing from the roster",
			slog.String("electionID", electionID),
			slog.Int("unattributed", t.Unattributed),
			slog.String("orphanedNames", strings.Join(t.OrphanedNames, ",")),
			slog.String("error", apperror.ErrMalformedElection.Error()),
		)
	}
	return t, nil
}

// Watch streams tallies for electionID. The first value is the current
// tally; after that a full tally is recomputed whenever the election or
// its ballots change, and every ResyncInterval regardless.
//
// The channel holds at most one undelivered tally: a slow reader skips
// intermediate results and always gets the latest. It is closed when ctx
// ends, when the election is deleted, or when a recompute fails for a
// reason other than a transient store outage.
func (s *TallyService) Watch(ctx context.Context, electionID string) (<-chan *model.Tally, error) {
	ctx, cancel := context.WithCancel(ctx)

	// Subscribe before the first read so no change between the two is lost.
	changes, err := s.feed.Changes(ctx)
	if err != nil {
		cancel()
		return nil, apperror.StoreUnavailable("watch changes", err)
	}

	first, err := s.ComputeResults(ctx, electionID)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan *model.Tally, 1)
	out <- first

	go s.watch(ctx, cancel, electionID, changes, out)
	return out, nil
}

func (s *TallyService) watch(ctx context.Context, cancel context.CancelFunc, electionID string, changes <-chan model.Change, out chan *model.Tally) {
	defer close(out)
	defer cancel()

	ticker := time.NewTicker(s.opts.ResyncInterval)
	defer ticker.Stop()

	logger := s.logger.With(slog.String("electionID", electionID))
	logger.Debug("tally watch started")
	defer logger.Debug("tally watch stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				// Feed ended; keep serving from periodic resyncs.
				changes = nil
				continue
			}
			if !c.Touches(electionID) {
				continue
			}
			if c.Collection == model.CollectionElections && c.Op == model.ChangeDelete {
				return
			}
		case <-ticker.C:
		}

		t, err := s.ComputeResults(ctx, electionID)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, apperror.ErrNotFound) {
				return
			}
			if errors.Is(err, apperror.ErrStoreUnavailable) {
				logger.Warn("tally recompute failed, waiting for next change",
					slog.String("error", errorCause(err)))
				continue
			}
			logger.Error("tally recompute failed", slog.String("error", err.Error()))
			return
		}
		publishLatest(out, t)
	}
}

// publishLatest replaces any undelivered tally with t. The caller is the
// channel's only sender.
func publishLatest(out chan *model.Tally, t *model.Tally) {
	select {
	case out <- t:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- t:
	default:
	}
}
