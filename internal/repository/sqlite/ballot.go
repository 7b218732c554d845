package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
)

var _ repository.BallotRepository = (*DB)(nil)

const ballotColumns = `id, user_id, election_id, candidate_id, candidate_name, candidate_image,
	candidate_faculty, candidate_level, voter_name, cast_at`

// InsertBallot stores ballot unless the voter already has one for the
// election.
//
// THE SINGLE-BALLOT GUARANTEE:
// There is no "SELECT then INSERT" here. Two requests from the same voter
// can arrive at the same time; a read-then-write would let both see "no
// ballot yet" and both insert. Instead the UNIQUE(user_id, election_id)
// constraint decides, inside the INSERT:
//
//	ON CONFLICT(user_id, election_id) DO NOTHING
//
// The loser of the race affects zero rows and gets apperror.AlreadyVoted.
func (db *DB) InsertBallot(ctx context.Context, ballot *model.Ballot) error {
	ballot.ID = xid.New().String()
	ballot.CastAt = db.now()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO ballots (`+ballotColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, election_id) DO NOTHING`,
		ballot.ID,
		ballot.UserID,
		ballot.ElectionID,
		ballot.Candidate.ID,
		ballot.Candidate.Name,
		ballot.Candidate.Image,
		ballot.Candidate.Faculty,
		ballot.Candidate.Level,
		ballot.VoterName,
		ballot.CastAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return apperror.NotFound("election", ballot.ElectionID)
		}
		return fmt.Errorf("sqlite: inserting ballot (user=%s, election=%s): %w",
			ballot.UserID, ballot.ElectionID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.AlreadyVoted(ballot.UserID, ballot.ElectionID)
	}

	db.feed.publish(model.Change{
		Collection: model.CollectionBallots,
		Op:         model.ChangeInsert,
		ID:         ballot.ID,
		ElectionID: ballot.ElectionID,
	})
	return nil
}

// HasVoted reports whether a ballot exists for the pair.
func (db *DB) HasVoted(ctx context.Context, userID, electionID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ballots WHERE user_id = ? AND election_id = ?)`,
		userID, electionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking ballot (user=%s, election=%s): %w", userID, electionID, err)
	}
	return exists, nil
}

// ListBallots returns matching ballots in cast order.
func (db *DB) ListBallots(ctx context.Context, filter repository.BallotFilter) ([]model.Ballot, error) {
	where, args := ballotWhere(filter)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+ballotColumns+` FROM ballots`+where+` ORDER BY cast_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ballots: %w", err)
	}
	defer rows.Close()

	ballots := []model.Ballot{}
	for rows.Next() {
		var b model.Ballot
		err := rows.Scan(
			&b.ID,
			&b.UserID,
			&b.ElectionID,
			&b.Candidate.ID,
			&b.Candidate.Name,
			&b.Candidate.Image,
			&b.Candidate.Faculty,
			&b.Candidate.Level,
			&b.VoterName,
			&b.CastAt,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning ballot row: %w", err)
		}
		ballots = append(ballots, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ballots: %w", err)
	}
	return ballots, nil
}

func (db *DB) CountBallots(ctx context.Context, filter repository.BallotFilter) (int, error) {
	where, args := ballotWhere(filter)

	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM ballots`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting ballots: %w", err)
	}
	return n, nil
}

func ballotWhere(filter repository.BallotFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.ElectionID != "" {
		where = append(where, "election_id = ?")
		args = append(args, filter.ElectionID)
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}
