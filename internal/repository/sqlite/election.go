package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
)

var _ repository.ElectionRepository = (*DB)(nil)

const electionColumns = `id, election_name, faculty, start_date, end_date, image,
	admin_id, created_at, updated_at`

// CreateElection inserts an election and its roster in one transaction.
// Candidates without an ID get one.
func (db *DB) CreateElection(ctx context.Context, election *model.Election) error {
	now := db.now()
	election.ID = xid.New().String()
	election.StartDate = election.StartDate.UTC()
	election.EndDate = election.EndDate.UTC()
	election.CreatedAt = now
	election.UpdatedAt = now
	assignCandidateIDs(election.Candidates)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO elections (`+electionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		election.ID,
		election.ElectionName,
		election.Faculty,
		election.StartDate,
		election.EndDate,
		election.Image,
		election.AdminID,
		election.CreatedAt,
		election.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting election: %w", err)
	}

	if err := insertCandidates(ctx, tx, election.ID, election.Candidates); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing election %s: %w", election.ID, err)
	}

	db.feed.publish(model.Change{
		Collection: model.CollectionElections,
		Op:         model.ChangeInsert,
		ID:         election.ID,
		ElectionID: election.ID,
	})
	return nil
}

// GetElectionByID returns the election with its roster in stored order.
func (db *DB) GetElectionByID(ctx context.Context, id string) (*model.Election, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+electionColumns+` FROM elections WHERE id = ?`, id)

	e, err := scanElection(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("election", id)
		}
		return nil, fmt.Errorf("sqlite: getting election %s: %w", id, err)
	}

	rosters, err := db.loadCandidates(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	e.Candidates = rosters[id]
	if e.Candidates == nil {
		e.Candidates = []model.Candidate{}
	}
	return e, nil
}

// ListElections returns elections newest first.
//
// Rosters are loaded with a second query after the first result set is
// closed; the pool has a single connection.
func (db *DB) ListElections(ctx context.Context, filter repository.ElectionFilter) ([]model.Election, error) {
	var (
		where []string
		args  []any
	)
	if filter.AdminID != "" {
		where = append(where, "admin_id = ?")
		args = append(args, filter.AdminID)
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []model.Election{}, nil
		}
		where = append(where, "id IN ("+placeholders(len(filter.IDs))+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}

	query := `SELECT ` + electionColumns + ` FROM elections`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	elections, err := db.queryElections(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(elections) == 0 {
		return elections, nil
	}

	ids := make([]string, len(elections))
	for i := range elections {
		ids[i] = elections[i].ID
	}
	rosters, err := db.loadCandidates(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range elections {
		elections[i].Candidates = rosters[elections[i].ID]
		if elections[i].Candidates == nil {
			elections[i].Candidates = []model.Candidate{}
		}
	}
	return elections, nil
}

// UpdateElection replaces the election's fields and its whole roster.
// Existing ballots are untouched; their candidate snapshots keep the names
// they were cast with.
func (db *DB) UpdateElection(ctx context.Context, election *model.Election) error {
	election.StartDate = election.StartDate.UTC()
	election.EndDate = election.EndDate.UTC()
	election.UpdatedAt = db.now()
	assignCandidateIDs(election.Candidates)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	result, err := tx.ExecContext(ctx,
		`UPDATE elections
		 SET election_name = ?, faculty = ?, start_date = ?, end_date = ?, image = ?, updated_at = ?
		 WHERE id = ?`,
		election.ElectionName,
		election.Faculty,
		election.StartDate,
		election.EndDate,
		election.Image,
		election.UpdatedAt,
		election.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating election %s: %w", election.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("election", election.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE election_id = ?`, election.ID); err != nil {
		return fmt.Errorf("sqlite: clearing roster of %s: %w", election.ID, err)
	}
	if err := insertCandidates(ctx, tx, election.ID, election.Candidates); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing election %s: %w", election.ID, err)
	}

	db.feed.publish(model.Change{
		Collection: model.CollectionElections,
		Op:         model.ChangeUpdate,
		ID:         election.ID,
		ElectionID: election.ID,
	})
	return nil
}

// DeleteElection removes the election. Its roster and ballots go with it
// (ON DELETE CASCADE).
func (db *DB) DeleteElection(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM elections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting election %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("election", id)
	}

	db.feed.publish(model.Change{
		Collection: model.CollectionElections,
		Op:         model.ChangeDelete,
		ID:         id,
		ElectionID: id,
	})
	return nil
}

func (db *DB) queryElections(ctx context.Context, query string, args ...any) ([]model.Election, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing elections: %w", err)
	}
	defer rows.Close()

	elections := []model.Election{}
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning election row: %w", err)
		}
		elections = append(elections, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating elections: %w", err)
	}
	return elections, nil
}

// loadCandidates returns the rosters of the given elections keyed by
// election ID, each in position order.
func (db *DB) loadCandidates(ctx context.Context, electionIDs []string) (map[string][]model.Candidate, error) {
	args := make([]any, len(electionIDs))
	for i, id := range electionIDs {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT election_id, id, name, image, faculty, level
		 FROM candidates
		 WHERE election_id IN (`+placeholders(len(electionIDs))+`)
		 ORDER BY election_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading candidates: %w", err)
	}
	defer rows.Close()

	rosters := make(map[string][]model.Candidate, len(electionIDs))
	for rows.Next() {
		var (
			electionID string
			c          model.Candidate
		)
		if err := rows.Scan(&electionID, &c.ID, &c.Name, &c.Image, &c.Faculty, &c.Level); err != nil {
			return nil, fmt.Errorf("sqlite: scanning candidate row: %w", err)
		}
		rosters[electionID] = append(rosters[electionID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating candidates: %w", err)
	}
	return rosters, nil
}

func insertCandidates(ctx context.Context, tx *sql.Tx, electionID string, candidates []model.Candidate) error {
	for i, c := range candidates {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO candidates (election_id, position, id, name, image, faculty, level)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			electionID, i, c.ID, c.Name, c.Image, c.Faculty, c.Level,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return apperror.MalformedElection("candidates",
					fmt.Sprintf("candidate %q appears more than once", c.Name))
			}
			return fmt.Errorf("sqlite: inserting candidate %q: %w", c.Name, err)
		}
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

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanElection(s scanner) (*model.Election, error) {
	var e model.Election
	err := s.Scan(
		&e.ID,
		&e.ElectionName,
		&e.Faculty,
		&e.StartDate,
		&e.EndDate,
		&e.Image,
		&e.AdminID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
