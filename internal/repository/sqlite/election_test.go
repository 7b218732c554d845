package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
)

func TestCreateElection(t *testing.T) {
	db := newTestDB(t)

	e := createTestElection(t, db, "SRC President", "Ama", "Kofi", "Esi")

	if e.ID == "" {
		t.Fatal("CreateElection() did not set ID")
	}
	for i, c := range e.Candidates {
		if c.ID == "" {
			t.Errorf("candidate %d has no ID", i)
		}
	}
}

func TestGetElectionByID_RosterOrder(t *testing.T) {
	db := newTestDB(t)
	created := createTestElection(t, db, "SRC President", "Zed", "Ama", "Kofi")

	got, err := db.GetElectionByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetElectionByID() error = %v", err)
	}

	want := []string{"Zed", "Ama", "Kofi"}
	if len(got.Candidates) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got.Candidates), len(want))
	}
	for i, name := range want {
		if got.Candidates[i].Name != name {
			t.Errorf("Candidates[%d].Name = %q, want %q", i, got.Candidates[i].Name, name)
		}
		if got.Candidates[i].ID != created.Candidates[i].ID {
			t.Errorf("Candidates[%d].ID changed on read", i)
		}
	}
	if !got.StartDate.Equal(created.StartDate) || !got.EndDate.Equal(created.EndDate) {
		t.Errorf("dates = %v..%v, want %v..%v", got.StartDate, got.EndDate, created.StartDate, created.EndDate)
	}
}

func TestGetElectionByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetElectionByID(context.Background(), "missing")

	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetElectionByID() error = %v, want ErrNotFound", err)
	}
}

func TestCreateElection_DuplicateCandidateName(t *testing.T) {
	db := newTestDB(t)

	e := &model.Election{
		ElectionName: "Dup",
		Faculty:      model.FacultyAll,
		StartDate:    t0,
		EndDate:      t0.Add(time.Hour),
		Candidates:   []model.Candidate{{Name: "A"}, {Name: "A"}},
	}
	err := db.CreateElection(context.Background(), e)

	if !errors.Is(err, apperror.ErrMalformedElection) {
		t.Fatalf("CreateElection() error = %v, want ErrMalformedElection", err)
	}

	// The transaction rolled back: no half-written election remains.
	list, err := db.ListElections(context.Background(), repository.ElectionFilter{})
	if err != nil {
		t.Fatalf("ListElections() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("ListElections() returned %d elections after failed create, want 0", len(list))
	}
}

func TestListElections(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tick := t0
	db.clock = func() time.Time { tick = tick.Add(time.Second); return tick }

	first := createTestElection(t, db, "First", "A")
	second := createTestElection(t, db, "Second", "B", "C")

	other := &model.Election{
		ElectionName: "Other admin",
		Faculty:      model.FacultyAll,
		StartDate:    t0,
		EndDate:      t0.Add(time.Hour),
		AdminID:      "admin-2",
		Candidates:   []model.Candidate{{Name: "X"}},
	}
	if err := db.CreateElection(ctx, other); err != nil {
		t.Fatalf("CreateElection() error = %v", err)
	}

	all, err := db.ListElections(ctx, repository.ElectionFilter{})
	if err != nil {
		t.Fatalf("ListElections() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListElections() returned %d, want 3", len(all))
	}
	if all[0].ID != other.ID || all[2].ID != first.ID {
		t.Errorf("ListElections() not ordered newest first: %s, %s, %s", all[0].ElectionName, all[1].ElectionName, all[2].ElectionName)
	}
	if len(all[1].Candidates) != 2 {
		t.Errorf("second election has %d candidates, want 2", len(all[1].Candidates))
	}

	mine, err := db.ListElections(ctx, repository.ElectionFilter{AdminID: "admin-1"})
	if err != nil {
		t.Fatalf("ListElections(AdminID) error = %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("ListElections(AdminID) returned %d, want 2", len(mine))
	}

	byID, err := db.ListElections(ctx, repository.ElectionFilter{IDs: []string{second.ID}})
	if err != nil {
		t.Fatalf("ListElections(IDs) error = %v", err)
	}
	if len(byID) != 1 || byID[0].ID != second.ID {
		t.Errorf("ListElections(IDs) = %+v, want only %s", byID, second.ID)
	}

	none, err := db.ListElections(ctx, repository.ElectionFilter{IDs: []string{}})
	if err != nil {
		t.Fatalf("ListElections(empty IDs) error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListElections(empty IDs) returned %d, want 0", len(none))
	}
}

func TestUpdateElection_ReplacesRosterKeepsBallots(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	e := createTestElection(t, db, "SRC President", "A", "B")
	user := createTestUser(t, db, "v@campus.edu")

	if err := db.InsertBallot(ctx, &model.Ballot{UserID: user.ID, ElectionID: e.ID, Candidate: e.Candidates[0]}); err != nil {
		t.Fatalf("InsertBallot() error = %v", err)
	}

	keptID := e.Candidates[1].ID
	e.ElectionName = "SRC President 2026"
	e.Candidates = []model.Candidate{{Name: "A2"}, e.Candidates[1]}
	if err := db.UpdateElection(ctx, e); err != nil {
		t.Fatalf("UpdateElection() error = %v", err)
	}

	got, err := db.GetElectionByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetElectionByID() error = %v", err)
	}
	if got.ElectionName != "SRC President 2026" {
		t.Errorf("ElectionName = %q", got.ElectionName)
	}
	if got.Candidates[0].Name != "A2" || got.Candidates[1].ID != keptID {
		t.Errorf("roster = %+v", got.Candidates)
	}

	ballots, err := db.ListBallots(ctx, repository.BallotFilter{ElectionID: e.ID})
	if err != nil {
		t.Fatalf("ListBallots() error = %v", err)
	}
	if len(ballots) != 1 || ballots[0].Candidate.Name != "A" {
		t.Errorf("ballot snapshot changed: %+v", ballots)
	}
}

func TestUpdateElection_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateElection(context.Background(), &model.Election{ID: "missing"})

	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateElection() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteElection_CascadesBallots(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	e := createTestElection(t, db, "SRC President", "A")
	user := createTestUser(t, db, "v@campus.edu")

	if err := db.InsertBallot(ctx, &model.Ballot{UserID: user.ID, ElectionID: e.ID, Candidate: e.Candidates[0]}); err != nil {
		t.Fatalf("InsertBallot() error = %v", err)
	}

	if err := db.DeleteElection(ctx, e.ID); err != nil {
		t.Fatalf("DeleteElection() error = %v", err)
	}

	n, err := db.CountBallots(ctx, repository.BallotFilter{ElectionID: e.ID})
	if err != nil {
		t.Fatalf("CountBallots() error = %v", err)
	}
	if n != 0 {
		t.Errorf("CountBallots() after delete = %d, want 0", n)
	}

	if err := db.DeleteElection(ctx, e.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteElection() error = %v, want ErrNotFound", err)
	}
}
