package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
)

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	user := createTestUser(t, db, "ama@campus.edu")

	if user.ID == "" {
		t.Error("CreateUser() did not set user.ID")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("CreateUser() did not set timestamps")
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "ama@campus.edu")

	dup := &model.User{
		FullName: "Other",
		Email:    "AMA@campus.edu",
		UserType: model.UserTypeVoter,
		Status:   model.UserStatusPending,
	}
	err := db.CreateUser(context.Background(), dup)

	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateUser() with taken email error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// READ TESTS
// =========================================================================

func TestGetUserByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "kofi@campus.edu")

	got, err := db.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}

	if got.Email != created.Email {
		t.Errorf("Email = %q, want %q", got.Email, created.Email)
	}
	if got.UserType != model.UserTypeVoter {
		t.Errorf("UserType = %q, want %q", got.UserType, model.UserTypeVoter)
	}
	if got.PasswordHash != created.PasswordHash {
		t.Error("PasswordHash was not persisted")
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nope")

	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "esi@campus.edu")

	got, err := db.GetUserByEmail(context.Background(), "ESI@Campus.edu")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}
}

func TestListUsers_Filter(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "a@campus.edu")
	createTestUser(t, db, "b@campus.edu")

	admin := &model.User{
		FullName: "Admin",
		Email:    "admin@campus.edu",
		UserType: model.UserTypeAdmin,
		Status:   model.UserStatusApproved,
	}
	if err := db.CreateUser(context.Background(), admin); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	tests := []struct {
		name   string
		filter repository.UserFilter
		want   int
	}{
		{"no filter", repository.UserFilter{}, 3},
		{"voters", repository.UserFilter{UserType: model.UserTypeVoter}, 2},
		{"admins", repository.UserFilter{UserType: model.UserTypeAdmin}, 1},
		{"approved", repository.UserFilter{Status: model.UserStatusApproved}, 1},
		{"approved voters", repository.UserFilter{UserType: model.UserTypeVoter, Status: model.UserStatusApproved}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := db.ListUsers(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("ListUsers() error = %v", err)
			}
			if len(users) != tt.want {
				t.Errorf("ListUsers() returned %d users, want %d", len(users), tt.want)
			}
		})
	}
}

// =========================================================================
// UPDATE / DELETE TESTS
// =========================================================================

func TestUpdateUser(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "yaw@campus.edu")

	user.Status = model.UserStatusApproved
	user.UserType = model.UserTypeAdmin
	if err := db.UpdateUser(context.Background(), user); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	got, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Status != model.UserStatusApproved || got.UserType != model.UserTypeAdmin {
		t.Errorf("after update got status=%q type=%q", got.Status, got.UserType)
	}
}

func TestUpdateUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateUser(context.Background(), &model.User{ID: "missing"})

	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateUser() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteUser_KeepsBallots(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "abena@campus.edu")
	e := createTestElection(t, db, "SRC President", "A", "B")

	ballot := &model.Ballot{UserID: user.ID, ElectionID: e.ID, Candidate: e.Candidates[0]}
	if err := db.InsertBallot(ctx, ballot); err != nil {
		t.Fatalf("InsertBallot() error = %v", err)
	}

	if err := db.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if _, err := db.GetUserByID(ctx, user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() after delete error = %v, want ErrNotFound", err)
	}

	n, err := db.CountBallots(ctx, repository.BallotFilter{ElectionID: e.ID})
	if err != nil {
		t.Fatalf("CountBallots() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountBallots() = %d, want 1", n)
	}
}

func TestDeleteUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.DeleteUser(context.Background(), "missing")

	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteUser() error = %v, want ErrNotFound", err)
	}
}
