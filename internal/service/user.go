package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/auth"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
)

const (
	MaxFullNameLength = 100
	MaxFieldLength    = 120
)

// UserService handles accounts: registration, login, profile edits and
// admin user management.
//
// DEPENDENCIES (injected via NewUserService):
//   - users      repository.UserRepository → read/write user records
//   - tokens     *auth.TokenService        → issue JWTs on login
//   - passwords  *auth.PasswordService     → bcrypt hashing
type UserService struct {
	base
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
}

func NewUserService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
	opts Options,
) *UserService {
	return &UserService{
		base:      newBase(opts, logger),
		users:     users,
		tokens:    tokens,
		passwords: passwords,
	}
}

// RegisterInput is what a new account supplies.
type RegisterInput struct {
	FullName     string
	Email        string
	Password     string
	UserType     model.UserType
	Faculty      string
	Level        string
	IndexNumber  string
	ProfileImage string
}

// AuthResult bundles the user and the issued JWT so the handler can
// respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register validates the input, hashes the password and stores a new
// account with status "pending". A taken email yields apperror.ErrConflict.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	user := &model.User{
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		UserType:     in.UserType,
		Faculty:      strings.TrimSpace(in.Faculty),
		Level:        strings.TrimSpace(in.Level),
		IndexNumber:  strings.TrimSpace(in.IndexNumber),
		ProfileImage: strings.TrimSpace(in.ProfileImage),
		Status:       model.UserStatusPending,
	}
	if user.UserType == "" {
		user.UserType = model.UserTypeVoter
	}

	if err := validateProfile(user); err != nil {
		return nil, err
	}
	if err := validateEmail(user.Email); err != nil {
		return nil, err
	}
	if !user.UserType.Valid() {
		return nil, apperror.ValidationFailed("userType", fmt.Sprintf("unknown user type %q", in.UserType))
	}
	if user.UserType == model.UserTypeVoter && user.Faculty == "" {
		return nil, apperror.ValidationFailed("faculty", "faculty is required for voters")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := writeStore(ctx, &s.base, "create user", func(ctx context.Context) error {
		return s.users.CreateUser(ctx, user)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("userType", string(user.UserType)),
	)
	return user, nil
}

// Login checks the credentials and issues a token carrying the user's role.
// Unknown email and wrong password return the same Unauthorized error.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}

	user, err := readStore(ctx, &s.base, "get user by email", func(ctx context.Context) (*model.User, error) {
		return s.users.GetUserByEmail(ctx, email)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, auth.InvalidCredentials()
		}
		return nil, err
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Info("login rejected", slog.String("userID", user.ID))
		return nil, err
	}

	token, err := s.tokens.Generate(user.ID, user.UserType)
	if err != nil {
		return nil, fmt.Errorf("service/user: generating token for %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// Get returns the user with the given ID.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return readStore(ctx, &s.base, "get user", func(ctx context.Context) (*model.User, error) {
		return s.users.GetUserByID(ctx, id)
	})
}

// CurrentRole returns the stored role of a user. Request authorization uses
// it instead of the role inside the token.
func (s *UserService) CurrentRole(ctx context.Context, id string) (model.UserType, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return user.UserType, nil
}

// ProfileUpdate carries self-service edits. Nil fields are left unchanged.
type ProfileUpdate struct {
	FullName     *string
	Faculty      *string
	Level        *string
	IndexNumber  *string
	ProfileImage *string
}

// UpdateProfile applies a user's edits to their own account. Role, status
// and email are not self-editable.
func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	apply(&user.FullName, in.FullName)
	apply(&user.Faculty, in.Faculty)
	apply(&user.Level, in.Level)
	apply(&user.IndexNumber, in.IndexNumber)
	apply(&user.ProfileImage, in.ProfileImage)

	if err := validateProfile(user); err != nil {
		return nil, err
	}
	if user.UserType == model.UserTypeVoter && user.Faculty == "" {
		return nil, apperror.ValidationFailed("faculty", "faculty is required for voters")
	}

	if err := writeStore(ctx, &s.base, "update user", func(ctx context.Context) error {
		return s.users.UpdateUser(ctx, user)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", slog.String("userID", user.ID))
	return user, nil
}

// UserQuery narrows List. Search matches name, email, faculty, level and
// index number, case-insensitively.
type UserQuery struct {
	UserType model.UserType
	Search   string
}

func (s *UserService) List(ctx context.Context, q UserQuery) ([]model.User, error) {
	if q.UserType != "" && !q.UserType.Valid() {
		return nil, apperror.ValidationFailed("type", fmt.Sprintf("unknown user type %q", q.UserType))
	}

	users, err := readStore(ctx, &s.base, "list users", func(ctx context.Context) ([]model.User, error) {
		return s.users.ListUsers(ctx, repository.UserFilter{UserType: q.UserType})
	})
	if err != nil {
		return nil, err
	}

	term := strings.ToLower(strings.TrimSpace(q.Search))
	if term == "" {
		return users, nil
	}
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if userMatches(&u, term) {
			out = append(out, u)
		}
	}
	return out, nil
}

// RoleUpdate is an admin's change to an account. Nil fields are left
// unchanged.
type RoleUpdate struct {
	UserType *model.UserType
	Status   *model.UserStatus
	Faculty  *string
}

// AdminUpdate sets a user's role, approval status or faculty. An admin
// cannot change their own role, so the last admin cannot lock everyone out.
// A voter must end up with a faculty, so demoting a faculty-less admin
// needs Faculty set in the same update.
func (s *UserService) AdminUpdate(ctx context.Context, actorID, id string, in RoleUpdate) (*model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.UserType != nil {
		if !in.UserType.Valid() {
			return nil, apperror.ValidationFailed("userType", fmt.Sprintf("unknown user type %q", *in.UserType))
		}
		if id == actorID && *in.UserType != user.UserType {
			return nil, apperror.Forbidden("admins cannot change their own role")
		}
		user.UserType = *in.UserType
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperror.ValidationFailed("status", fmt.Sprintf("unknown status %q", *in.Status))
		}
		user.Status = *in.Status
	}
	if in.Faculty != nil {
		user.Faculty = strings.TrimSpace(*in.Faculty)
		if len(user.Faculty) > MaxFieldLength {
			return nil, apperror.ValidationFailed("faculty",
				fmt.Sprintf("faculty must be %d characters or less", MaxFieldLength))
		}
	}
	if user.UserType == model.UserTypeVoter && user.Faculty == "" {
		return nil, apperror.ValidationFailed("faculty", "faculty is required for voters")
	}

	if err := writeStore(ctx, &s.base, "update user", func(ctx context.Context) error {
		return s.users.UpdateUser(ctx, user)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("user updated by admin",
		slog.String("userID", user.ID),
		slog.String("actorID", actorID),
		slog.String("userType", string(user.UserType)),
		slog.String("status", string(user.Status)),
		slog.String("faculty", user.Faculty),
	)
	return user, nil
}

// Delete removes an account. Ballots the user cast are kept.
func (s *UserService) Delete(ctx context.Context, actorID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "user ID is required")
	}
	if id == actorID {
		return apperror.Forbidden("admins cannot delete their own account")
	}

	if err := writeStore(ctx, &s.base, "delete user", func(ctx context.Context) error {
		return s.users.DeleteUser(ctx, id)
	}); err != nil {
		return err
	}

	s.logger.Info("user deleted", slog.String("userID", id), slog.String("actorID", actorID))
	return nil
}

func validateProfile(u *model.User) error {
	if u.FullName == "" {
		return apperror.ValidationFailed("fullName", "full name is required")
	}
	if len(u.FullName) > MaxFullNameLength {
		return apperror.ValidationFailed("fullName",
			fmt.Sprintf("full name must be %d characters or less", MaxFullNameLength))
	}
	for _, f := range []struct{ name, value string }{
		{"faculty", u.Faculty},
		{"level", u.Level},
		{"indexNumber", u.IndexNumber},
	} {
		if len(f.value) > MaxFieldLength {
			return apperror.ValidationFailed(f.name,
				fmt.Sprintf("%s must be %d characters or less", f.name, MaxFieldLength))
		}
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperror.ValidationFailed("email", "invalid email format")
	}
	return nil
}

func userMatches(u *model.User, lowerTerm string) bool {
	for _, f := range []string{u.FullName, u.Email, u.Faculty, u.Level, u.IndexNumber} {
		if strings.Contains(strings.ToLower(f), lowerTerm) {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
