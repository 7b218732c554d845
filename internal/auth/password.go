package auth

import (
	"errors"
	"fmt"

	"github.com/sakif/campus-ballot/internal/apperror"
	"golang.org/x/crypto/bcrypt"
)

// Password length limits. bcrypt silently truncates input past 72 bytes,
// so longer passwords are rejected rather than cut.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

// defaultCost is the bcrypt work factor: about 250ms per hash on current
// server hardware.
const defaultCost = 12

// errInvalidCredentials is shared by every login failure so responses do
// not reveal whether the email exists.
var errInvalidCredentials = apperror.Unauthorized("invalid email or password")

// PasswordService hashes and verifies account passwords with bcrypt.
//
// The cost is a field so tests can run at bcrypt.MinCost.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom cost.
// Do NOT use in production; pass bcrypt.MinCost (4) in tests.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// CheckStrength validates a candidate password's length.
func CheckStrength(plaintext string) error {
	switch {
	case len(plaintext) < MinPasswordLength:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	case len(plaintext) > MaxPasswordLength:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordLength))
	}
	return nil
}

// Hash validates and hashes plaintext. The result embeds salt and cost:
//
//	$2a$12$<22-char salt><31-char hash>
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if err := CheckStrength(plaintext); err != nil {
		return "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash and an
// apperror.ErrUnauthorized error when it does not. The comparison is
// constant-time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return errInvalidCredentials
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// InvalidCredentials is the error login returns for an unknown email, so
// it is indistinguishable from a wrong password.
func InvalidCredentials() error {
	return errInvalidCredentials
}
