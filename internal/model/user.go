// Package model defines the data structures used throughout the application.
package model

import "time"

// UserType is the role a user registered with.
type UserType string

const (
	UserTypeVoter UserType = "voter"
	UserTypeAdmin UserType = "admin"
)

// Valid reports whether t is a known role.
func (t UserType) Valid() bool {
	return t == UserTypeVoter || t == UserTypeAdmin
}

// UserStatus tracks admin approval of an account.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusApproved UserStatus = "approved"
)

func (s UserStatus) Valid() bool {
	return s == UserStatusPending || s == UserStatusApproved
}

// User represents a registered account.
//
// Email is unique across users. PasswordHash is a bcrypt hash and is never
// serialised to JSON.
type User struct {
	ID           string     `json:"id"           bson:"_id"`
	FullName     string     `json:"fullName"     bson:"fullName"`
	Email        string     `json:"email"        bson:"email"`
	PasswordHash string     `json:"-"            bson:"passwordHash"`
	UserType     UserType   `json:"userType"     bson:"userType"`
	Faculty      string     `json:"faculty"      bson:"faculty"`
	Level        string     `json:"level"        bson:"level"`
	IndexNumber  string     `json:"indexNumber"  bson:"indexNumber"`
	Status       UserStatus `json:"status"       bson:"status"`
	ProfileImage string     `json:"profileImage" bson:"profileImage"`
	CreatedAt    time.Time  `json:"createdAt"    bson:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"    bson:"updatedAt"`
}

// IsAdmin reports whether the user manages elections.
func (u *User) IsAdmin() bool {
	return u.UserType == UserTypeAdmin
}
