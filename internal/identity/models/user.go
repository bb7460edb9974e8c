package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/email"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
	MinPasswordLen = 8
	// bcrypt ignores input beyond 72 bytes.
	MaxPasswordLen = 72
)

// User is a registered account. PasswordHash is opaque outside this module.
type User struct {
	ID           id.UserID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NewUser validates invariants and builds a User.
func NewUser(userID id.UserID, username, address, passwordHash string, now time.Time) (*User, error) {
	username = strings.TrimSpace(username)
	address = email.Normalize(address)

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user id is required")
	}
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "username must be between 3 and 50 characters")
	}
	if !email.IsValid(address) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email is invalid")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	return &User{
		ID:           userID,
		Username:     username,
		Email:        address,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}
