package models

import (
	"strings"
	"time"

	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/email"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = email.Normalize(r.Email)
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" {
		r.Username = email.DeriveUsername(r.Email)
	}
}

func (r *RegisterRequest) Validate() error {
	if !email.IsValid(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	if len(r.Password) < MinPasswordLen {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if len(r.Password) > MaxPasswordLen {
		return dErrors.New(dErrors.CodeValidation, "password must be at most 72 bytes")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = email.Normalize(r.Email)
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "email and password are required")
	}
	return nil
}

// UserResponse is the public projection of a User.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// DirectoryEntry is how other users appear in the user directory. Email
// addresses are only shown to their owner.
type DirectoryEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func ToDirectoryEntry(u *User) DirectoryEntry {
	return DirectoryEntry{ID: u.ID.String(), Username: u.Username}
}

// TokenResult is returned by a successful login.
type TokenResult struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        UserResponse `json:"user"`
}
