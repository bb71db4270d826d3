package model

import (
	"errors"
	"strings"
	"time"
)

// User is an account that can comment, chat, and redeem codes. Email is the
// identity key used for like deduplication and quota tracking.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	Name           string    `db:"name" json:"name"`
	PasswordHashed string    `db:"password_hashed" json:"-"`
	AvatarURL      *string   `db:"avatar_url" json:"avatar_url"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Identity is the authenticated caller extracted from the access token.
// Trusted write paths derive the author from this, never from the body.
type Identity struct {
	UserID int64
	Name   string
	Email  string
}

// Key returns the per-user identity key used by likes and quotas.
func (i Identity) Key() string {
	return strings.ToLower(i.Email)
}

// RegisterRequest is the request body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailExists is returned when registering an email that is taken
	ErrEmailExists = errors.New("email already registered")

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")
)
