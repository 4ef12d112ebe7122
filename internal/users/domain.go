// Package users is the credential store: user identities, hashed
// credentials, account state and role assignment.
package users

import (
	"errors"
	"time"

	"github.com/clavis-iam/clavis-iam/internal/rbac"
)

// User represents a user account. PasswordHash never leaves this package.
type User struct {
	ID           int64
	Name         string
	Surname      string
	Email        string
	PasswordHash string
	Role         rbac.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Sentinel errors for account operations.
var (
	// ErrEmailTaken rejects registration with an already-registered email.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrUserNotFound indicates the addressed account is unknown or removed.
	ErrUserNotFound = errors.New("users: user not found or removed")
	// ErrInvalidCredentials is the uniform login failure: unknown email,
	// wrong password and deactivated account are indistinguishable.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrPasswordMismatch indicates password and confirmation differ.
	ErrPasswordMismatch = errors.New("users: passwords do not match")
)
