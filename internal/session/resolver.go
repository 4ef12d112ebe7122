// Package session binds an incoming request to a verified user identity.
// It owns the temporal and account-state checks the token verifier
// deliberately leaves out.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/clavis-iam/clavis-iam/internal/rbac"
	"github.com/clavis-iam/clavis-iam/internal/token"
)

// The distinct failure modes of Resolve, in check order.
var (
	// ErrTokenMissing indicates no token was presented at all.
	ErrTokenMissing = errors.New("session: token missing")
	// ErrSubjectMissing indicates an authentic token without a usable subject.
	ErrSubjectMissing = errors.New("session: token subject missing")
	// ErrTokenExpired indicates an authentic token past its expiry.
	ErrTokenExpired = errors.New("session: token expired")
	// ErrUserInactive indicates the subject references no active account.
	ErrUserInactive = errors.New("session: inactive or unknown user")
)

// Verifier proves the authenticity of a raw token.
type Verifier interface {
	Verify(raw string) (token.Claims, error)
}

// Directory resolves live account state for the token subject.
type Directory interface {
	Account(ctx context.Context, userID int64) (rbac.Account, error)
}

// Resolver turns a raw bearer token into a trusted user id.
type Resolver struct {
	verifier  Verifier
	directory Directory
}

// NewResolver constructs a Resolver.
func NewResolver(verifier Verifier, directory Directory) *Resolver {
	return &Resolver{verifier: verifier, directory: directory}
}

// Resolve runs the five checks in order: presence, authenticity,
// subject, expiry, account state. Authenticity comes before any
// storage lookup so forged tokens never cost a round trip.
func (r *Resolver) Resolve(ctx context.Context, raw string) (int64, error) {
	if raw == "" {
		return 0, ErrTokenMissing
	}

	claims, err := r.verifier.Verify(raw)
	if err != nil {
		return 0, err
	}

	if claims.Subject == "" {
		return 0, ErrSubjectMissing
	}
	subjectID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrSubjectMissing
	}

	if claims.ExpiresAt.IsZero() || !claims.ExpiresAt.After(time.Now()) {
		return 0, ErrTokenExpired
	}

	account, err := r.directory.Account(ctx, subjectID)
	if err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			return 0, ErrUserInactive
		}
		return 0, fmt.Errorf("session: resolve account: %w", err)
	}
	if !account.Active {
		return 0, ErrUserInactive
	}

	return subjectID, nil
}
