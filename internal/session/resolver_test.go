package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clavis-iam/clavis-iam/internal/rbac"
	"github.com/clavis-iam/clavis-iam/internal/token"
)

type stubDirectory struct {
	accounts map[int64]rbac.Account
}

func (d *stubDirectory) Account(ctx context.Context, userID int64) (rbac.Account, error) {
	account, ok := d.accounts[userID]
	if !ok {
		return rbac.Account{}, rbac.ErrUserNotFound
	}
	return account, nil
}

type stubVerifier struct {
	claims token.Claims
	err    error
}

func (v stubVerifier) Verify(raw string) (token.Claims, error) {
	return v.claims, v.err
}

func activeDirectory() *stubDirectory {
	return &stubDirectory{accounts: map[int64]rbac.Account{
		42: {ID: 42, Role: rbac.RoleUser, Active: true},
		7:  {ID: 7, Role: rbac.RoleViewer, Active: false},
	}}
}

func newIssuer(t *testing.T, ttl time.Duration) *token.Issuer {
	t.Helper()
	issuer, err := token.NewIssuer(token.Config{Secret: "resolver-test-secret", TTL: ttl})
	require.NoError(t, err)
	return issuer
}

func TestResolveHappyPath(t *testing.T) {
	issuer := newIssuer(t, 30*time.Minute)
	resolver := NewResolver(issuer, activeDirectory())

	raw, err := issuer.Mint(42)
	require.NoError(t, err)

	userID, err := resolver.Resolve(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)
}

func TestResolveEmptyToken(t *testing.T) {
	resolver := NewResolver(newIssuer(t, time.Minute), activeDirectory())

	_, err := resolver.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrTokenMissing)
}

func TestResolveForgedToken(t *testing.T) {
	issuer := newIssuer(t, time.Minute)
	resolver := NewResolver(issuer, activeDirectory())

	other, err := token.NewIssuer(token.Config{Secret: "some-other-secret"})
	require.NoError(t, err)
	raw, err := other.Mint(42)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), raw)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

// An authentic token past its expiry still verifies but must not open a
// session.
func TestResolveExpiredToken(t *testing.T) {
	issuer := newIssuer(t, time.Nanosecond)
	resolver := NewResolver(issuer, activeDirectory())

	raw, err := issuer.Mint(42)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	claims, err := issuer.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "42", claims.Subject)

	_, err = resolver.Resolve(context.Background(), raw)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestResolveSubjectMissing(t *testing.T) {
	dir := activeDirectory()
	future := time.Now().Add(time.Hour)

	for name, claims := range map[string]token.Claims{
		"empty subject":       {Subject: "", ExpiresAt: future},
		"non-numeric subject": {Subject: "alice", ExpiresAt: future},
	} {
		resolver := NewResolver(stubVerifier{claims: claims}, dir)
		_, err := resolver.Resolve(context.Background(), "whatever")
		require.ErrorIs(t, err, ErrSubjectMissing, name)
	}
}

func TestResolveMissingExpiryClaim(t *testing.T) {
	resolver := NewResolver(stubVerifier{claims: token.Claims{Subject: "42"}}, activeDirectory())

	_, err := resolver.Resolve(context.Background(), "whatever")
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestResolveInactiveOrUnknownUser(t *testing.T) {
	issuer := newIssuer(t, time.Minute)
	resolver := NewResolver(issuer, activeDirectory())

	// Valid token for a user that was since deactivated.
	raw, err := issuer.Mint(7)
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), raw)
	require.ErrorIs(t, err, ErrUserInactive)

	// Valid token for a user that no longer exists at all.
	raw, err = issuer.Mint(1000)
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), raw)
	require.ErrorIs(t, err, ErrUserInactive)
}
