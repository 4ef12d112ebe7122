package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(Config{Secret: "test-signing-secret", Algorithm: "HS256"})
	require.NoError(t, err)
	return issuer
}

func TestMintVerifyRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	raw, err := issuer.Mint(42)
	require.NoError(t, err)

	claims, err := issuer.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "42", claims.Subject)
	require.Equal(t, TypeAccess, claims.TokenType)
	require.NotEmpty(t, claims.ID)
	require.Equal(t, 30*time.Minute, claims.ExpiresAt.Sub(claims.IssuedAt))
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	issuer := newTestIssuer(t)

	raw, err := issuer.Mint(7)
	require.NoError(t, err)

	// Flip one byte in each token segment. Every mutation must fail with
	// the same uniform error as outright garbage.
	mutations := []string{
		"x" + raw[1:],
		raw[:len(raw)-1] + "x",
		strings.Replace(raw, ".", ".A", 1),
		"not-a-token",
		"",
	}
	for _, mutated := range mutations {
		_, err := issuer.Verify(mutated)
		require.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewIssuer(Config{Secret: "a-different-secret"})
	require.NoError(t, err)

	raw, err := other.Mint(7)
	require.NoError(t, err)

	_, err = issuer.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	issuer := newTestIssuer(t)

	// Same secret, different HMAC variant: method mismatch must not verify.
	hs512, err := NewIssuer(Config{Secret: "test-signing-secret", Algorithm: "HS512"})
	require.NoError(t, err)
	raw, err := hs512.Mint(7)
	require.NoError(t, err)

	_, err = issuer.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAcceptsExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t)

	// Authenticity and temporal validity are split: Verify proves the
	// signature, the session boundary enforces expiry.
	claims := jwt.RegisteredClaims{
		Subject:   "9",
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-secret"))
	require.NoError(t, err)

	decoded, err := issuer.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "9", decoded.Subject)
	require.True(t, decoded.ExpiresAt.Before(time.Now()))
}

func TestNewIssuerConfigValidation(t *testing.T) {
	_, err := NewIssuer(Config{Algorithm: "HS256"})
	require.ErrorIs(t, err, ErrNoSigningKey)

	_, err = NewIssuer(Config{Secret: "s", Algorithm: "RS256"})
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	issuer, err := NewIssuer(Config{Secret: "s"})
	require.NoError(t, err)
	require.Equal(t, DefaultTTL, issuer.TTL())
}
