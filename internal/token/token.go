// Package token mints and verifies the signed access tokens that carry
// a user's identity between requests.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TypeAccess marks tokens minted for regular authenticated requests.
const TypeAccess = "access"

// DefaultTTL bounds the lifetime of a minted token.
const DefaultTTL = 30 * time.Minute

var (
	// ErrInvalidToken is the uniform verification failure. Signature
	// mismatch, malformed input and undecodable claims all collapse into
	// it so callers cannot probe why a token was rejected.
	ErrInvalidToken = errors.New("token: invalid token")
	// ErrNoSigningKey indicates the signing secret was not configured.
	ErrNoSigningKey = errors.New("token: signing key not configured")
	// ErrUnsupportedAlgorithm indicates the configured algorithm is not an HMAC variant.
	ErrUnsupportedAlgorithm = errors.New("token: unsupported signing algorithm")
)

// Config holds the signing material injected at construction time.
type Config struct {
	Secret    string
	Algorithm string
	TTL       time.Duration
}

// Claims are the verified contents of an access token. Subject is kept
// as the raw string claim; interpreting it (and enforcing expiry) is the
// session boundary's responsibility.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenType string
	ID        string
}

type accessClaims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies signed access tokens.
type Issuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	parser *jwt.Parser
}

// NewIssuer validates the signing configuration and builds an Issuer.
// Configuration failures here are fatal at startup, never per-request.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSigningKey
	}
	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, cfg.Algorithm)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{
		secret: []byte(cfg.Secret),
		method: method,
		ttl:    ttl,
		// Expiry is deliberately not validated here; the session boundary
		// compares the decoded expiry against wall-clock time itself.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// TTL reports the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Mint signs a fresh access token for the given subject.
func (i *Issuer) Mint(subjectID int64) (string, error) {
	now := time.Now()
	claims := accessClaims{
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and decodes the claims. It proves
// authenticity only: an authentic but expired token still verifies.
func (i *Issuer) Verify(raw string) (Claims, error) {
	var claims accessClaims
	parsed, err := i.parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	out := Claims{
		Subject:   claims.Subject,
		TokenType: claims.TokenType,
		ID:        claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
