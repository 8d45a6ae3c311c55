// Package auth provides password hashing, bearer-token issuance and
// verification, the HTTP gate that enforces tokens, and the optional GitHub
// sign-in flow.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. POST /api/login checks the password and returns a signed JWT
//  2. The client stores it and sends "Authorization: Bearer <jwt>" on writes
//  3. RequireAuth verifies the signature and expiry and puts the caller's
//     Identity in the request context
//
// Tokens are stateless: verification needs only the secret, never the
// database. There is no revocation list, so a token stays valid for its whole
// 24-hour lifetime whatever happens to the account afterwards.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenTTL is how long an issued token stays valid.
	TokenTTL = 24 * time.Hour

	// MinSecretLength guards against trivially brute-forceable HMAC keys.
	MinSecretLength = 16

	issuer = "openworld"
)

// ErrInvalidToken is returned by Verify for any token that must not be
// trusted: bad signature, wrong algorithm or issuer, expired, or malformed.
var ErrInvalidToken = errors.New("auth: invalid token")

// Identity is the authenticated caller, as carried inside a token.
type Identity struct {
	UserID int64
	Email  string
}

// TokenService handles JWT creation and validation with an HMAC secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// claims is the JWT payload. The id/email pair is what the API needs;
// "sub" repeats the id in the standard claim for any generic JWT tooling.
type claims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Issue signs a token for the given user that expires after TokenTTL.
func (s *TokenService) Issue(userID int64, email string) (string, error) {
	return s.issueWithTTL(userID, email, TokenTTL)
}

func (s *TokenService) issueWithTTL(userID int64, email string, ttl time.Duration) (string, error) {
	now := s.now()

	c := claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and checks a token string and returns the identity inside.
//
// Checks performed by the jwt library:
//   - signature is valid for our secret
//   - algorithm is HS256 (no "none", no algorithm confusion)
//   - issuer matches
//   - exp is present and in the future
//
// Every failure wraps ErrInvalidToken.
func (s *TokenService) Verify(tokenStr string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	if c.UserID <= 0 || c.Email == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrInvalidToken)
	}

	return &Identity{UserID: c.UserID, Email: c.Email}, nil
}
