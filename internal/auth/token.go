package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quizdesk/internal/domain"
)

var (
	// ErrTokenMalformed indicates the token is not a structurally valid JWT
	// or carries claims the codec does not understand.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignature indicates the signature does not match the payload
	// under the server secret.
	ErrTokenSignature = errors.New("token signature invalid")
	// ErrTokenExpired indicates the token was valid but is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Identity is the verified outcome of token verification.
type Identity struct {
	UserID string
	Role   domain.Role
}

type tokenClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies signed, time-limited identity tokens. The
// signing secret is loaded once at process start and never mutated; the
// codec is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue produces a signed token embedding the user id and role, valid from
// now until now+TTL.
func (c *TokenCodec) Issue(userID string, role domain.Role, now time.Time) (string, error) {
	claims := tokenClaims{
		UserID: userID,
		Role:   role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify parses and validates a token against the server secret and the
// supplied clock. Nothing in the token is trusted until the signature has
// been recomputed; the HMAC comparison inside the JWT library is
// constant-time.
func (c *TokenCodec) Verify(token string, now time.Time) (Identity, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Identity{}, ErrTokenSignature
		default:
			return Identity{}, ErrTokenMalformed
		}
	}

	role, ok := domain.ParseRole(claims.Role)
	if !ok || claims.UserID == "" {
		return Identity{}, ErrTokenMalformed
	}

	return Identity{UserID: claims.UserID, Role: role}, nil
}
