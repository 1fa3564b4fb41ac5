package auth

import (
	"errors"
	"strings"
	"time"

	"quizdesk/internal/domain"
)

const bearerPrefix = "Bearer "

var (
	// ErrMissingToken indicates the request carried no bearer credential.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken indicates the credential was present but malformed or
	// forged.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates the credential was valid but has expired.
	ErrExpiredToken = errors.New("expired token")
	// ErrInsufficientRole indicates an authenticated caller whose role does
	// not satisfy the endpoint. The error is identical for every role
	// combination so it leaks nothing beyond "forbidden".
	ErrInsufficientRole = errors.New("insufficient role")
)

// Guard turns a raw Authorization header into an access decision. It is a
// pure decision function: no side effects, no persistence, safe to call
// concurrently.
type Guard struct {
	codec *TokenCodec
}

func NewGuard(codec *TokenCodec) *Guard {
	return &Guard{codec: codec}
}

// Authorize extracts the bearer token from header, verifies it at the given
// time, and enforces the required role. domain.RoleAny accepts any
// authenticated caller. Callers map ErrMissingToken/ErrInvalidToken/
// ErrExpiredToken to 401 and ErrInsufficientRole to 403; any resource-level
// ownership check is theirs to layer on top.
func (g *Guard) Authorize(header string, required domain.Role, now time.Time) (Identity, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return Identity{}, ErrMissingToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if raw == "" {
		return Identity{}, ErrMissingToken
	}

	identity, err := g.codec.Verify(raw, now)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}

	if required != domain.RoleAny && identity.Role != required {
		return Identity{}, ErrInsufficientRole
	}

	return identity, nil
}
