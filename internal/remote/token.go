package remote

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrNoCredential is returned when no usable bearer credential is held.
var ErrNoCredential = errors.New("no valid bearer credential")

// TokenProvider supplies the bearer credential for remote calls. The
// scheduler checks Valid before attempting a sync run; acquisition and
// refresh of the credential happen outside this process.
type TokenProvider interface {
	Token() (string, error)
	Valid() bool
}

// BearerToken holds a raw bearer credential. When the credential is a
// JWT, Valid inspects its exp claim (without verifying the signature —
// the server does that); opaque tokens are assumed usable and left for
// the server to reject.
type BearerToken struct {
	mu     sync.RWMutex
	raw    string
	leeway time.Duration
}

// NewBearerToken creates a provider around the given credential. An
// empty credential is never valid.
func NewBearerToken(raw string) *BearerToken {
	return &BearerToken{raw: raw, leeway: 30 * time.Second}
}

// Set replaces the held credential.
func (b *BearerToken) Set(raw string) {
	b.mu.Lock()
	b.raw = raw
	b.mu.Unlock()
}

// Token returns the credential, or ErrNoCredential if none is usable.
func (b *BearerToken) Token() (string, error) {
	if !b.Valid() {
		return "", ErrNoCredential
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.raw, nil
}

// Valid reports whether a usable credential is currently held.
func (b *BearerToken) Valid() bool {
	b.mu.RLock()
	raw, leeway := b.raw, b.leeway
	b.mu.RUnlock()

	if raw == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		// Not a JWT; assume an opaque token the server will judge.
		return true
	}
	return claims.VerifyExpiresAt(time.Now().Add(leeway).Unix(), false)
}
