package remote

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	raw, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestBearerTokenValidity(t *testing.T) {
	t.Run("empty is never valid", func(t *testing.T) {
		b := NewBearerToken("")
		assert.False(t, b.Valid())
		_, err := b.Token()
		assert.ErrorIs(t, err, ErrNoCredential)
	})

	t.Run("opaque token is assumed valid", func(t *testing.T) {
		b := NewBearerToken("not-a-jwt")
		assert.True(t, b.Valid())
		tok, err := b.Token()
		require.NoError(t, err)
		assert.Equal(t, "not-a-jwt", tok)
	})

	t.Run("live jwt is valid", func(t *testing.T) {
		b := NewBearerToken(signedJWT(t, time.Now().Add(time.Hour)))
		assert.True(t, b.Valid())
	})

	t.Run("expired jwt is invalid", func(t *testing.T) {
		b := NewBearerToken(signedJWT(t, time.Now().Add(-time.Hour)))
		assert.False(t, b.Valid())
		_, err := b.Token()
		assert.ErrorIs(t, err, ErrNoCredential)
	})

	t.Run("jwt expiring within the leeway window is invalid", func(t *testing.T) {
		b := NewBearerToken(signedJWT(t, time.Now().Add(10*time.Second)))
		assert.False(t, b.Valid(), "a token about to expire is not worth a sync run")
	})
}

func TestBearerTokenSetReplacesCredential(t *testing.T) {
	b := NewBearerToken("")
	assert.False(t, b.Valid())

	b.Set(signedJWT(t, time.Now().Add(time.Hour)))
	assert.True(t, b.Valid())

	b.Set("")
	assert.False(t, b.Valid())
}
