package authstore

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/hxnav/internal/kv"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := kv.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": "user-1",
		"exp":    exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestHandleLifecycle(t *testing.T) {
	s := newStore(t)
	h := s.For("session-a")

	a, err := h.GetAuth()
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.False(t, h.IsLoggedIn())

	rec := Auth{UserID: "user-1", Name: "Rina", Token: "opaque-token"}
	require.NoError(t, h.SaveAuth(rec))
	assert.True(t, h.IsLoggedIn())
	assert.Equal(t, "opaque-token", h.Token())

	a, err = h.GetAuth()
	require.NoError(t, err)
	assert.Equal(t, &rec, a)

	require.NoError(t, h.DestroyAuth())
	assert.False(t, h.IsLoggedIn())
	assert.Empty(t, h.Token())
}

func TestSessionsAreIsolated(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.For("a").SaveAuth(Auth{Name: "A", Token: "ta"}))

	assert.True(t, s.For("a").IsLoggedIn())
	assert.False(t, s.For("b").IsLoggedIn())

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExpiredJWT(t *testing.T) {
	s := newStore(t)
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	h := s.For("session-a")
	token := signed(t, now.Add(time.Hour))
	require.NoError(t, h.SaveAuth(Auth{Name: "Rina", Token: token}))
	assert.True(t, h.IsLoggedIn())

	now = now.Add(2 * time.Hour)
	a, err := h.GetAuth()
	require.NoError(t, err)
	assert.Nil(t, a, "expired token counts as logged out")

	assert.Error(t, h.SaveAuth(Auth{Token: signed(t, now.Add(-time.Minute))}))
	assert.Error(t, h.SaveAuth(Auth{}))
}

func TestExpired(t *testing.T) {
	now := time.Now()
	assert.True(t, Expired(signed(t, now.Add(-time.Second)), now))
	assert.False(t, Expired(signed(t, now.Add(time.Minute)), now))
	assert.False(t, Expired("not-a-jwt", now))
	assert.False(t, Expired("a.b.c", now), "unparseable tokens are trusted")
}
