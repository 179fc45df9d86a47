// Package authstore keeps the API session of each browser session.
//
// Records live in badger under "auth:<session id>", so a login survives a
// server restart when the database is on disk. A record whose token is a
// JWT with an exp claim in the past counts as logged out and is removed
// on read. Tokens that are not JWTs are trusted as they are.
package authstore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/pthm/hxnav/internal/kv"
)

const keyPrefix = "auth:"

// Auth is the session record returned by a login.
type Auth struct {
	UserID string `msgpack:"user_id"`
	Name   string `msgpack:"name"`
	Token  string `msgpack:"token"`
}

// Store is the badger-backed auth store.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// New creates a Store over db.
func New(db *badger.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// For returns the handle of one browser session.
func (s *Store) For(sessionID string) *Handle {
	return &Handle{store: s, key: keyPrefix + sessionID}
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	return kv.Count(s.db, keyPrefix)
}

// Handle is the auth record of one session.
type Handle struct {
	store *Store
	key   string
}

// GetAuth returns the stored record, nil when logged out.
func (h *Handle) GetAuth() (*Auth, error) {
	var a Auth
	err := kv.Get(h.store.db, h.key, &a)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authstore: %w", err)
	}
	if Expired(a.Token, h.store.now()) {
		if err := kv.Delete(h.store.db, h.key); err != nil {
			return nil, fmt.Errorf("authstore: %w", err)
		}
		return nil, nil
	}
	return &a, nil
}

// SaveAuth stores a record, replacing any previous one. A JWT token
// bounds the record's lifetime by its exp claim.
func (h *Handle) SaveAuth(a Auth) error {
	if a.Token == "" {
		return errors.New("authstore: empty token")
	}
	var ttl time.Duration
	if exp, ok := expiry(a.Token); ok {
		ttl = exp.Sub(h.store.now())
		if ttl <= 0 {
			return errors.New("authstore: token already expired")
		}
	}
	if err := kv.Set(h.store.db, h.key, a, ttl); err != nil {
		return fmt.Errorf("authstore: %w", err)
	}
	return nil
}

// DestroyAuth removes the record.
func (h *Handle) DestroyAuth() error {
	if err := kv.Delete(h.store.db, h.key); err != nil {
		return fmt.Errorf("authstore: %w", err)
	}
	return nil
}

// IsLoggedIn reports whether a usable record exists. Storage errors
// count as logged out.
func (h *Handle) IsLoggedIn() bool {
	a, err := h.GetAuth()
	return err == nil && a != nil
}

// Token returns the stored token, "" when logged out.
func (h *Handle) Token() string {
	a, err := h.GetAuth()
	if err != nil || a == nil {
		return ""
	}
	return a.Token
}

// Expired reports whether token is a JWT whose exp claim is before now.
// The signature is not checked: the API verifies tokens, this only
// avoids sending ones that are known to be stale.
func Expired(token string, now time.Time) bool {
	exp, ok := expiry(token)
	return ok && !now.Before(exp)
}

func expiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
