// Package storycache keeps an offline copy of the stories a session has
// seen.
//
// Source sits in front of the API client. Successful reads are written
// through to badger; when the API cannot be reached the last copy is
// served instead, marked Stale so pages can say they are offline. Errors
// the API reports itself (bad token, unknown story) are never masked.
package storycache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/pthm/hxnav/internal/kv"
	"github.com/pthm/hxnav/internal/logging"
	"github.com/pthm/hxnav/internal/storyapi"
)

const (
	listPrefix   = "stories:list:"
	detailPrefix = "stories:detail:"
)

// API is the part of the story client Source reads through.
type API interface {
	Stories(ctx context.Context, token string, opts storyapi.ListOptions) ([]storyapi.Story, error)
	Story(ctx context.Context, token, id string) (storyapi.Story, error)
}

// List is a story list and where it came from.
type List struct {
	Stories   []storyapi.Story `msgpack:"stories"`
	FetchedAt time.Time        `msgpack:"fetched_at"`
	Stale     bool             `msgpack:"-"`
}

// Detail is a single story and where it came from.
type Detail struct {
	Story     storyapi.Story `msgpack:"story"`
	FetchedAt time.Time      `msgpack:"fetched_at"`
	Stale     bool           `msgpack:"-"`
}

// Source reads stories from the API with an offline fallback.
type Source struct {
	api API
	db  *badger.DB
	ttl time.Duration
	now func() time.Time
	log *zerolog.Logger

	// OnFallback is called with "list" or "detail" whenever cached data
	// stands in for the API.
	OnFallback func(kind string)
}

// New creates a Source. Entries expire after ttl.
func New(api API, db *badger.DB, ttl time.Duration) *Source {
	return &Source{
		api: api,
		db:  db,
		ttl: ttl,
		now: time.Now,
		log: logging.Component("storycache"),
	}
}

// Stories lists stories, falling back to the cached list.
func (s *Source) Stories(ctx context.Context, token string, opts storyapi.ListOptions) (List, error) {
	key := fmt.Sprintf("%sp%d:s%d:l%t", listPrefix, opts.Page, opts.Size, opts.Location)

	stories, err := s.api.Stories(ctx, token, opts)
	if err == nil {
		l := List{Stories: stories, FetchedAt: s.now()}
		s.store(key, l)
		for _, st := range stories {
			s.store(detailPrefix+st.ID, Detail{Story: st, FetchedAt: l.FetchedAt})
		}
		return l, nil
	}
	if !storyapi.IsTransient(err) {
		return List{}, err
	}

	var l List
	if cerr := kv.Get(s.db, key, &l); cerr != nil {
		s.miss(cerr, key)
		return List{}, err
	}
	s.log.Info().Err(err).Str("key", key).Msg("serving cached stories")
	s.fallback("list")
	l.Stale = true
	return l, nil
}

// Story fetches one story, falling back to the cached copy.
func (s *Source) Story(ctx context.Context, token, id string) (Detail, error) {
	key := detailPrefix + id

	st, err := s.api.Story(ctx, token, id)
	if err == nil {
		d := Detail{Story: st, FetchedAt: s.now()}
		s.store(key, d)
		return d, nil
	}
	if !storyapi.IsTransient(err) {
		return Detail{}, err
	}

	var d Detail
	if cerr := kv.Get(s.db, key, &d); cerr != nil {
		s.miss(cerr, key)
		return Detail{}, err
	}
	s.log.Info().Err(err).Str("key", key).Msg("serving cached story")
	s.fallback("detail")
	d.Stale = true
	return d, nil
}

// Invalidate drops the cached lists, e.g. after posting a story.
func (s *Source) Invalidate() error {
	if err := s.db.DropPrefix([]byte(listPrefix)); err != nil {
		return fmt.Errorf("storycache: invalidate: %w", err)
	}
	return nil
}

func (s *Source) store(key string, v any) {
	if err := kv.Set(s.db, key, v, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (s *Source) miss(err error, key string) {
	if !errors.Is(err, kv.ErrNotFound) {
		s.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
}

func (s *Source) fallback(kind string) {
	if s.OnFallback != nil {
		s.OnFallback(kind)
	}
}
