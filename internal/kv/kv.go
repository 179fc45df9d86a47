// Package kv wraps the badger database shared by the auth store and the
// offline story cache. Values are msgpack encoded.
package kv

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("kv: not found")

// Open opens the database at path. An empty path opens an in-memory
// database, which is what tests and throwaway deployments use.
func Open(path string, log *zerolog.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	if log != nil {
		opts = opts.WithLogger(badgerLogger{log})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kv: open %q: %w", path, err)
	}
	return db, nil
}

// Get decodes the value of key into v.
func Get(db *badger.DB, key string, v any) error {
	return db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("kv: get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			if err := msgpack.Unmarshal(val, v); err != nil {
				return fmt.Errorf("kv: decode %s: %w", key, err)
			}
			return nil
		})
	})
}

// Set stores v under key. A positive ttl expires the entry.
func Set(db *badger.DB, key string, v any, ttl time.Duration) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	return db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete removes key. Deleting a missing key is not an error.
func Delete(db *badger.DB, key string) error {
	return db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("kv: delete %s: %w", key, err)
		}
		return nil
	})
}

// Count returns the number of live keys with prefix.
func Count(db *badger.DB, prefix string) (int, error) {
	n := 0
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

type badgerLogger struct {
	log *zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...any) {
	l.log.Error().Msg(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l badgerLogger) Warningf(f string, v ...any) {
	l.log.Warn().Msg(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l badgerLogger) Infof(f string, v ...any) {
	l.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l badgerLogger) Debugf(f string, v ...any) {
	l.log.Trace().Msg(strings.TrimSpace(fmt.Sprintf(f, v...)))
}
