// Package kvmap is the persistent key-value map shared by the alerting and
// merge tools: notified-issue bookkeeping, subscriptions and user attributes.
// It wraps a pebble database; access is single-process with last-writer-wins
// semantics.
package kvmap

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Store is an open key-value map.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the map at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open key-value map %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Get returns the value for key and whether the key exists.
func (s *Store) Get(key string) (string, bool, error) {
	data, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer closer.Close()

	return string(data), true, nil
}

// Has reports whether key exists.
func (s *Store) Has(key string) (bool, error) {
	_, found, err := s.Get(key)
	return found, err
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	return s.db.Set([]byte(key), []byte(value), pebble.NoSync)
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	return s.db.Delete([]byte(key), pebble.NoSync)
}

// EachPrefix visits every key with the given prefix in key order. Returning
// an error from visit stops the iteration.
func (s *Store) EachPrefix(prefix string, visit func(key, value string) error) error {
	iter, err := s.db.NewIter(prefixIterOptions(prefix))
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := visit(string(iter.Key()), string(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}

func prefixIterOptions(prefix string) *pebble.IterOptions {
	if prefix == "" {
		return nil
	}
	upper := []byte(prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xFF {
			upper = append(upper[:i:i], upper[i]+1)
			return &pebble.IterOptions{LowerBound: []byte(prefix), UpperBound: upper}
		}
	}
	return &pebble.IterOptions{LowerBound: []byte(prefix)}
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
