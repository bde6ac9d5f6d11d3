package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// PebbleStore persists JSON records in a Pebble database under
// "collection/key". Every write is synced.
type PebbleStore struct {
	db  *pebble.DB
	log *zap.Logger
}

// OpenPebble opens (or creates) a Pebble database at path.
func OpenPebble(path string, log *zap.Logger) (*PebbleStore, error) {
	log.Info("opening_pebble_db", zap.String("path", path))
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		log.Error("pebble_open_failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("open pebble at %q: %w", path, err)
	}
	return &PebbleStore{db: db, log: log}, nil
}

// Put overwrites the record stored under (collection, key).
func (s *PebbleStore) Put(ctx context.Context, collection, key string, record any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := recordKey(collection, key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return s.db.Set(k, data, pebble.Sync)
}

// Get decodes the record stored under (collection, key) into out.
func (s *PebbleStore) Get(_ context.Context, collection, key string, out any) error {
	k, err := recordKey(collection, key)
	if err != nil {
		return err
	}
	val, closer, err := s.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	return json.Unmarshal(val, out)
}

// Keys lists the record keys of a collection in lexical order.
func (s *PebbleStore) Keys(_ context.Context, collection string) ([]string, error) {
	prefix := collectionPrefix(collection)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	keys := make([]string, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()[len(prefix):]))
	}
	return keys, iter.Error()
}

// Close flushes and releases the database.
func (s *PebbleStore) Close() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	s.log.Info("pebble_closed")
	return nil
}
