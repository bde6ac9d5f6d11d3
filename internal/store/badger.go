package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerStore persists JSON records in BadgerDB under "collection/key".
type BadgerStore struct {
	db  *badger.DB
	log *zap.Logger
}

// OpenBadger opens (or creates) a Badger database at path. An empty path
// opens an in-memory instance.
func OpenBadger(path string, log *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	log.Info("badger_opened", zap.String("path", path))
	return &BadgerStore{db: db, log: log}, nil
}

// Put overwrites the record stored under (collection, key). A context that
// is already done fails the write before it starts.
func (s *BadgerStore) Put(ctx context.Context, collection, key string, record any) error {
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
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, data)
	})
}

// Get decodes the record stored under (collection, key) into out.
func (s *BadgerStore) Get(_ context.Context, collection, key string, out any) error {
	k, err := recordKey(collection, key)
	if err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// Keys lists the record keys of a collection in lexical order.
func (s *BadgerStore) Keys(_ context.Context, collection string) ([]string, error) {
	prefix := collectionPrefix(collection)
	keys := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Close flushes and releases the database.
func (s *BadgerStore) Close() error {
	s.log.Info("badger_closing")
	return s.db.Close()
}
