//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Collections written by the engine.
const (
	Participants  = "participants"
	Sessions      = "sessions"
	Conversations = "conversations"
	ExitSurveys   = "exit-surveys"
)

// AllCollections lists every collection in a stable order.
var AllCollections = []string{Participants, Sessions, Conversations, ExitSurveys}

var ErrNotFound = errors.New("record not found")

// Store is the durable key/record store. Put overwrites the record under
// (collection, key); last writer wins.
type Store interface {
	Put(ctx context.Context, collection, key string, record any) error
	Get(ctx context.Context, collection, key string, out any) error
	Keys(ctx context.Context, collection string) ([]string, error)
	Close() error
}

const separator = "/"

func recordKey(collection, key string) ([]byte, error) {
	if collection == "" || key == "" {
		return nil, fmt.Errorf("collection and key are required (collection=%q key=%q)", collection, key)
	}
	if strings.Contains(collection, separator) {
		return nil, fmt.Errorf("invalid collection %q", collection)
	}
	return []byte(collection + separator + key), nil
}

func collectionPrefix(collection string) []byte {
	return []byte(collection + separator)
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
