package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type record struct {
	ID       string   `json:"id"`
	Messages []string `json:"messages"`
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	log := zap.NewNop()

	badgerStore, err := OpenBadger(t.TempDir(), log)
	require.NoError(t, err)
	pebbleStore, err := OpenPebble(t.TempDir(), log)
	require.NoError(t, err)

	stores := map[string]Store{
		BackendMemory: NewMemoryStore(),
		BackendBadger: badgerStore,
		BackendPebble: pebbleStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStoreOverwriteWithSuperset(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)

			req.NoError(s.Put(ctx, Conversations, "sess_1", record{ID: "sess_1", Messages: []string{"hi"}}))
			req.NoError(s.Put(ctx, Conversations, "sess_1", record{ID: "sess_1", Messages: []string{"hi", "there"}}))

			var got record
			req.NoError(s.Get(ctx, Conversations, "sess_1", &got))
			req.Equal([]string{"hi", "there"}, got.Messages)
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var got record
			require.ErrorIs(t, s.Get(ctx, Sessions, "missing", &got), ErrNotFound)
		})
	}
}

func TestStoreKeysArePerCollection(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)

			req.NoError(s.Put(ctx, Participants, "p_b", record{ID: "p_b"}))
			req.NoError(s.Put(ctx, Participants, "p_a", record{ID: "p_a"}))
			req.NoError(s.Put(ctx, Sessions, "sess_1", record{ID: "sess_1"}))

			keys, err := s.Keys(ctx, Participants)
			req.NoError(err)
			req.Equal([]string{"p_a", "p_b"}, keys)

			keys, err = s.Keys(ctx, ExitSurveys)
			req.NoError(err)
			req.Empty(keys)
		})
	}
}

func TestStoreRejectsEmptyKey(t *testing.T) {
	err := NewMemoryStore().Put(context.Background(), Sessions, "", record{})
	require.Error(t, err)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("sqlite", t.TempDir(), zap.NewNop())
	require.Error(t, err)
}

func TestPrefixUpperBound(t *testing.T) {
	require.Equal(t, []byte("sessions0"), prefixUpperBound([]byte("sessions/")))
	require.Nil(t, prefixUpperBound([]byte{0xff, 0xff}))
}

func TestStorePutHonoursDoneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, s.Put(ctx, Sessions, "sess_1", record{ID: "sess_1"}), context.Canceled)

			var got record
			require.ErrorIs(t, s.Get(context.Background(), Sessions, "sess_1", &got), ErrNotFound)
		})
	}
}
