package store

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendPebble = "pebble"
	BackendMemory = "memory"
)

// Open builds the configured store. Disk backends get their own
// sub-directory under dir.
func Open(backend, dir string, log *zap.Logger) (Store, error) {
	switch backend {
	case BackendMemory:
		log.Warn("memory_store_selected", zap.String("note", "records are lost on shutdown"))
		return NewMemoryStore(), nil
	case BackendBadger, BackendPebble:
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}

	path := filepath.Join(dir, backend)
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	if backend == BackendPebble {
		return OpenPebble(path, log)
	}
	return OpenBadger(path, log)
}
