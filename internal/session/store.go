// Package session persists the access token between runs.
//
// A Store is a small string key/value store in the spirit of browser
// localStorage. The auth manager keeps exactly one key, TokenKey; its
// presence at startup means the user is authorized.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/thruflo/serverboard/internal/config"
)

// TokenKey is the key under which the bearer token is stored.
const TokenKey = "accessToken"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("session store is closed")

// Store persists string values by key.
type Store interface {
	// Get returns the value for key and whether it is present.
	Get(key string) (string, bool, error)
	// Set stores value under key.
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	Close() error
}

// Event reports that a key changed outside of this process's own writes
// (or inside them; consumers must treat events as idempotent).
type Event struct {
	Key     string
	Value   string
	Present bool
}

// Watcher is implemented by stores that can report external changes.
type Watcher interface {
	// Watch emits events until ctx is done. The channel is closed when
	// watching stops.
	Watch(ctx context.Context) (<-chan Event, error)
}

// Open returns the store selected by cfg.
func Open(cfg config.SessionConfig) (Store, error) {
	switch cfg.Backend {
	case config.SessionBackendFile, "":
		return NewFileStore(cfg.Path)
	case config.SessionBackendSQLite:
		return NewSQLiteStore(cfg.Path)
	case config.SessionBackendMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}
