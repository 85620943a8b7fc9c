// Package state persists small key/value state between runs, most importantly
// the synchronization cursor.
package state

import (
	"context"
	"fmt"
)

// CursorKey is the key the synchronization cursor is stored under.
const CursorKey = "nextSyncToken"

// Store is a string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Cursor reads and writes the synchronization cursor in a Store.
type Cursor struct {
	store Store
}

// NewCursor creates a Cursor backed by store.
func NewCursor(store Store) *Cursor {
	return &Cursor{store: store}
}

// Load returns the persisted cursor; ok is false on first run.
func (c *Cursor) Load(ctx context.Context) (string, bool, error) {
	v, ok, err := c.store.Get(ctx, CursorKey)
	if err != nil {
		return "", false, fmt.Errorf("loading cursor: %w", err)
	}
	if v == "" {
		return "", false, nil
	}
	return v, ok, nil
}

// Save replaces the persisted cursor.
func (c *Cursor) Save(ctx context.Context, token string) error {
	if err := c.store.Set(ctx, CursorKey, token); err != nil {
		return fmt.Errorf("saving cursor: %w", err)
	}
	return nil
}

// Clear forgets the persisted cursor so the next run bootstraps again.
func (c *Cursor) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, CursorKey); err != nil {
		return fmt.Errorf("clearing cursor: %w", err)
	}
	return nil
}

// Open opens the store for the given backend ("sqlite" or "file").
func Open(backend, path string) (Store, error) {
	switch backend {
	case "sqlite":
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "file":
		s, err := OpenFile(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
