// Package decsync provides access to a DecSync-style synchronization store: a
// directory of path-addressed, timestamped key/value entries shared between
// devices. The bridge consumes the store through the Engine and Session
// interfaces; the store's cross-device merge behavior is the synchronization
// engine's own concern and is not reimplemented here.
package decsync

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidInfo is returned when the storage location exists but its
	// marker file is missing or unreadable (engine status 1).
	ErrInvalidInfo = errors.New("invalid or missing storage marker file")

	// ErrUnsupportedVersion is returned when the storage location was
	// written by a newer, incompatible engine version (engine status 2).
	ErrUnsupportedVersion = errors.New("unsupported storage version")

	// ErrCollectionNotFound is returned when a session cannot be opened
	// because the named collection does not exist in the store.
	ErrCollectionNotFound = errors.New("collection not found")
)

// Entry is one record of the synchronization log: a path of segments, the
// moment it was written, and a key/value pair. Key and Value hold raw JSON
// text exactly as stored; decoding item payloads out of Value is the caller's
// business. Entries are immutable; a later entry with the same path and key
// supersedes this one.
type Entry struct {
	Path     []string
	Datetime time.Time
	Key      string
	Value    string
}

// Engine is the synchronization engine surface the bridge consumes. All
// operations take the storage directory explicitly so a configuration change
// takes effect on the next call without rebuilding the engine.
type Engine interface {
	// CheckStorage verifies that dir is a usable storage location. It
	// returns nil when usable, ErrInvalidInfo or ErrUnsupportedVersion for
	// the two known failure modes, and any other error for the rest.
	CheckStorage(dir string) error

	// AppID returns the stable per-install identifier used to tag entries
	// written by this process.
	AppID() string

	// ListCollections returns up to max collection names stored under dir
	// for the given collection type.
	ListCollections(ctx context.Context, dir, collType string, max int) ([]string, error)

	// StaticInfo returns the raw JSON-encoded value stored under the given
	// JSON-encoded key in a collection's static metadata, or an empty
	// string when the key is unset.
	StaticInfo(ctx context.Context, dir, collType, name, key string) (string, error)

	// OpenSession opens a session scoped to one collection. The session is
	// exclusively owned by the caller and must be closed before the call
	// that opened it returns.
	OpenSession(ctx context.Context, dir, collType, name string) (Session, error)
}

// Session is a short-lived handle on one collection's slice of the log.
type Session interface {
	// ForEachStored replays every live entry whose path starts with
	// prefix, invoking fn once per entry, sequentially, in no guaranteed
	// order. Only the winning entry per (path, key) is replayed; the
	// engine resolves superseded entries before the callback sees them.
	// Returning an error from fn stops the replay.
	ForEachStored(ctx context.Context, prefix []string, fn func(Entry) error) error

	// SetEntry appends a new entry at path with the given raw JSON key and
	// value, timestamped now.
	SetEntry(ctx context.Context, path []string, key, value string) error

	// Close releases the session.
	Close() error
}
