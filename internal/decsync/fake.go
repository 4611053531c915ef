package decsync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// FakeEngine is an in-memory Engine used in tests and anywhere a simulated
// log is more convenient than a directory on disk. Collections are created on
// first write; session-open failures can be scripted per collection.
type FakeEngine struct {
	mu    sync.Mutex
	appID string

	// collections maps "type/name" to that collection's state.
	collections map[string]*fakeCollection

	// failOpen lists "type/name" keys whose sessions refuse to open.
	failOpen map[string]bool

	clock time.Time
}

type fakeCollection struct {
	staticInfo map[string]string // JSON-encoded key -> raw JSON value
	entries    map[string]Entry  // entryKey -> winning entry
}

// NewFakeEngine creates an empty in-memory engine.
func NewFakeEngine(appID string) *FakeEngine {
	return &FakeEngine{
		appID:       appID,
		collections: make(map[string]*fakeCollection),
		failOpen:    make(map[string]bool),
		clock:       time.Unix(1700000000, 0).UTC(),
	}
}

// AddCollection registers a collection, optionally with a JSON-encoded
// display name in its static metadata.
func (e *FakeEngine) AddCollection(collType, name, encodedDisplayName string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	coll := e.getOrCreate(collType, name)
	if encodedDisplayName != "" {
		coll.staticInfo[`"name"`] = encodedDisplayName
	}
}

// AddEntry stores an entry directly, bypassing session bookkeeping. Later
// calls for the same path and key supersede earlier ones.
func (e *FakeEngine) AddEntry(collType, name string, path []string, key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	coll := e.getOrCreate(collType, name)
	e.clock = e.clock.Add(time.Second)
	coll.entries[entryKey(path, key)] = Entry{
		Path:     path,
		Datetime: e.clock,
		Key:      key,
		Value:    value,
	}
}

// FailSessionsFor makes OpenSession fail for the named collection.
func (e *FakeEngine) FailSessionsFor(collType, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failOpen[collType+"/"+name] = true
}

// AppID implements Engine.
func (e *FakeEngine) AppID() string {
	return e.appID
}

// CheckStorage implements Engine; the fake store is always usable unless the
// directory is unset.
func (e *FakeEngine) CheckStorage(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: storage directory not set", ErrInvalidInfo)
	}
	return nil
}

// ListCollections implements Engine.
func (e *FakeEngine) ListCollections(_ context.Context, _, collType string, max int) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var names []string
	for key := range e.collections {
		parts := strings.SplitN(key, "/", 2)
		if parts[0] == collType {
			names = append(names, parts[1])
		}
	}
	sort.Strings(names)
	if len(names) > max {
		names = names[:max]
	}
	return names, nil
}

// StaticInfo implements Engine.
func (e *FakeEngine) StaticInfo(_ context.Context, _, collType, name, key string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	coll, ok := e.collections[collType+"/"+name]
	if !ok {
		return "", nil
	}
	return coll.staticInfo[key], nil
}

// OpenSession implements Engine.
func (e *FakeEngine) OpenSession(_ context.Context, _, collType, name string) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := collType + "/" + name
	if e.failOpen[key] {
		return nil, fmt.Errorf("scripted session failure for %s", key)
	}
	coll, ok := e.collections[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, key)
	}
	return &fakeSession{engine: e, coll: coll}, nil
}

func (e *FakeEngine) getOrCreate(collType, name string) *fakeCollection {
	key := collType + "/" + name
	coll, ok := e.collections[key]
	if !ok {
		coll = &fakeCollection{
			staticInfo: make(map[string]string),
			entries:    make(map[string]Entry),
		}
		e.collections[key] = coll
	}
	return coll
}

type fakeSession struct {
	engine *FakeEngine
	coll   *fakeCollection
	closed bool
}

func (s *fakeSession) ForEachStored(ctx context.Context, prefix []string, fn func(Entry) error) error {
	if s.closed {
		return fmt.Errorf("session already closed")
	}

	s.engine.mu.Lock()
	var matching []Entry
	for _, entry := range s.coll.entries {
		if pathHasPrefix(entry.Path, prefix) {
			matching = append(matching, entry)
		}
	}
	s.engine.mu.Unlock()

	sort.Slice(matching, func(i, j int) bool {
		return strings.Join(matching[i].Path, "/") < strings.Join(matching[j].Path, "/")
	})

	for _, entry := range matching {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeSession) SetEntry(_ context.Context, path []string, key, value string) error {
	if s.closed {
		return fmt.Errorf("session already closed")
	}

	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()

	s.engine.clock = s.engine.clock.Add(time.Second)
	s.coll.entries[entryKey(path, key)] = Entry{
		Path:     path,
		Datetime: s.engine.clock,
		Key:      key,
		Value:    value,
	}
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}
