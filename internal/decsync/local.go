package decsync

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// infoFileName marks a directory as a storage location and records the
	// storage format version.
	infoFileName = ".decsync-info"

	// staticInfoFileName holds a collection's static metadata, a JSON
	// object whose values are stored JSON-encoded.
	staticInfoFileName = "info.json"

	// entriesDirName holds one append-only JSONL log per writing app.
	entriesDirName = "entries"

	// supportedVersion is the highest storage format version this engine
	// can read.
	supportedVersion = 1
)

// storageInfo is the content of the marker file.
type storageInfo struct {
	Version int `json:"version"`
}

// entryRecord is the on-disk form of an Entry. Key and Value keep their raw
// JSON text.
type entryRecord struct {
	Path     []string        `json:"path"`
	Datetime string          `json:"datetime"`
	Key      json.RawMessage `json:"key"`
	Value    json.RawMessage `json:"value"`
}

// LocalEngine is a file-backed Engine over a storage directory shared with
// other devices through whatever mechanism keeps the directory in sync. Each
// app appends to its own log file, so concurrent writers on different devices
// never contend; replay resolves the winning entry per (path, key) by latest
// timestamp.
type LocalEngine struct {
	appID string
}

// NewLocalEngine creates a file-backed engine writing entries under the given
// app identifier.
func NewLocalEngine(appID string) *LocalEngine {
	return &LocalEngine{appID: appID}
}

// AppID returns the identifier this engine tags its entries with.
func (e *LocalEngine) AppID() string {
	return e.appID
}

// CheckStorage verifies the marker file and storage version of dir.
func (e *LocalEngine) CheckStorage(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: storage directory not set", ErrInvalidInfo)
	}

	data, err := os.ReadFile(filepath.Join(dir, infoFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrInvalidInfo, dir)
		}
		return fmt.Errorf("reading storage marker: %w", err)
	}

	var info storageInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInfo, dir)
	}

	if info.Version <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInfo, dir)
	}
	if info.Version > supportedVersion {
		return fmt.Errorf("%w: version %d", ErrUnsupportedVersion, info.Version)
	}

	return nil
}

// InitStorage creates the marker file in dir, making it a usable storage
// location. Existing markers are left untouched.
func (e *LocalEngine) InitStorage(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}

	markerPath := filepath.Join(dir, infoFileName)
	if _, err := os.Stat(markerPath); err == nil {
		return nil
	}

	data, err := json.Marshal(storageInfo{Version: supportedVersion})
	if err != nil {
		return fmt.Errorf("encoding storage marker: %w", err)
	}

	if err := os.WriteFile(markerPath, data, 0644); err != nil {
		return fmt.Errorf("writing storage marker: %w", err)
	}
	return nil
}

// ListCollections lists up to max collection directories for one type.
func (e *LocalEngine) ListCollections(ctx context.Context, dir, collType string, max int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(dir, collType))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s collections: %w", collType, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
		if len(names) >= max {
			break
		}
	}
	return names, nil
}

// StaticInfo looks up one JSON-encoded key in a collection's static metadata
// and returns the raw JSON-encoded value, or "" when absent.
func (e *LocalEngine) StaticInfo(ctx context.Context, dir, collType, name, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(dir, collType, name, staticInfoFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading static info for %s/%s: %w", collType, name, err)
	}

	var info map[string]json.RawMessage
	if err := json.Unmarshal(data, &info); err != nil {
		return "", fmt.Errorf("parsing static info for %s/%s: %w", collType, name, err)
	}

	var plainKey string
	if err := json.Unmarshal([]byte(key), &plainKey); err != nil {
		return "", fmt.Errorf("static info key %q is not a JSON string: %w", key, err)
	}

	value, ok := info[plainKey]
	if !ok {
		return "", nil
	}
	return string(value), nil
}

// SetStaticInfo stores one JSON-encoded key/value pair in a collection's
// static metadata, creating the collection directory if needed.
func (e *LocalEngine) SetStaticInfo(ctx context.Context, dir, collType, name, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	collDir := filepath.Join(dir, collType, name)
	if err := os.MkdirAll(collDir, 0755); err != nil {
		return fmt.Errorf("creating collection directory: %w", err)
	}

	infoPath := filepath.Join(collDir, staticInfoFileName)
	info := map[string]json.RawMessage{}
	if data, err := os.ReadFile(infoPath); err == nil {
		if err := json.Unmarshal(data, &info); err != nil {
			return fmt.Errorf("parsing static info for %s/%s: %w", collType, name, err)
		}
	}

	var plainKey string
	if err := json.Unmarshal([]byte(key), &plainKey); err != nil {
		return fmt.Errorf("static info key %q is not a JSON string: %w", key, err)
	}
	if !json.Valid([]byte(value)) {
		return fmt.Errorf("static info value for %q is not valid JSON", plainKey)
	}
	info[plainKey] = json.RawMessage(value)

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding static info: %w", err)
	}
	if err := os.WriteFile(infoPath, data, 0644); err != nil {
		return fmt.Errorf("writing static info: %w", err)
	}
	return nil
}

// OpenSession opens a session on one existing collection.
func (e *LocalEngine) OpenSession(ctx context.Context, dir, collType, name string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collDir := filepath.Join(dir, collType, name)
	stat, err := os.Stat(collDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrCollectionNotFound, collType, name)
		}
		return nil, fmt.Errorf("opening collection %s/%s: %w", collType, name, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("%w: %s/%s", ErrCollectionNotFound, collType, name)
	}

	return &localSession{collDir: collDir, appID: e.appID}, nil
}

// localSession operates on one collection directory.
type localSession struct {
	collDir string
	appID   string
	closed  bool
}

// ForEachStored reads every app's log, keeps the latest entry per (path, key)
// and replays the winners matching prefix, one at a time.
func (s *localSession) ForEachStored(ctx context.Context, prefix []string, fn func(Entry) error) error {
	if s.closed {
		return fmt.Errorf("session already closed")
	}

	entriesDir := filepath.Join(s.collDir, entriesDirName)
	files, err := os.ReadDir(entriesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("listing entry logs: %w", err)
	}

	winners := make(map[string]Entry)
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".jsonl") {
			continue
		}
		if err := s.readLog(filepath.Join(entriesDir, file.Name()), winners); err != nil {
			return err
		}
	}

	// Sorted replay keeps behavior deterministic; callers must not rely on
	// any particular order regardless.
	keys := make([]string, 0, len(winners))
	for k := range winners {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := winners[k]
		if !pathHasPrefix(entry.Path, prefix) {
			continue
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

// readLog folds one app's log file into the winners map.
func (s *localSession) readLog(path string, winners map[string]Entry) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening entry log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec entryRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("parsing entry log %s: %w", filepath.Base(path), err)
		}

		dt, err := time.Parse(time.RFC3339Nano, rec.Datetime)
		if err != nil {
			return fmt.Errorf("parsing entry datetime %q: %w", rec.Datetime, err)
		}

		entry := Entry{
			Path:     rec.Path,
			Datetime: dt,
			Key:      string(rec.Key),
			Value:    string(rec.Value),
		}

		k := entryKey(entry.Path, entry.Key)
		// On equal timestamps the later line wins, so back-to-back writes
		// from one app resolve in append order.
		if prev, ok := winners[k]; !ok || !entry.Datetime.Before(prev.Datetime) {
			winners[k] = entry
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading entry log: %w", err)
	}
	return nil
}

// SetEntry appends a timestamped entry to this app's log.
func (s *localSession) SetEntry(ctx context.Context, path []string, key, value string) error {
	if s.closed {
		return fmt.Errorf("session already closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid([]byte(key)) || !json.Valid([]byte(value)) {
		return fmt.Errorf("entry key and value must be raw JSON text")
	}

	entriesDir := filepath.Join(s.collDir, entriesDirName)
	if err := os.MkdirAll(entriesDir, 0755); err != nil {
		return fmt.Errorf("creating entries directory: %w", err)
	}

	rec := entryRecord{
		Path:     path,
		Datetime: time.Now().UTC().Format(time.RFC3339Nano),
		Key:      json.RawMessage(key),
		Value:    json.RawMessage(value),
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}

	logPath := filepath.Join(entriesDir, sanitizeFileName(s.appID)+".jsonl")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening entry log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending entry: %w", err)
	}
	return nil
}

// Close marks the session unusable.
func (s *localSession) Close() error {
	s.closed = true
	return nil
}

func entryKey(path []string, key string) string {
	// NUL never appears in path segments written by this bridge or by the
	// JSON logs, so it is a safe join character.
	return strings.Join(path, "\x00") + "\x00\x00" + key
}

func pathHasPrefix(path, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if path[i] != p {
			return false
		}
	}
	return true
}

func sanitizeFileName(s string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		" ", "-",
	)
	return replacer.Replace(s)
}
