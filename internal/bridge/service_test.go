package bridge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/decbridge/internal/codec"
	"github.com/tildaslashalef/decbridge/internal/config"
	"github.com/tildaslashalef/decbridge/internal/decsync"
	"github.com/tildaslashalef/decbridge/internal/loggy"
)

// recordingNotifier captures every host callback for assertions
type recordingNotifier struct {
	collections  [][]Collection
	items        map[string][]Item
	committed    []string
	processed    []string
	statuses     []string
	online       *bool
	offlineAfter time.Duration
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{items: make(map[string][]Item)}
}

func (n *recordingNotifier) CollectionsRetrieved(collections []Collection) {
	n.collections = append(n.collections, collections)
}

func (n *recordingNotifier) ItemsRetrieved(collectionRemoteID string, items []Item) {
	n.items[collectionRemoteID] = items
}

func (n *recordingNotifier) ChangeCommitted(collectionRemoteID, itemRemoteID string) {
	n.committed = append(n.committed, collectionRemoteID+"#"+itemRemoteID)
}

func (n *recordingNotifier) ChangeProcessed(collectionRemoteID, itemRemoteID string) {
	n.processed = append(n.processed, collectionRemoteID+"#"+itemRemoteID)
}

func (n *recordingNotifier) Status(level StatusLevel, message string) {
	n.statuses = append(n.statuses, level.String()+": "+message)
}

func (n *recordingNotifier) SetOnline(online bool) {
	n.online = &online
}

func (n *recordingNotifier) SetTemporaryOffline(retryAfter time.Duration) {
	n.offlineAfter = retryAfter
}

// mapFetcher serves payloads from a map keyed collection#item
type mapFetcher map[string][]byte

func (f mapFetcher) FetchPayload(collectionRemoteID, itemRemoteID string) ([]byte, error) {
	payload, ok := f[collectionRemoteID+"#"+itemRemoteID]
	if !ok {
		return nil, fmt.Errorf("no payload for %s/%s", collectionRemoteID, itemRemoteID)
	}
	return payload, nil
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.DecSync.Directory = "/tmp/decsync-test"
	cfg.DecSync.MaxCollections = 16
	cfg.DecSync.CheckRetries = 0
	cfg.DecSync.CheckRetryDelay = time.Millisecond
	cfg.DecSync.OfflineRetryWindow = 60 * time.Second
	return cfg
}

func newTestService(engine decsync.Engine, notifier Notifier, fetcher PayloadFetcher) *Service {
	return NewService(testConfig(), engine, notifier, fetcher, loggy.NewNoopLogger())
}

func TestRetrieveCollections(t *testing.T) {
	engine := decsync.NewFakeEngine("test-app")
	engine.AddCollection("contacts", "alice", codec.Encode([]byte("Alice's Contacts")))
	engine.AddCollection("contacts", "bob", "")

	notifier := newRecordingNotifier()
	svc := newTestService(engine, notifier, mapFetcher{})

	collections, err := svc.RetrieveCollections(context.Background())
	require.NoError(t, err)

	// One synthetic folder per type, plus the two contact books.
	require.Len(t, collections, 4)

	byID := make(map[string]Collection)
	for _, c := range collections {
		byID[c.RemoteID] = c
	}

	calFolder, ok := byID["calendars/"]
	require.True(t, ok, "missing calendars type folder")
	assert.True(t, calFolder.Folder)
	assert.True(t, calFolder.CanCreateSub)
	assert.Equal(t, []string{MimeDirectory}, calFolder.ContentMimeTypes)

	conFolder, ok := byID["contacts/"]
	require.True(t, ok, "missing contacts type folder")
	assert.Equal(t, "DecSync contacts", conFolder.Name)

	alice, ok := byID["contacts/alice"]
	require.True(t, ok, "missing alice collection")
	assert.Equal(t, "Alice's Contacts", alice.Name)
	assert.Equal(t, "contacts/", alice.ParentRemoteID)
	assert.Equal(t, []string{"text/directory"}, alice.ContentMimeTypes)
	assert.True(t, alice.ReadOnly)
	assert.False(t, alice.Folder)

	bob, ok := byID["contacts/bob"]
	require.True(t, ok, "missing bob collection")
	assert.Equal(t, "bob", bob.Name, "missing metadata should fall back to the engine name")

	require.Len(t, notifier.collections, 1)
	assert.Equal(t, collections, notifier.collections[0])
}

func TestRetrieveCollectionsMalformedDisplayName(t *testing.T) {
	engine := decsync.NewFakeEngine("test-app")
	engine.AddCollection("contacts", "broken", "not json at all")

	svc := newTestService(engine, newRecordingNotifier(), mapFetcher{})

	collections, err := svc.RetrieveCollections(context.Background())
	require.NoError(t, err)

	var found bool
	for _, c := range collections {
		if c.RemoteID == "contacts/broken" {
			found = true
			assert.Equal(t, "broken", c.Name)
		}
	}
	assert.True(t, found, "collection with malformed metadata should still enumerate")
}

func TestRetrieveCollectionsSessionFailureIsolation(t *testing.T) {
	engine := decsync.NewFakeEngine("test-app")
	engine.AddCollection("contacts", "alice", "")
	engine.AddCollection("contacts", "bob", "")
	engine.FailSessionsFor("contacts", "alice")

	notifier := newRecordingNotifier()
	svc := newTestService(engine, notifier, mapFetcher{})

	collections, err := svc.RetrieveCollections(context.Background())
	require.NoError(t, err, "one unopenable collection must not fail the enumeration")

	ids := make([]string, 0, len(collections))
	for _, c := range collections {
		ids = append(ids, c.RemoteID)
	}
	assert.NotContains(t, ids, "contacts/alice")
	assert.Contains(t, ids, "contacts/bob")
	assert.Contains(t, ids, "contacts/")

	require.Len(t, notifier.collections, 1)
	assert.Equal(t, collections, notifier.collections[0])
}

func TestRetrieveCollectionsEmptyDirectory(t *testing.T) {
	engine := decsync.NewFakeEngine("test-app")
	engine.AddCollection("contacts", "alice", "")

	cfg := testConfig()
	cfg.DecSync.Directory = ""
	notifier := newRecordingNotifier()
	svc := NewService(cfg, engine, notifier, mapFetcher{}, loggy.NewNoopLogger())

	collections, err := svc.RetrieveCollections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, collections)
}

func TestRetrieveItems(t *testing.T) {
	engine := decsync.NewFakeEngine("test-app")
	engine.AddCollection("contacts", "alice", "")
	engine.AddEntry("contacts", "alice", []string{"resources", "1"}, "null", codec.Encode([]byte("hello")))
	engine.AddEntry("contacts", "alice", []string{"resources", "2"}, "null", codec.DeletionMarker)
	engine.AddEntry("contacts", "alice", []string{"info"}, "null", `"ignored"`)

	notifier := newRecordingNotifier()
	svc := newTestService(engine, notifier, mapFetcher{})

	collection := Collection{RemoteID: "contacts/alice"}
	items, err := svc.RetrieveItems(context.Background(), collection)
	require.NoError(t, err)

	// Only the live entry survives; the deletion marker and the entry
	// outside the resources prefix do not become items.
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].RemoteID)
	assert.Equal(t, []byte("hello"), items[0].Payload)
	assert.Equal(t, "text/directory", items[0].MimeType)

	assert.Equal(t, items, notifier.items["contacts/alice"])
}

func TestRetrieveItemsSupersededEntry(t *testing.T) {
	engine := decsync.NewFakeEngine("test-app")
	engine.AddCollection("calendars", "work", "")
	engine.AddEntry("calendars", "work", []string{"resources", "evt"}, "null", codec.Encode([]byte("first")))
	engine.AddEntry("calendars", "work", []string{"resources", "evt"}, "null", codec.Encode([]byte("second")))

	svc := newTestService(engine, newRecordingNotifier(), mapFetcher{})

	items, err := svc.RetrieveItems(context.Background(), Collection{RemoteID: "calendars/work"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []byte("second"), items[0].Payload)
	assert.Equal(t, "application/x-vnd.decbridge.calendar.event", items[0].MimeType)
}

func TestRetrieveItemsSessionFailure(t *testing.T) {
	engine := decsync.NewFakeEngine("test-app")
	engine.AddCollection("contacts", "good", "")
	engine.AddEntry("contacts", "good", []string{"resources", "ok"}, "null", codec.Encode([]byte("fine")))
	engine.AddCollection("contacts", "bad", "")
	engine.FailSessionsFor("contacts", "bad")

	notifier := newRecordingNotifier()
	svc := newTestService(engine, notifier, mapFetcher{})
	ctx := context.Background()

	_, err := svc.RetrieveItems(ctx, Collection{RemoteID: "contacts/bad"})
	require.Error(t, err)
	require.Len(t, notifier.statuses, 1)
	assert.Contains(t, notifier.statuses[0], "broken")
	assert.Contains(t, notifier.statuses[0], "failed to synchronize collection contacts/bad")

	// The failure is scoped to one collection.
	items, err := svc.RetrieveItems(ctx, Collection{RemoteID: "contacts/good"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestItemAddedThenRetrieved(t *testing.T) {
	engine := decsync.NewFakeEngine("test-app")
	engine.AddCollection("contacts", "alice", "")

	notifier := newRecordingNotifier()
	fetcher := mapFetcher{"contacts/alice#new-uid": []byte("BEGIN:VCARD")}
	svc := newTestService(engine, notifier, fetcher)
	ctx := context.Background()

	require.NoError(t, svc.ItemAdded(ctx, "contacts/alice", "new-uid"))
	assert.Equal(t, []string{"contacts/alice#new-uid"}, notifier.committed)

	items, err := svc.RetrieveItems(ctx, Collection{RemoteID: "contacts/alice"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new-uid", items[0].RemoteID)
	assert.Equal(t, []byte("BEGIN:VCARD"), items[0].Payload)
}

func TestItemAddedFetchFailure(t *testing.T) {
	engine := decsync.NewFakeEngine("test-app")
	engine.AddCollection("contacts", "alice", "")

	notifier := newRecordingNotifier()
	svc := newTestService(engine, notifier, mapFetcher{})

	err := svc.ItemAdded(context.Background(), "contacts/alice", "missing")
	require.Error(t, err)
	assert.Empty(t, notifier.committed, "a failed fetch must not commit the change")
}

func TestItemRemovedThenRetrieved(t *testing.T) {
	engine := decsync.NewFakeEngine("test-app")
	engine.AddCollection("contacts", "alice", "")
	engine.AddEntry("contacts", "alice", []string{"resources", "gone"}, "null", codec.Encode([]byte("soon gone")))

	notifier := newRecordingNotifier()
	svc := newTestService(engine, notifier, mapFetcher{})
	ctx := context.Background()

	require.NoError(t, svc.ItemRemoved(ctx, "contacts/alice", "gone"))
	assert.Equal(t, []string{"contacts/alice#gone"}, notifier.processed)

	items, err := svc.RetrieveItems(ctx, Collection{RemoteID: "contacts/alice"})
	require.NoError(t, err)
	assert.Empty(t, items, "a removed item must not reappear on the next sync")
}

func TestCheckStorage(t *testing.T) {
	t.Run("healthy storage comes online", func(t *testing.T) {
		engine := decsync.NewFakeEngine("test-app")
		notifier := newRecordingNotifier()
		svc := newTestService(engine, notifier, mapFetcher{})

		require.NoError(t, svc.CheckStorage())
		require.NotNil(t, notifier.online)
		assert.True(t, *notifier.online)
		assert.Empty(t, notifier.statuses)
	})

	t.Run("invalid storage goes broken and offline", func(t *testing.T) {
		engine := decsync.NewFakeEngine("test-app")
		notifier := newRecordingNotifier()
		cfg := testConfig()
		cfg.DecSync.Directory = ""
		svc := NewService(cfg, engine, notifier, mapFetcher{}, loggy.NewNoopLogger())

		require.Error(t, svc.CheckStorage())
		require.Len(t, notifier.statuses, 1)
		assert.Contains(t, notifier.statuses[0], "broken")
		assert.Contains(t, notifier.statuses[0], "invalid storage marker")
		require.NotNil(t, notifier.online)
		assert.False(t, *notifier.online)
		assert.Equal(t, 60*time.Second, notifier.offlineAfter)
	})
}
