// Package bridge reconciles the synchronization log's flat, path-keyed data
// model with the PIM store's hierarchical, identity-based one. It enumerates
// log collections into a collection tree, replays log entries into items, and
// translates local item mutations back into log writes.
package bridge

import (
	"time"

	"github.com/tildaslashalef/decbridge/internal/pathmap"
)

// CollectionType is one of the fixed categories of synchronized data. The set
// is defined at build time; each type determines its folder name and the item
// payload MIME types it accepts.
type CollectionType string

const (
	// TypeCalendars holds iCalendar event payloads.
	TypeCalendars CollectionType = "calendars"

	// TypeContacts holds vCard payloads.
	TypeContacts CollectionType = "contacts"
)

// CollectionTypes is the fixed, ordered set of supported types.
var CollectionTypes = []CollectionType{TypeCalendars, TypeContacts}

// MimeTypes returns the payload MIME types accepted by collections of this
// type. Unknown types accept nothing.
func (t CollectionType) MimeTypes() []string {
	switch t {
	case TypeCalendars:
		return []string{"application/x-vnd.decbridge.calendar.event", "text/calendar"}
	case TypeContacts:
		return []string{"text/directory"}
	default:
		return nil
	}
}

// PrimaryMimeType returns the MIME type stamped on items of this type.
func (t CollectionType) PrimaryMimeType() string {
	mimes := t.MimeTypes()
	if len(mimes) == 0 {
		return ""
	}
	return mimes[0]
}

// FolderName returns the display name of the synthetic folder grouping all
// collections of this type.
func (t CollectionType) FolderName() string {
	return "DecSync " + string(t)
}

// MimeDirectory is the content type of a collection that only accepts
// sub-collections, never items.
const MimeDirectory = "inode/directory"

// Collection is the projection of a log collection (or synthetic type folder)
// into the PIM model. RemoteID is the stable string key that survives
// re-enumeration; the host store's own numeric identity is none of the
// bridge's business.
type Collection struct {
	RemoteID         string
	ParentRemoteID   string // empty means the root
	Name             string
	ContentMimeTypes []string
	ReadOnly         bool
	CanCreateSub     bool
	Folder           bool
}

// TypeFolder builds the synthetic read-only parent collection for one type.
// Type folders are recomputed on every enumeration and never persisted by the
// bridge.
func TypeFolder(t CollectionType) Collection {
	return Collection{
		RemoteID:         pathmap.TypeFolderID(string(t)),
		Name:             t.FolderName(),
		ContentMimeTypes: []string{MimeDirectory},
		CanCreateSub:     true,
		Folder:           true,
	}
}

// Item is the projection of a live log entry. RemoteID is the item-id path
// segment, scoped to the parent collection; the payload is opaque bytes whose
// semantics (iCalendar, vCard) the bridge never interprets.
type Item struct {
	RemoteID string
	MimeType string
	Payload  []byte
}

// StatusLevel classifies a status report to the host framework.
type StatusLevel int

const (
	// StatusIdle reports normal operation.
	StatusIdle StatusLevel = iota

	// StatusBroken reports a failure the host should surface; storage
	// level breakage also flips the bridge offline.
	StatusBroken
)

// String returns a readable form of the status level.
func (l StatusLevel) String() string {
	switch l {
	case StatusIdle:
		return "idle"
	case StatusBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// Notifier is the host-framework surface the bridge reports into.
type Notifier interface {
	// CollectionsRetrieved delivers the result of an enumeration.
	CollectionsRetrieved(collections []Collection)

	// ItemsRetrieved delivers the items of one collection.
	ItemsRetrieved(collectionRemoteID string, items []Item)

	// ChangeCommitted confirms that a local item write reached the log.
	ChangeCommitted(collectionRemoteID, itemRemoteID string)

	// ChangeProcessed confirms that a local item removal reached the log.
	ChangeProcessed(collectionRemoteID, itemRemoteID string)

	// Status reports bridge health.
	Status(level StatusLevel, message string)

	// SetOnline reflects storage-location reachability.
	SetOnline(online bool)

	// SetTemporaryOffline marks the bridge offline with a retry window.
	SetTemporaryOffline(retryAfter time.Duration)
}

// PayloadFetcher retrieves the full payload of a locally-changed item before
// it is written to the log. The host store owns payloads; change notifications
// carry identifiers only.
type PayloadFetcher interface {
	FetchPayload(collectionRemoteID, itemRemoteID string) ([]byte, error)
}

// EntryPathPrefix is the fixed path prefix under which item entries live in
// every collection's log.
var EntryPathPrefix = []string{"resources"}

// EntryKeyNull is the literal key written on item entries; the bridge keys
// items by path, not by entry key.
const EntryKeyNull = "null"
