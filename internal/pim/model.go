// Package pim is the local personal-information-management store the bridge
// feeds: collections and items in SQLite, plus the change recorder that keeps
// local mutations until the bridge has committed them to the synchronization
// log.
package pim

import (
	"encoding/json"
	"time"

	"github.com/tildaslashalef/decbridge/internal/bridge"
	"github.com/tildaslashalef/decbridge/internal/ulid"
)

// Collection is a stored PIM collection. RemoteID carries the bridge's stable
// string key; ID is local row identity only.
type Collection struct {
	ID             string    `json:"id"`
	RemoteID       string    `json:"remote_id"`
	ParentRemoteID string    `json:"parent_remote_id"`
	Name           string    `json:"name"`
	MimeTypes      []string  `json:"mime_types"`
	Folder         bool      `json:"is_folder"`
	ReadOnly       bool      `json:"read_only"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewCollection builds a stored collection from its bridge projection.
func NewCollection(c bridge.Collection) *Collection {
	now := time.Now()
	return &Collection{
		ID:             ulid.GenerateWithPrefix(ulid.PrefixCollection).String(),
		RemoteID:       c.RemoteID,
		ParentRemoteID: c.ParentRemoteID,
		Name:           c.Name,
		MimeTypes:      c.ContentMimeTypes,
		Folder:         c.Folder,
		ReadOnly:       c.ReadOnly,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// MimeTypesJSON returns the MIME type list in its stored form.
func (c *Collection) MimeTypesJSON() ([]byte, error) {
	return json.Marshal(c.MimeTypes)
}

// Item is a stored PIM item. RemoteID is scoped to the parent collection.
type Item struct {
	ID                 string    `json:"id"`
	CollectionRemoteID string    `json:"collection_remote_id"`
	RemoteID           string    `json:"remote_id"`
	MimeType           string    `json:"mime_type"`
	Payload            []byte    `json:"payload"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewItem builds a stored item from its bridge projection.
func NewItem(collectionRemoteID string, i bridge.Item) *Item {
	now := time.Now()
	return &Item{
		ID:                 ulid.GenerateWithPrefix(ulid.PrefixItem).String(),
		CollectionRemoteID: collectionRemoteID,
		RemoteID:           i.RemoteID,
		MimeType:           i.MimeType,
		Payload:            i.Payload,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// ChangeOp is the kind of recorded local mutation.
type ChangeOp string

const (
	// ChangeWrite records an item creation or update.
	ChangeWrite ChangeOp = "write"

	// ChangeDelete records an item removal.
	ChangeDelete ChangeOp = "delete"
)

// Change is one recorded local mutation awaiting commitment to the log. The
// payload is not duplicated here; the bridge fetches it from the item row
// when the change is replayed.
type Change struct {
	ID                 string    `json:"id"`
	CollectionRemoteID string    `json:"collection_remote_id"`
	ItemRemoteID       string    `json:"item_remote_id"`
	Op                 ChangeOp  `json:"op"`
	Committed          bool      `json:"committed"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewChange records a pending mutation.
func NewChange(collectionRemoteID, itemRemoteID string, op ChangeOp) *Change {
	now := time.Now()
	return &Change{
		ID:                 ulid.GenerateWithPrefix(ulid.PrefixChange).String(),
		CollectionRemoteID: collectionRemoteID,
		ItemRemoteID:       itemRemoteID,
		Op:                 op,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
