// Package pathmap maps between PIM remote identifiers and synchronization
// engine path segments. A remote identifier is a stable string key of the form
// "type/name" for collections and "type/name/itemID" for items; the numeric ID
// space belongs to the host store and must survive re-enumeration, so these
// string keys are the only identity carried across the bridge.
package pathmap

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins the segments of a remote identifier. It must never appear
// inside a collection type or collection name; item identifiers may contain it
// freely because the item segment is always the remainder of the identifier.
const Separator = "/"

var (
	// ErrMalformedID is returned when a remote identifier cannot be split
	// into the expected segments.
	ErrMalformedID = errors.New("malformed remote identifier")

	// ErrReservedSeparator is returned when a type or name contains the
	// separator character.
	ErrReservedSeparator = errors.New("segment contains reserved separator")
)

// CollectionID builds the remote identifier for a collection.
func CollectionID(collType, name string) (string, error) {
	if err := validateSegment(collType); err != nil {
		return "", fmt.Errorf("collection type %q: %w", collType, err)
	}
	if err := validateSegment(name); err != nil {
		return "", fmt.Errorf("collection name %q: %w", name, err)
	}
	return collType + Separator + name, nil
}

// SplitCollectionID recovers the (type, name) pair from a collection remote
// identifier.
func SplitCollectionID(remoteID string) (collType, name string, err error) {
	parts := strings.SplitN(remoteID, Separator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedID, remoteID)
	}
	return parts[0], parts[1], nil
}

// ItemID builds the remote identifier for an item within a collection. The
// item identifier is preserved verbatim, separators included.
func ItemID(collType, name, itemID string) (string, error) {
	collID, err := CollectionID(collType, name)
	if err != nil {
		return "", err
	}
	if itemID == "" {
		return "", fmt.Errorf("%w: empty item identifier", ErrMalformedID)
	}
	return collID + Separator + itemID, nil
}

// SplitItemID recovers the (type, name, itemID) triple from an item remote
// identifier. The item segment is the remainder after the second separator,
// so identifiers containing separators round-trip unchanged.
func SplitItemID(remoteID string) (collType, name, itemID string, err error) {
	parts := strings.SplitN(remoteID, Separator, 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrMalformedID, remoteID)
	}
	return parts[0], parts[1], parts[2], nil
}

// TypeFolderID builds the remote identifier of a synthetic type folder. The
// trailing separator keeps it distinct from any concrete collection.
func TypeFolderID(collType string) string {
	return collType + Separator
}

func validateSegment(s string) error {
	if s == "" {
		return ErrMalformedID
	}
	if strings.Contains(s, Separator) {
		return ErrReservedSeparator
	}
	return nil
}
