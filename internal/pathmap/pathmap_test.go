package pathmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionIDRoundTrip(t *testing.T) {
	tests := []struct {
		collType string
		name     string
	}{
		{"contacts", "alice"},
		{"calendars", "work-calendar"},
		{"contacts", "name with spaces"},
	}

	for _, tt := range tests {
		id, err := CollectionID(tt.collType, tt.name)
		require.NoError(t, err)

		gotType, gotName, err := SplitCollectionID(id)
		require.NoError(t, err)
		assert.Equal(t, tt.collType, gotType)
		assert.Equal(t, tt.name, gotName)
	}
}

func TestItemIDRoundTrip(t *testing.T) {
	tests := []struct {
		collType string
		name     string
		itemID   string
	}{
		{"contacts", "alice", "12345"},
		{"calendars", "work", "event-uid@host"},
		// Item identifiers may contain the separator; they must survive.
		{"contacts", "bob", "resources/nested/id"},
		{"calendars", "home", "a/b/c/d/e"},
	}

	for _, tt := range tests {
		id, err := ItemID(tt.collType, tt.name, tt.itemID)
		require.NoError(t, err)

		gotType, gotName, gotItem, err := SplitItemID(id)
		require.NoError(t, err)
		assert.Equal(t, tt.collType, gotType)
		assert.Equal(t, tt.name, gotName)
		assert.Equal(t, tt.itemID, gotItem)
	}
}

func TestSeparatorRejectedInTypeAndName(t *testing.T) {
	_, err := CollectionID("cal/endars", "home")
	assert.ErrorIs(t, err, ErrReservedSeparator)

	_, err = CollectionID("calendars", "ho/me")
	assert.ErrorIs(t, err, ErrReservedSeparator)

	_, err = ItemID("cont/acts", "alice", "1")
	assert.ErrorIs(t, err, ErrReservedSeparator)
}

func TestSplitMalformed(t *testing.T) {
	for _, id := range []string{"", "contacts", "contacts/", "/alice"} {
		_, _, err := SplitCollectionID(id)
		assert.ErrorIs(t, err, ErrMalformedID, "collection id %q", id)
	}

	for _, id := range []string{"", "contacts", "contacts/alice", "contacts/alice/"} {
		_, _, _, err := SplitItemID(id)
		assert.ErrorIs(t, err, ErrMalformedID, "item id %q", id)
	}
}

func TestTypeFolderID(t *testing.T) {
	assert.Equal(t, "contacts/", TypeFolderID("contacts"))
}
