package pim

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/decbridge/internal/loggy"
)

// newTestRepository creates a repository over a mock database
func newTestRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{
		db:      db,
		logger:  loggy.NewNoopLogger(),
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

func TestCollectionRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock database")
	defer db.Close()

	repo := newTestRepository(db)
	ctx := context.Background()

	sample := &Collection{
		ID:             "col-01HTEST",
		RemoteID:       "contacts/personal",
		ParentRemoteID: "contacts/",
		Name:           "Personal",
		MimeTypes:      []string{"text/directory"},
		ReadOnly:       true,
	}

	t.Run("SaveCollection", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO collections").
			WithArgs(
				sample.ID,
				sample.RemoteID,
				sample.ParentRemoteID,
				sample.Name,
				sqlmock.AnyArg(),
				sample.Folder,
				sample.ReadOnly,
				sqlmock.AnyArg(),
				sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.SaveCollection(ctx, sample)
		assert.NoError(t, err, "Failed to save collection")
	})

	t.Run("GetCollectionByRemoteID", func(t *testing.T) {
		rows := sqlmock.NewRows(collectionColumns()).
			AddRow(
				sample.ID,
				sample.RemoteID,
				sample.ParentRemoteID,
				sample.Name,
				[]byte(`["text/directory"]`),
				sample.Folder,
				sample.ReadOnly,
				time.Now(),
				time.Now(),
			)

		mock.ExpectQuery("SELECT .+ FROM collections WHERE remote_id = ?").
			WithArgs(sample.RemoteID).
			WillReturnRows(rows)

		got, err := repo.GetCollectionByRemoteID(ctx, sample.RemoteID)
		require.NoError(t, err, "Failed to get collection")
		assert.Equal(t, sample.RemoteID, got.RemoteID)
		assert.Equal(t, []string{"text/directory"}, got.MimeTypes)
		assert.True(t, got.ReadOnly)
	})

	t.Run("GetCollectionNotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT .+ FROM collections WHERE remote_id = ?").
			WithArgs("calendars/missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetCollectionByRemoteID(ctx, "calendars/missing")
		assert.ErrorIs(t, err, ErrCollectionNotFound)
	})

	t.Run("ListCollections", func(t *testing.T) {
		rows := sqlmock.NewRows(collectionColumns()).
			AddRow("col-1", "contacts/", "", "DecSync contacts", []byte(`[]`), true, false, time.Now(), time.Now()).
			AddRow("col-2", "contacts/personal", "contacts/", "Personal", []byte(`["text/directory"]`), false, true, time.Now(), time.Now())

		mock.ExpectQuery("SELECT .+ FROM collections ORDER BY remote_id").
			WillReturnRows(rows)

		collections, err := repo.ListCollections(ctx)
		require.NoError(t, err, "Failed to list collections")
		require.Len(t, collections, 2)
		assert.True(t, collections[0].Folder)
		assert.Equal(t, "contacts/personal", collections[1].RemoteID)
	})

	t.Run("PruneCollections", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM items WHERE collection_remote_id NOT IN").
			WithArgs("contacts/", "contacts/personal").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM collections WHERE remote_id NOT IN").
			WithArgs("contacts/", "contacts/personal").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.PruneCollections(ctx, []string{"contacts/", "contacts/personal"})
		assert.NoError(t, err, "Failed to prune collections")
	})

	assert.NoError(t, mock.ExpectationsWereMet(), "Unfulfilled mock expectations")
}

func TestItemRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock database")
	defer db.Close()

	repo := newTestRepository(db)
	ctx := context.Background()

	sample := &Item{
		ID:                 "item-01HTEST",
		CollectionRemoteID: "contacts/personal",
		RemoteID:           "alice-uid",
		MimeType:           "text/directory",
		Payload:            []byte("BEGIN:VCARD\nEND:VCARD"),
	}

	t.Run("ReplaceItems", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM items WHERE collection_remote_id = ?").
			WithArgs(sample.CollectionRemoteID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec("INSERT INTO items").
			WithArgs(
				sample.ID,
				sample.CollectionRemoteID,
				sample.RemoteID,
				sample.MimeType,
				sample.Payload,
				sqlmock.AnyArg(),
				sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := repo.ReplaceItems(ctx, sample.CollectionRemoteID, []*Item{sample})
		assert.NoError(t, err, "Failed to replace items")
	})

	t.Run("ReplaceItemsEmpty", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM items WHERE collection_remote_id = ?").
			WithArgs("calendars/work").
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		err := repo.ReplaceItems(ctx, "calendars/work", nil)
		assert.NoError(t, err, "Failed to clear items")
	})

	t.Run("GetItem", func(t *testing.T) {
		rows := sqlmock.NewRows(itemColumns()).
			AddRow(
				sample.ID,
				sample.CollectionRemoteID,
				sample.RemoteID,
				sample.MimeType,
				sample.Payload,
				time.Now(),
				time.Now(),
			)

		mock.ExpectQuery("SELECT .+ FROM items WHERE").
			WithArgs(sample.CollectionRemoteID, sample.RemoteID).
			WillReturnRows(rows)

		got, err := repo.GetItem(ctx, sample.CollectionRemoteID, sample.RemoteID)
		require.NoError(t, err, "Failed to get item")
		assert.Equal(t, sample.Payload, got.Payload)
		assert.Equal(t, sample.MimeType, got.MimeType)
	})

	t.Run("GetItemNotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT .+ FROM items WHERE").
			WithArgs(sample.CollectionRemoteID, "missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetItem(ctx, sample.CollectionRemoteID, "missing")
		assert.ErrorIs(t, err, ErrItemNotFound)
	})

	t.Run("UpsertItem", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO items").
			WithArgs(
				sample.ID,
				sample.CollectionRemoteID,
				sample.RemoteID,
				sample.MimeType,
				sample.Payload,
				sqlmock.AnyArg(),
				sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.UpsertItem(ctx, sample)
		assert.NoError(t, err, "Failed to upsert item")
	})

	t.Run("DeleteItem", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM items WHERE").
			WithArgs(sample.CollectionRemoteID, sample.RemoteID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.DeleteItem(ctx, sample.CollectionRemoteID, sample.RemoteID)
		assert.NoError(t, err, "Failed to delete item")
	})

	assert.NoError(t, mock.ExpectationsWereMet(), "Unfulfilled mock expectations")
}

func TestChangeRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock database")
	defer db.Close()

	repo := newTestRepository(db)
	ctx := context.Background()

	change := NewChange("contacts/personal", "alice-uid", ChangeWrite)

	t.Run("RecordChange", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO changes").
			WithArgs(
				change.ID,
				change.CollectionRemoteID,
				change.ItemRemoteID,
				string(change.Op),
				change.Committed,
				sqlmock.AnyArg(),
				sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.RecordChange(ctx, change)
		assert.NoError(t, err, "Failed to record change")
	})

	t.Run("ListPendingChanges", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{
			"id", "collection_remote_id", "item_remote_id", "op", "committed", "created_at", "updated_at",
		}).
			AddRow("chg-1", "contacts/personal", "alice-uid", "write", false, time.Now(), time.Now()).
			AddRow("chg-2", "contacts/personal", "bob-uid", "delete", false, time.Now(), time.Now())

		mock.ExpectQuery("SELECT .+ FROM changes WHERE committed = ?").
			WithArgs(false).
			WillReturnRows(rows)

		changes, err := repo.ListPendingChanges(ctx)
		require.NoError(t, err, "Failed to list pending changes")
		require.Len(t, changes, 2)
		assert.Equal(t, ChangeWrite, changes[0].Op)
		assert.Equal(t, ChangeDelete, changes[1].Op)
	})

	t.Run("MarkChangesCommitted", func(t *testing.T) {
		mock.ExpectExec("UPDATE changes SET committed = ?").
			WithArgs(true, sqlmock.AnyArg(), "contacts/personal", false, "alice-uid").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkChangesCommitted(ctx, "contacts/personal", "alice-uid")
		assert.NoError(t, err, "Failed to mark changes committed")
	})

	assert.NoError(t, mock.ExpectationsWereMet(), "Unfulfilled mock expectations")
}
