package pim

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tildaslashalef/decbridge/internal/loggy"
)

var (
	// ErrCollectionNotFound is returned when a collection is not found
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrItemNotFound is returned when an item is not found
	ErrItemNotFound = errors.New("item not found")
)

// Repository defines the persistence operations for the PIM store
type Repository interface {
	// Collection operations
	SaveCollection(ctx context.Context, collection *Collection) error
	GetCollectionByRemoteID(ctx context.Context, remoteID string) (*Collection, error)
	ListCollections(ctx context.Context) ([]*Collection, error)
	PruneCollections(ctx context.Context, keepRemoteIDs []string) error

	// Item operations
	ReplaceItems(ctx context.Context, collectionRemoteID string, items []*Item) error
	ListItems(ctx context.Context, collectionRemoteID string) ([]*Item, error)
	GetItem(ctx context.Context, collectionRemoteID, remoteID string) (*Item, error)
	UpsertItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, collectionRemoteID, remoteID string) error

	// Change recorder operations
	RecordChange(ctx context.Context, change *Change) error
	ListPendingChanges(ctx context.Context) ([]*Change, error)
	MarkChangesCommitted(ctx context.Context, collectionRemoteID, itemRemoteID string) error
}

// SQLRepository implements Repository using SQLite
type SQLRepository struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRepository creates a new PIM SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) Repository {
	return &SQLRepository{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// SaveCollection inserts a collection or updates the existing row with the
// same remote identifier. The local row ID survives re-enumeration.
func (r *SQLRepository) SaveCollection(ctx context.Context, collection *Collection) error {
	now := time.Now()
	if collection.CreatedAt.IsZero() {
		collection.CreatedAt = now
	}
	collection.UpdatedAt = now

	mimeTypes, err := collection.MimeTypesJSON()
	if err != nil {
		return fmt.Errorf("encoding mime types: %w", err)
	}

	query, args, err := r.builder.
		Insert("collections").
		Columns(
			"id",
			"remote_id",
			"parent_remote_id",
			"name",
			"mime_types",
			"is_folder",
			"read_only",
			"created_at",
			"updated_at",
		).
		Values(
			collection.ID,
			collection.RemoteID,
			collection.ParentRemoteID,
			collection.Name,
			mimeTypes,
			collection.Folder,
			collection.ReadOnly,
			collection.CreatedAt,
			collection.UpdatedAt,
		).
		Suffix(`ON CONFLICT(remote_id) DO UPDATE SET
			parent_remote_id = excluded.parent_remote_id,
			name = excluded.name,
			mime_types = excluded.mime_types,
			is_folder = excluded.is_folder,
			read_only = excluded.read_only,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building save collection query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving collection: %w", err)
	}

	r.logger.Debug("saved collection", "remote_id", collection.RemoteID, "name", collection.Name)
	return nil
}

// GetCollectionByRemoteID retrieves a collection by its remote identifier
func (r *SQLRepository) GetCollectionByRemoteID(ctx context.Context, remoteID string) (*Collection, error) {
	query, args, err := r.builder.
		Select(collectionColumns()...).
		From("collections").
		Where(sq.Eq{"remote_id": remoteID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get collection query: %w", err)
	}

	collection, err := scanCollection(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("getting collection: %w", err)
	}
	return collection, nil
}

// ListCollections retrieves all collections ordered by remote identifier
func (r *SQLRepository) ListCollections(ctx context.Context) ([]*Collection, error) {
	query, args, err := r.builder.
		Select(collectionColumns()...).
		From("collections").
		OrderBy("remote_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list collections query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var collections []*Collection
	for rows.Next() {
		collection, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning collection row: %w", err)
		}
		collections = append(collections, collection)
	}
	return collections, rows.Err()
}

// PruneCollections removes collections whose remote identifiers are no longer
// part of an enumeration, along with their items.
func (r *SQLRepository) PruneCollections(ctx context.Context, keepRemoteIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning prune transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.builder.
		Delete("items").
		Where(sq.NotEq{"collection_remote_id": keepRemoteIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building prune items query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("pruning items: %w", err)
	}

	query, args, err = r.builder.
		Delete("collections").
		Where(sq.NotEq{"remote_id": keepRemoteIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building prune collections query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("pruning collections: %w", err)
	}

	return tx.Commit()
}

// ReplaceItems swaps a collection's items for the given set in one
// transaction, so a synchronize result lands atomically.
func (r *SQLRepository) ReplaceItems(ctx context.Context, collectionRemoteID string, items []*Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.builder.
		Delete("items").
		Where(sq.Eq{"collection_remote_id": collectionRemoteID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete items query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting old items: %w", err)
	}

	for _, item := range items {
		query, args, err := insertItemQuery(r.builder, item)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting item %s: %w", item.RemoteID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing replace transaction: %w", err)
	}

	r.logger.Debug("replaced items", "collection", collectionRemoteID, "count", len(items))
	return nil
}

// ListItems retrieves all items of one collection ordered by remote identifier
func (r *SQLRepository) ListItems(ctx context.Context, collectionRemoteID string) ([]*Item, error) {
	query, args, err := r.builder.
		Select(itemColumns()...).
		From("items").
		Where(sq.Eq{"collection_remote_id": collectionRemoteID}).
		OrderBy("remote_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list items query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetItem retrieves one item by collection and remote identifier
func (r *SQLRepository) GetItem(ctx context.Context, collectionRemoteID, remoteID string) (*Item, error) {
	query, args, err := r.builder.
		Select(itemColumns()...).
		From("items").
		Where(sq.Eq{
			"collection_remote_id": collectionRemoteID,
			"remote_id":            remoteID,
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get item query: %w", err)
	}

	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// UpsertItem inserts an item or replaces the payload of the existing row
func (r *SQLRepository) UpsertItem(ctx context.Context, item *Item) error {
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	query, args, err := r.builder.
		Insert("items").
		Columns(itemColumns()...).
		Values(
			item.ID,
			item.CollectionRemoteID,
			item.RemoteID,
			item.MimeType,
			item.Payload,
			item.CreatedAt,
			item.UpdatedAt,
		).
		Suffix(`ON CONFLICT(collection_remote_id, remote_id) DO UPDATE SET
			mime_type = excluded.mime_type,
			payload = excluded.payload,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert item query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting item: %w", err)
	}
	return nil
}

// DeleteItem removes one item row
func (r *SQLRepository) DeleteItem(ctx context.Context, collectionRemoteID, remoteID string) error {
	query, args, err := r.builder.
		Delete("items").
		Where(sq.Eq{
			"collection_remote_id": collectionRemoteID,
			"remote_id":            remoteID,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete item query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// RecordChange stores a pending local mutation
func (r *SQLRepository) RecordChange(ctx context.Context, change *Change) error {
	query, args, err := r.builder.
		Insert("changes").
		Columns(
			"id",
			"collection_remote_id",
			"item_remote_id",
			"op",
			"committed",
			"created_at",
			"updated_at",
		).
		Values(
			change.ID,
			change.CollectionRemoteID,
			change.ItemRemoteID,
			string(change.Op),
			change.Committed,
			change.CreatedAt,
			change.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building record change query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("recording change: %w", err)
	}

	r.logger.Debug("recorded change",
		"collection", change.CollectionRemoteID,
		"item", change.ItemRemoteID,
		"op", change.Op)
	return nil
}

// ListPendingChanges retrieves uncommitted changes oldest-first
func (r *SQLRepository) ListPendingChanges(ctx context.Context) ([]*Change, error) {
	query, args, err := r.builder.
		Select(
			"id",
			"collection_remote_id",
			"item_remote_id",
			"op",
			"committed",
			"created_at",
			"updated_at",
		).
		From("changes").
		Where(sq.Eq{"committed": false}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list pending changes query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pending changes: %w", err)
	}
	defer rows.Close()

	var changes []*Change
	for rows.Next() {
		var change Change
		var op string
		if err := rows.Scan(
			&change.ID,
			&change.CollectionRemoteID,
			&change.ItemRemoteID,
			&op,
			&change.Committed,
			&change.CreatedAt,
			&change.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning change row: %w", err)
		}
		change.Op = ChangeOp(op)
		changes = append(changes, &change)
	}
	return changes, rows.Err()
}

// MarkChangesCommitted marks all pending changes for one item as committed
func (r *SQLRepository) MarkChangesCommitted(ctx context.Context, collectionRemoteID, itemRemoteID string) error {
	query, args, err := r.builder.
		Update("changes").
		Set("committed", true).
		Set("updated_at", time.Now()).
		Where(sq.Eq{
			"collection_remote_id": collectionRemoteID,
			"item_remote_id":       itemRemoteID,
			"committed":            false,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building mark committed query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("marking changes committed: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func collectionColumns() []string {
	return []string{
		"id",
		"remote_id",
		"parent_remote_id",
		"name",
		"mime_types",
		"is_folder",
		"read_only",
		"created_at",
		"updated_at",
	}
}

func scanCollection(row scanner) (*Collection, error) {
	var collection Collection
	var mimeTypes []byte
	if err := row.Scan(
		&collection.ID,
		&collection.RemoteID,
		&collection.ParentRemoteID,
		&collection.Name,
		&mimeTypes,
		&collection.Folder,
		&collection.ReadOnly,
		&collection.CreatedAt,
		&collection.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(mimeTypes) > 0 {
		if err := json.Unmarshal(mimeTypes, &collection.MimeTypes); err != nil {
			return nil, fmt.Errorf("decoding mime types: %w", err)
		}
	}
	return &collection, nil
}

func itemColumns() []string {
	return []string{
		"id",
		"collection_remote_id",
		"remote_id",
		"mime_type",
		"payload",
		"created_at",
		"updated_at",
	}
}

func scanItem(row scanner) (*Item, error) {
	var item Item
	if err := row.Scan(
		&item.ID,
		&item.CollectionRemoteID,
		&item.RemoteID,
		&item.MimeType,
		&item.Payload,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}

func insertItemQuery(builder sq.StatementBuilderType, item *Item) (string, []interface{}, error) {
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}

	query, args, err := builder.
		Insert("items").
		Columns(itemColumns()...).
		Values(
			item.ID,
			item.CollectionRemoteID,
			item.RemoteID,
			item.MimeType,
			item.Payload,
			item.CreatedAt,
			item.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("building insert item query: %w", err)
	}
	return query, args, nil
}
