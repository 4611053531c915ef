package pim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tildaslashalef/decbridge/internal/bridge"
	"github.com/tildaslashalef/decbridge/internal/loggy"
)

// Status is the bridge state as last reported to the store.
type Status struct {
	Online           bool
	Level            bridge.StatusLevel
	Message          string
	TemporaryOffline bool
	RetryAfter       time.Duration
}

// Service is the local store behind the bridge. It receives enumeration and
// synchronization results, answers payload lookups during change replay, and
// records local mutations until the bridge commits them.
type Service struct {
	repo   Repository
	logger *loggy.Logger

	mu     sync.Mutex
	status Status
}

// NewService creates a new PIM store service
func NewService(db *sql.DB, logger *loggy.Logger) *Service {
	return &Service{
		repo:   NewSQLRepository(db, logger),
		logger: logger,
		status: Status{Online: true, Level: bridge.StatusIdle},
	}
}

// Repository exposes the underlying repository
func (s *Service) Repository() Repository {
	return s.repo
}

// CurrentStatus returns the last reported bridge state
func (s *Service) CurrentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CollectionsRetrieved stores an enumeration result. Collections absent from
// the result are pruned together with their items.
func (s *Service) CollectionsRetrieved(collections []bridge.Collection) {
	ctx := context.Background()

	keep := make([]string, 0, len(collections))
	for _, c := range collections {
		keep = append(keep, c.RemoteID)

		stored, err := s.repo.GetCollectionByRemoteID(ctx, c.RemoteID)
		switch {
		case err == nil:
			stored.ParentRemoteID = c.ParentRemoteID
			stored.Name = c.Name
			stored.MimeTypes = c.ContentMimeTypes
			stored.Folder = c.Folder
			stored.ReadOnly = c.ReadOnly
			if err := s.repo.SaveCollection(ctx, stored); err != nil {
				s.logger.Error("failed to update collection", "remote_id", c.RemoteID, "error", err)
			}
		case errors.Is(err, ErrCollectionNotFound):
			if err := s.repo.SaveCollection(ctx, NewCollection(c)); err != nil {
				s.logger.Error("failed to store collection", "remote_id", c.RemoteID, "error", err)
			}
		default:
			s.logger.Error("failed to look up collection", "remote_id", c.RemoteID, "error", err)
		}
	}

	if err := s.repo.PruneCollections(ctx, keep); err != nil {
		s.logger.Error("failed to prune collections", "error", err)
	}

	s.logger.Info("collections retrieved", "count", len(collections))
}

// ItemsRetrieved stores a synchronization result for one collection
func (s *Service) ItemsRetrieved(collectionRemoteID string, items []bridge.Item) {
	stored := make([]*Item, 0, len(items))
	for _, i := range items {
		stored = append(stored, NewItem(collectionRemoteID, i))
	}

	if err := s.repo.ReplaceItems(context.Background(), collectionRemoteID, stored); err != nil {
		s.logger.Error("failed to store items", "collection", collectionRemoteID, "error", err)
		return
	}

	s.logger.Info("items retrieved", "collection", collectionRemoteID, "count", len(items))
}

// ChangeCommitted marks a written local change as committed to the log
func (s *Service) ChangeCommitted(collectionRemoteID, itemRemoteID string) {
	if err := s.repo.MarkChangesCommitted(context.Background(), collectionRemoteID, itemRemoteID); err != nil {
		s.logger.Error("failed to mark change committed",
			"collection", collectionRemoteID,
			"item", itemRemoteID,
			"error", err)
		return
	}
	s.logger.Debug("change committed", "collection", collectionRemoteID, "item", itemRemoteID)
}

// ChangeProcessed marks a deletion as committed to the log
func (s *Service) ChangeProcessed(collectionRemoteID, itemRemoteID string) {
	s.ChangeCommitted(collectionRemoteID, itemRemoteID)
}

// Status records a reported bridge state
func (s *Service) Status(level bridge.StatusLevel, message string) {
	s.mu.Lock()
	s.status.Level = level
	s.status.Message = message
	s.mu.Unlock()

	if level == bridge.StatusBroken {
		s.logger.Warn("bridge status", "level", level.String(), "message", message)
	} else {
		s.logger.Debug("bridge status", "level", level.String(), "message", message)
	}
}

// SetOnline records the reported connectivity state
func (s *Service) SetOnline(online bool) {
	s.mu.Lock()
	s.status.Online = online
	if online {
		s.status.TemporaryOffline = false
		s.status.RetryAfter = 0
	}
	s.mu.Unlock()
	s.logger.Debug("bridge connectivity", "online", online)
}

// SetTemporaryOffline records a requested retry window
func (s *Service) SetTemporaryOffline(retryAfter time.Duration) {
	s.mu.Lock()
	s.status.TemporaryOffline = true
	s.status.RetryAfter = retryAfter
	s.mu.Unlock()
	s.logger.Warn("bridge temporarily offline", "retry_after", retryAfter)
}

// FetchPayload returns the stored payload of one item. The bridge calls this
// while replaying a recorded write.
func (s *Service) FetchPayload(collectionRemoteID, itemRemoteID string) ([]byte, error) {
	item, err := s.repo.GetItem(context.Background(), collectionRemoteID, itemRemoteID)
	if err != nil {
		return nil, fmt.Errorf("fetching payload for %s/%s: %w", collectionRemoteID, itemRemoteID, err)
	}
	return item.Payload, nil
}

// AddLocalItem stores a locally created or updated item and records the
// pending write for the next replay.
func (s *Service) AddLocalItem(ctx context.Context, collectionRemoteID, itemRemoteID, mimeType string, payload []byte) error {
	if _, err := s.repo.GetCollectionByRemoteID(ctx, collectionRemoteID); err != nil {
		return err
	}

	item, err := s.repo.GetItem(ctx, collectionRemoteID, itemRemoteID)
	switch {
	case err == nil:
		item.MimeType = mimeType
		item.Payload = payload
	case errors.Is(err, ErrItemNotFound):
		item = NewItem(collectionRemoteID, bridge.Item{
			RemoteID: itemRemoteID,
			MimeType: mimeType,
			Payload:  payload,
		})
	default:
		return err
	}

	if err := s.repo.UpsertItem(ctx, item); err != nil {
		return err
	}
	return s.repo.RecordChange(ctx, NewChange(collectionRemoteID, itemRemoteID, ChangeWrite))
}

// RemoveLocalItem deletes a locally stored item and records the pending
// deletion for the next replay.
func (s *Service) RemoveLocalItem(ctx context.Context, collectionRemoteID, itemRemoteID string) error {
	if _, err := s.repo.GetItem(ctx, collectionRemoteID, itemRemoteID); err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, collectionRemoteID, itemRemoteID); err != nil {
		return err
	}
	return s.repo.RecordChange(ctx, NewChange(collectionRemoteID, itemRemoteID, ChangeDelete))
}

// ReplayPendingChanges pushes recorded local mutations through the bridge.
// Each change is replayed independently; a failed change stays pending.
func (s *Service) ReplayPendingChanges(ctx context.Context, b *bridge.Service) error {
	changes, err := s.repo.ListPendingChanges(ctx)
	if err != nil {
		return fmt.Errorf("listing pending changes: %w", err)
	}

	var failed int
	for _, change := range changes {
		var err error
		switch change.Op {
		case ChangeWrite:
			err = b.ItemChanged(ctx, change.CollectionRemoteID, change.ItemRemoteID)
		case ChangeDelete:
			err = b.ItemRemoved(ctx, change.CollectionRemoteID, change.ItemRemoteID)
		default:
			s.logger.Warn("skipping change with unknown op", "id", change.ID, "op", change.Op)
			continue
		}
		if err != nil {
			failed++
			s.logger.Warn("change replay failed",
				"collection", change.CollectionRemoteID,
				"item", change.ItemRemoteID,
				"op", change.Op,
				"error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d pending changes failed to replay", failed, len(changes))
	}
	return nil
}

// FullSync runs one complete pass: storage check, pending change replay,
// enumeration, then per-collection item synchronization. Collection failures
// are isolated so one broken collection does not block the rest.
func (s *Service) FullSync(ctx context.Context, b *bridge.Service) error {
	if err := b.CheckStorage(); err != nil {
		return fmt.Errorf("storage check: %w", err)
	}

	if err := s.ReplayPendingChanges(ctx, b); err != nil {
		s.logger.Warn("pending change replay incomplete", "error", err)
	}

	collections, err := b.RetrieveCollections(ctx)
	if err != nil {
		return fmt.Errorf("retrieving collections: %w", err)
	}

	var failed int
	for _, collection := range collections {
		if collection.Folder {
			continue
		}
		if _, err := b.RetrieveItems(ctx, collection); err != nil {
			failed++
			s.logger.Warn("collection sync failed", "collection", collection.RemoteID, "error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d collections failed to synchronize", failed)
	}
	return nil
}
