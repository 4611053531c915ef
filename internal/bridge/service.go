package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/tildaslashalef/decbridge/internal/config"
	"github.com/tildaslashalef/decbridge/internal/decsync"
	"github.com/tildaslashalef/decbridge/internal/loggy"
)

// Service is the bridge facade the host framework drives. It composes the
// enumerator, synchronizer and writer, reports results and health through the
// Notifier, and fetches full payloads for local changes through the
// PayloadFetcher.
type Service struct {
	cfg      *config.Config
	engine   decsync.Engine
	notifier Notifier
	fetcher  PayloadFetcher
	logger   *loggy.Logger

	enumerator   *Enumerator
	synchronizer *Synchronizer
	writer       *Writer
}

// NewService creates a bridge service.
func NewService(
	cfg *config.Config,
	engine decsync.Engine,
	notifier Notifier,
	fetcher PayloadFetcher,
	logger *loggy.Logger,
) *Service {
	return &Service{
		cfg:          cfg,
		engine:       engine,
		notifier:     notifier,
		fetcher:      fetcher,
		logger:       logger,
		enumerator:   NewEnumerator(cfg, engine, logger),
		synchronizer: NewSynchronizer(cfg, engine, logger),
		writer:       NewWriter(cfg, engine, logger),
	}
}

// CheckStorage verifies the configured storage location, retrying behind a
// constant backoff so a briefly unavailable mount does not flip the bridge
// offline. On failure the broken status is reported once, together with the
// fixed offline window after which the host may retry.
func (s *Service) CheckStorage() error {
	dir := s.cfg.DecSync.Directory

	check := func() error {
		err := s.engine.CheckStorage(dir)
		if errors.Is(err, decsync.ErrInvalidInfo) || errors.Is(err, decsync.ErrUnsupportedVersion) {
			// A bad marker or version will not heal between retries.
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(s.cfg.DecSync.CheckRetryDelay),
		uint64(s.cfg.DecSync.CheckRetries),
	)

	if err := backoff.Retry(check, policy); err != nil {
		message := storageErrorMessage(err, dir)
		s.logger.Error("storage location check failed", "dir", dir, "error", err)
		s.notifier.Status(StatusBroken, message)
		s.notifier.SetOnline(false)
		s.notifier.SetTemporaryOffline(s.cfg.DecSync.OfflineRetryWindow)
		return fmt.Errorf("checking storage location: %w", err)
	}

	s.notifier.SetOnline(true)
	return nil
}

// storageErrorMessage maps the engine's check failures onto the status
// messages surfaced to the host.
func storageErrorMessage(err error, dir string) string {
	switch {
	case errors.Is(err, decsync.ErrInvalidInfo):
		return fmt.Sprintf("%s: found invalid storage marker", dir)
	case errors.Is(err, decsync.ErrUnsupportedVersion):
		return fmt.Sprintf("%s: unsupported storage version", dir)
	default:
		return fmt.Sprintf("%s: unknown storage error", dir)
	}
}

// RetrieveCollections enumerates the collection hierarchy and delivers it to
// the host.
func (s *Service) RetrieveCollections(ctx context.Context) ([]Collection, error) {
	collections, err := s.enumerator.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	s.notifier.CollectionsRetrieved(collections)
	return collections, nil
}

// RetrieveItems replays one collection's stored entries and delivers the live
// items to the host. Any synchronization failure, whether opening the session
// or replaying entries, is surfaced as a broken status and returns no items;
// the bridge does not retry, the host's own re-fetch policy does.
func (s *Service) RetrieveItems(ctx context.Context, collection Collection) ([]Item, error) {
	items, err := s.synchronizer.Synchronize(ctx, collection)
	if err != nil {
		s.notifier.Status(StatusBroken, fmt.Sprintf("failed to synchronize collection %s", collection.RemoteID))
		return nil, err
	}
	s.notifier.ItemsRetrieved(collection.RemoteID, items)
	return items, nil
}

// ItemAdded handles a local item creation. The change notification carries
// identifiers only, so the full payload is fetched from the host store first;
// if the fetch fails the change stays uncommitted and the host's change
// recorder will replay it later.
func (s *Service) ItemAdded(ctx context.Context, collectionRemoteID, itemRemoteID string) error {
	payload, err := s.fetcher.FetchPayload(collectionRemoteID, itemRemoteID)
	if err != nil {
		s.logger.Warn("couldn't add item: payload fetch failed",
			"collection", collectionRemoteID,
			"item", itemRemoteID,
			"error", err)
		return fmt.Errorf("fetching payload: %w", err)
	}

	if err := s.writer.WriteItem(ctx, collectionRemoteID, itemRemoteID, payload); err != nil {
		return err
	}
	s.notifier.ChangeCommitted(collectionRemoteID, itemRemoteID)
	return nil
}

// ItemChanged handles a local item update. An update is a write of the new
// payload at the same entry path; the log's own ordering supersedes the old
// entry.
func (s *Service) ItemChanged(ctx context.Context, collectionRemoteID, itemRemoteID string) error {
	return s.ItemAdded(ctx, collectionRemoteID, itemRemoteID)
}

// ItemRemoved handles a local item deletion by writing the deletion marker.
func (s *Service) ItemRemoved(ctx context.Context, collectionRemoteID, itemRemoteID string) error {
	if err := s.writer.DeleteItem(ctx, collectionRemoteID, itemRemoteID); err != nil {
		return err
	}
	s.notifier.ChangeProcessed(collectionRemoteID, itemRemoteID)
	return nil
}
