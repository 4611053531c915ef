package bridge

import (
	"context"
	"fmt"

	"github.com/tildaslashalef/decbridge/internal/codec"
	"github.com/tildaslashalef/decbridge/internal/config"
	"github.com/tildaslashalef/decbridge/internal/decsync"
	"github.com/tildaslashalef/decbridge/internal/loggy"
	"github.com/tildaslashalef/decbridge/internal/pathmap"
)

// Writer applies local item mutations to the synchronization log. Each change
// is one timestamped entry append in its own session; changes are never
// batched, which keeps failures isolated per item.
type Writer struct {
	cfg    *config.Config
	engine decsync.Engine
	logger *loggy.Logger
}

// NewWriter creates a writer over the given engine.
func NewWriter(cfg *config.Config, engine decsync.Engine, logger *loggy.Logger) *Writer {
	return &Writer{cfg: cfg, engine: engine, logger: logger}
}

// WriteItem records an item creation or update: the encoded payload is
// written at the item's entry path. The item identifier is whatever the
// creating side chose; the bridge never fabricates identifiers.
func (w *Writer) WriteItem(ctx context.Context, collectionRemoteID, itemID string, payload []byte) error {
	return w.setEntry(ctx, collectionRemoteID, itemID, codec.Encode(payload))
}

// DeleteItem records an item removal by writing the deletion marker at the
// item's entry path.
func (w *Writer) DeleteItem(ctx context.Context, collectionRemoteID, itemID string) error {
	return w.setEntry(ctx, collectionRemoteID, itemID, codec.DeletionMarker)
}

func (w *Writer) setEntry(ctx context.Context, collectionRemoteID, itemID, value string) error {
	collType, name, err := pathmap.SplitCollectionID(collectionRemoteID)
	if err != nil {
		return fmt.Errorf("parsing collection remote id: %w", err)
	}
	if itemID == "" {
		return fmt.Errorf("empty item identifier")
	}

	session, err := w.engine.OpenSession(ctx, w.cfg.DecSync.Directory, collType, name)
	if err != nil {
		return fmt.Errorf("opening session for %s/%s: %w", collType, name, err)
	}
	defer session.Close()

	path := append(append([]string{}, EntryPathPrefix...), itemID)
	if err := session.SetEntry(ctx, path, EntryKeyNull, value); err != nil {
		return fmt.Errorf("writing entry for %s/%s item %s: %w", collType, name, itemID, err)
	}

	w.logger.Debug("wrote log entry",
		"collection", collectionRemoteID,
		"item", itemID,
		"deleted", value == codec.DeletionMarker)
	return nil
}
