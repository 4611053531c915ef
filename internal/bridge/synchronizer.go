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

// Synchronizer replays a collection's stored entries into PIM items.
type Synchronizer struct {
	cfg    *config.Config
	engine decsync.Engine
	logger *loggy.Logger
}

// NewSynchronizer creates a synchronizer over the given engine.
func NewSynchronizer(cfg *config.Config, engine decsync.Engine, logger *loggy.Logger) *Synchronizer {
	return &Synchronizer{cfg: cfg, engine: engine, logger: logger}
}

// Synchronize opens a session on the collection, replays every stored item
// entry and returns the live items. Deleted items (JSON null values) are
// never materialized; malformed values are warned about and skipped so a
// single corrupt entry cannot poison the item list. A session-open failure is
// a hard local failure for this collection and is returned to the caller.
//
// The replay covers stored history only; the bridge does not stay subscribed
// for push updates, so observing later remote writes takes another
// Synchronize call.
func (s *Synchronizer) Synchronize(ctx context.Context, collection Collection) ([]Item, error) {
	collType, name, err := pathmap.SplitCollectionID(collection.RemoteID)
	if err != nil {
		return nil, fmt.Errorf("parsing collection remote id: %w", err)
	}

	session, err := s.engine.OpenSession(ctx, s.cfg.DecSync.Directory, collType, name)
	if err != nil {
		return nil, fmt.Errorf("opening session for %s/%s: %w", collType, name, err)
	}
	defer session.Close()

	mimeType := CollectionType(collType).PrimaryMimeType()

	var items []Item
	err = session.ForEachStored(ctx, EntryPathPrefix, func(entry decsync.Entry) error {
		s.logger.Debug("replaying stored entry",
			"path", entry.Path,
			"datetime", entry.Datetime,
			"key", entry.Key)

		if len(entry.Path) < 2 {
			// Collection-scoped entries under the prefix carry no item.
			return nil
		}

		payload, present, err := codec.Decode(entry.Value)
		if err != nil {
			s.logger.Warn("skipping entry with malformed value",
				"path", entry.Path,
				"error", err)
			return nil
		}
		if !present {
			// Deletion marker: the item does not exist.
			return nil
		}

		items = append(items, Item{
			RemoteID: entry.Path[len(entry.Path)-1],
			MimeType: mimeType,
			Payload:  payload,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replaying entries for %s/%s: %w", collType, name, err)
	}

	s.logger.Debug("synchronized collection",
		"collection", collection.RemoteID,
		"items", len(items))
	return items, nil
}
