package bridge

import (
	"context"

	"github.com/tildaslashalef/decbridge/internal/codec"
	"github.com/tildaslashalef/decbridge/internal/config"
	"github.com/tildaslashalef/decbridge/internal/decsync"
	"github.com/tildaslashalef/decbridge/internal/loggy"
	"github.com/tildaslashalef/decbridge/internal/pathmap"
)

// staticInfoNameKey is the JSON-encoded static metadata key holding a
// collection's human-friendly display name.
const staticInfoNameKey = `"name"`

// Enumerator lists the log's collections and materializes the PIM collection
// hierarchy: one synthetic folder per type, with the concrete collections
// underneath.
type Enumerator struct {
	cfg    *config.Config
	engine decsync.Engine
	logger *loggy.Logger
}

// NewEnumerator creates an enumerator over the given engine.
func NewEnumerator(cfg *config.Config, engine decsync.Engine, logger *loggy.Logger) *Enumerator {
	return &Enumerator{cfg: cfg, engine: engine, logger: logger}
}

// Enumerate recomputes the full collection list. It has no side effects
// beyond short-lived engine sessions and is safe to call repeatedly. A
// collection whose session cannot be opened is logged and skipped; the rest
// of the enumeration still succeeds.
func (e *Enumerator) Enumerate(ctx context.Context) ([]Collection, error) {
	dir := e.cfg.DecSync.Directory
	if dir == "" {
		return nil, nil
	}

	var collections []Collection
	for _, collType := range CollectionTypes {
		folder := TypeFolder(collType)
		collections = append(collections, folder)

		names, err := e.engine.ListCollections(ctx, dir, string(collType), e.cfg.DecSync.MaxCollections)
		if err != nil {
			e.logger.Warn("failed to list collections", "type", collType, "error", err)
			continue
		}
		e.logger.Debug("listed collections", "type", collType, "count", len(names))

		for _, name := range names {
			coll, err := e.describeCollection(ctx, collType, name, folder.RemoteID)
			if err != nil {
				e.logger.Warn("skipping collection",
					"type", collType,
					"name", name,
					"error", err)
				continue
			}
			collections = append(collections, coll)
		}
	}
	return collections, nil
}

// describeCollection opens a short-lived session to validate the collection
// and builds its PIM projection.
func (e *Enumerator) describeCollection(ctx context.Context, collType CollectionType, name, parentID string) (Collection, error) {
	dir := e.cfg.DecSync.Directory

	session, err := e.engine.OpenSession(ctx, dir, string(collType), name)
	if err != nil {
		return Collection{}, err
	}
	defer session.Close()

	remoteID, err := pathmap.CollectionID(string(collType), name)
	if err != nil {
		return Collection{}, err
	}

	return Collection{
		RemoteID:         remoteID,
		ParentRemoteID:   parentID,
		Name:             e.displayName(ctx, collType, name),
		ContentMimeTypes: collType.MimeTypes(),
		ReadOnly:         true,
	}, nil
}

// displayName fetches a collection's friendly name from static metadata. The
// stored value is JSON-string-encoded; malformed or missing metadata falls
// back to the engine-assigned name rather than failing the enumeration.
func (e *Enumerator) displayName(ctx context.Context, collType CollectionType, name string) string {
	raw, err := e.engine.StaticInfo(ctx, e.cfg.DecSync.Directory, string(collType), name, staticInfoNameKey)
	if err != nil || raw == "" {
		return name
	}

	decoded, present, err := codec.Decode(raw)
	if err != nil || !present {
		e.logger.Warn("malformed display name metadata, using collection name",
			"type", collType,
			"name", name,
			"error", err)
		return name
	}
	return string(decoded)
}
