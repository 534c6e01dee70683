package resolver

import (
	"context"
	"fmt"
	"time"

	document "github.com/modmdb/modm/internal/document"
	eventbus "github.com/modmdb/modm/internal/eventbus"
	events "github.com/modmdb/modm/internal/events"
	registry "github.com/modmdb/modm/internal/registry"
)

// fetchObjects turns the reference map into an object map: at most one
// bulk query per bucket, cross-bucket deduplication by (collection, id).
// A missing or undecodable row is dropped silently; a failed bulk query
// aborts the whole resolution.
func (s *resolution) fetchObjects(ctx context.Context) (map[objectKey]any, error) {
	objects := make(map[objectKey]any)
	for _, b := range s.refs.order {
		if b.target != nil && b.target.QuerySet != nil {
			if err := s.fetchTyped(ctx, b, objects); err != nil {
				return nil, err
			}
			continue
		}
		if err := s.fetchGeneric(ctx, b, objects); err != nil {
			return nil, err
		}
	}
	return objects, nil
}

// fetchTyped resolves one typed bucket through the target type's query
// capability.
func (s *resolution) fetchTyped(ctx context.Context, b bucket, objects map[objectKey]any) error {
	qs := b.target.QuerySet
	col := qs.CollectionName()
	refs := s.pending(b, col, objects)
	if len(refs) == 0 {
		return nil
	}
	bqs, ok := qs.(document.BulkQuerySet)
	if !ok {
		// no bulk-materialize helper on this type: fall back to the raw
		// collection query and materialize the rows ourselves
		return s.fetchRaw(ctx, col, refs, b.target, objects)
	}

	start := time.Now()
	eventbus.Publish(ctx, events.FetchStart{Collection: col, IDs: len(refs)})
	docs, err := bqs.InBulk(ctx, refs)
	eventbus.Publish(ctx, events.FetchFinish{Collection: col, Found: len(docs), Err: err, Duration: time.Since(start)})
	if err != nil {
		return fmt.Errorf("bulk lookup %s: %w", col, err)
	}
	for id, doc := range docs {
		objects[objectKey{collection: col, id: id}] = doc
	}
	return nil
}

// fetchGeneric resolves one generic bucket against its raw collection,
// determining each row's concrete type from its discriminator, the
// caller-threaded field type, or the registry's collection-name fallback.
func (s *resolution) fetchGeneric(ctx context.Context, b bucket, objects map[objectKey]any) error {
	if b.target == nil && s.skipUntypedGeneric {
		// container-of-references without element type: resolving would be
		// ambiguous, leave the raw pointers in place
		return nil
	}
	col := b.collectionName()
	refs := s.pending(b, col, objects)
	if len(refs) == 0 {
		return nil
	}
	return s.fetchRaw(ctx, col, refs, b.target, objects)
}

// fetchRaw issues the bulk find and materializes the returned rows.
func (s *resolution) fetchRaw(ctx context.Context, col string, refs []any, target *document.Meta, objects map[objectKey]any) error {
	start := time.Now()
	eventbus.Publish(ctx, events.FetchStart{Collection: col, IDs: len(refs)})
	rows, err := s.store.FindManyByID(ctx, col, refs)
	eventbus.Publish(ctx, events.FetchFinish{Collection: col, Found: len(rows), Err: err, Duration: time.Since(start)})
	if err != nil {
		return fmt.Errorf("bulk find %s: %w", col, err)
	}
	for _, row := range rows {
		meta, err := s.rowMeta(row, col, target)
		if err != nil {
			return err
		}
		doc, err := document.FromRaw(meta, row)
		if err != nil {
			// undecodable row: resolution miss, not an error
			continue
		}
		id := doc.ID()
		if id == nil {
			continue
		}
		objects[objectKey{collection: col, id: id}] = doc
	}
	return nil
}

// rowMeta decides which concrete type to materialize a raw row into:
// the row's own discriminator first, then the bucket's or caller's declared
// type, then the registry's pluralized-collection-name fallback. A
// discriminator the registry has never seen is fatal.
func (s *resolution) rowMeta(row document.Raw, col string, target *document.Meta) (*document.Meta, error) {
	if cls, ok := document.TaggedClass(row); ok {
		return registry.Get(cls)
	}
	if target != nil {
		return target, nil
	}
	if s.docType != nil {
		return s.docType, nil
	}
	return registry.ForCollection(col)
}

// pending returns the bucket's identifiers not yet present in the object
// map under col, in a stable order.
func (s *resolution) pending(b bucket, col string, objects map[objectKey]any) []any {
	set := s.refs.ids[b]
	refs := make([]any, 0, len(set))
	for id := range set {
		if _, ok := objects[objectKey{collection: col, id: id}]; !ok {
			refs = append(refs, id)
		}
	}
	sortIDs(refs)
	return refs
}
