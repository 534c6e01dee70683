package resolver

import (
	"context"
	"fmt"
	"time"

	document "github.com/modmdb/modm/internal/document"
	eventbus "github.com/modmdb/modm/internal/eventbus"
	events "github.com/modmdb/modm/internal/events"
)

// fetchObjectsAsync is the suspending twin of fetchObjects. The contract
// and the resulting object map are identical; the difference is the I/O
// path: every bulk query and per-identifier fallback call is an explicit
// suspension point honoring ctx, and a type whose query capability lacks
// bulk lookup degrades to one Get per identifier with individual failures
// swallowed.
func (s *resolution) fetchObjectsAsync(ctx context.Context) (map[objectKey]any, error) {
	objects := make(map[objectKey]any)
	for _, b := range s.refs.order {
		if b.target != nil && b.target.QuerySet != nil {
			if err := s.fetchTypedAsync(ctx, b, objects); err != nil {
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

func (s *resolution) fetchTypedAsync(ctx context.Context, b bucket, objects map[objectKey]any) error {
	qs := b.target.QuerySet
	col := qs.CollectionName()
	refs := s.pending(b, col, objects)
	if len(refs) == 0 {
		return nil
	}

	if bqs, ok := qs.(document.BulkQuerySet); ok {
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

	// degraded path: one lookup per identifier; a bad identifier must not
	// abort the batch, but cancellation must
	start := time.Now()
	eventbus.Publish(ctx, events.FetchStart{Collection: col, IDs: len(refs)})
	found := 0
	for _, id := range refs {
		if err := ctx.Err(); err != nil {
			eventbus.Publish(ctx, events.FetchFinish{Collection: col, Found: found, Err: err, Duration: time.Since(start)})
			return err
		}
		doc, err := qs.Get(ctx, id)
		if err != nil || doc == nil {
			continue
		}
		objects[objectKey{collection: col, id: id}] = doc
		found++
	}
	eventbus.Publish(ctx, events.FetchFinish{Collection: col, Found: found, Duration: time.Since(start)})
	return nil
}
