package resolver

import (
	"context"
	"fmt"
	"time"

	document "github.com/modmdb/modm/internal/document"
	eventbus "github.com/modmdb/modm/internal/eventbus"
	events "github.com/modmdb/modm/internal/events"
	opid "github.com/modmdb/modm/internal/opid"
)

// Store is the raw-collection query surface the fetch stage consumes for
// generic references and for types without their own query capability.
// Session or transaction handles ride on ctx, opaque to the resolver.
//
// FindManyByID must return only the rows it found; missing identifiers are
// not an error. An error return is a transport failure and aborts the
// whole resolution.
type Store interface {
	FindManyByID(ctx context.Context, collection string, ids []any) ([]document.Raw, error)
}

// Cursor yields successive records from a query result. The resolver
// drains it up front so the scan sees a plain sequence.
type Cursor interface {
	// Next advances to the next record, reporting false at the end or on
	// error.
	Next(ctx context.Context) bool
	// Value returns the current record.
	Value() any
	// Err returns the error that stopped iteration, if any.
	Err() error
}

// Resolver resolves cross-document references embedded in nested records
// to a caller-specified depth with at most one bulk query per target
// collection per call.
//
// A Resolver is stateless: every top-level call builds its own private
// scan/fetch state, so one Resolver may serve concurrently scheduled
// resolutions.
type Resolver struct {
	store Store
}

// New creates a Resolver fetching raw rows through store.
func New(store Store) *Resolver {
	return &Resolver{store: store}
}

// resolution is the per-call state shared by the scan, fetch and attach
// phases of one top-level call. The phases run strictly in that order and
// never interleave.
type resolution struct {
	store    Store
	maxDepth int
	// proxies makes scan/attach unwrap deferred reference proxies
	// (suspending variant only).
	proxies bool
	// docType is the declared target type threaded from the owning field,
	// when the caller supplied an owner+field context.
	docType *document.Meta
	// skipUntypedGeneric suppresses generic-bucket fetches when the owning
	// field declared a container of references without element type.
	skipUntypedGeneric bool

	refs    *referenceMap
	objects map[objectKey]any
}

// Resolve dereferences the pointers reachable in items within maxDepth
// levels, blocking the calling goroutine on each bulk query. items may be
// a record, a sequence or mapping of records, a Cursor, or any nesting of
// containers and pointers. owner and field optionally identify the record
// field items came from; resolved containers are then re-wrapped in their
// owner-tracked form.
//
// Pointers whose targets are missing stay in the output unchanged. A
// failed bulk query or an unknown type discriminator aborts the call.
func (r *Resolver) Resolve(ctx context.Context, items any, maxDepth int, owner *document.Document, field string) (any, error) {
	return r.resolve(ctx, items, maxDepth, owner, field, false)
}

// ResolveAsync is the suspending variant of Resolve: identical inputs and
// results, but every bulk query and per-identifier fallback is an explicit
// suspension point honoring ctx, deferred reference proxies are unwrapped,
// and types without bulk lookup degrade to per-identifier fetches.
func (r *Resolver) ResolveAsync(ctx context.Context, items any, maxDepth int, owner *document.Document, field string) (any, error) {
	return r.resolve(ctx, items, maxDepth, owner, field, true)
}

func (r *Resolver) resolve(ctx context.Context, items any, maxDepth int, owner *document.Document, field string, suspending bool) (any, error) {
	if items == nil {
		return nil, nil
	}
	if _, ok := items.(string); ok {
		return items, nil
	}

	mode := "blocking"
	if suspending {
		mode = "suspending"
	}
	ctx, _ = opid.NewContext(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.ResolveStart{Mode: mode, MaxDepth: maxDepth})
	out, buckets, fetched, err := r.run(ctx, items, maxDepth, owner, field, suspending)
	eventbus.Publish(ctx, events.ResolveFinish{
		Mode:     mode,
		MaxDepth: maxDepth,
		Buckets:  buckets,
		Fetched:  fetched,
		Err:      err,
		Duration: time.Since(start),
	})
	return out, err
}

func (r *Resolver) run(ctx context.Context, items any, maxDepth int, owner *document.Document, field string, suspending bool) (any, int, int, error) {
	if cur, ok := items.(Cursor); ok {
		drained, err := drain(ctx, cur)
		if err != nil {
			return nil, 0, 0, err
		}
		items = drained
	}
	if docs, ok := items.([]*document.Document); ok {
		generic := make([]any, len(docs))
		for i, d := range docs {
			generic[i] = d
		}
		items = generic
	}

	s := &resolution{store: r.store, maxDepth: maxDepth, proxies: suspending}

	if owner != nil && field != "" {
		if f := owner.Meta().Field(field); f != nil {
			if (f.Kind == document.KindList || f.Kind == document.KindMap) && f.Elem == nil {
				s.skipUntypedGeneric = true
			}
			if leaf := f.Leaf(); leaf != nil && leaf.Kind == document.KindReference && leaf.Target != nil {
				s.docType = leaf.Target
				// already fully resolved collections skip the whole walk
				if allOfType(items, leaf.Target) {
					return items, 0, 0, nil
				}
				if !leaf.DBRef {
					items = bareIDsToRefs(items, leaf.Target)
				}
			}
		}
	}

	refs, err := s.findReferences(items, 0)
	if err != nil {
		return nil, 0, 0, err
	}
	s.refs = refs

	var objects map[objectKey]any
	if suspending {
		objects, err = s.fetchObjectsAsync(ctx)
	} else {
		objects, err = s.fetchObjects(ctx)
	}
	if err != nil {
		return nil, refs.buckets(), 0, err
	}
	s.objects = objects

	out, err := s.attachObjects(items, 0, owner, field)
	return out, refs.buckets(), len(objects), err
}

func drain(ctx context.Context, cur Cursor) ([]any, error) {
	var out []any
	for cur.Next(ctx) {
		out = append(out, cur.Value())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("drain cursor: %w", err)
	}
	return out, nil
}

// allOfType reports whether every element of a homogeneous collection is
// already a materialized document of the declared target type.
func allOfType(items any, target *document.Meta) bool {
	vals, ok := containerValues(items)
	if !ok {
		return false
	}
	for _, v := range vals {
		d, ok := v.(*document.Document)
		if !ok || d.Meta() != target {
			return false
		}
	}
	return true
}

// bareIDsToRefs rewrites bare identifiers stored by a reference field
// declared without full pointers into Refs against the declared target
// collection, recursing through nested lists and mappings.
func bareIDsToRefs(items any, target *document.Meta) any {
	switch t := items.(type) {
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = bareIDToRef(v, target)
		}
		return out
	case document.Tuple:
		out := make(document.Tuple, len(t))
		for i, v := range t {
			out[i] = bareIDToRef(v, target)
		}
		return out
	case *document.TrackedList:
		out := make([]any, len(t.Items))
		for i, v := range t.Items {
			out[i] = bareIDToRef(v, target)
		}
		return out
	case *document.EmbeddedList:
		out := make([]any, len(t.Items))
		for i, v := range t.Items {
			out[i] = bareIDToRef(v, target)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = bareIDToRef(v, target)
		}
		return out
	case *document.TrackedMap:
		out := make(map[string]any, len(t.Items))
		for k, v := range t.Items {
			out[k] = bareIDToRef(v, target)
		}
		return out
	default:
		return items
	}
}

func bareIDToRef(v any, target *document.Meta) any {
	switch v.(type) {
	case nil, document.Ref, document.LazyRef, *document.Document, document.ReferenceProxy:
		return v
	default:
		if isContainer(v) {
			return bareIDsToRefs(v, target)
		}
		return document.Ref{Collection: target.Collection, ID: v}
	}
}
