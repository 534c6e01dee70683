package resolver

import (
	document "github.com/modmdb/modm/internal/document"
	registry "github.com/modmdb/modm/internal/registry"
)

// bucket identifies one target of pending references: either a statically
// known document type or, for generic references, a raw collection name.
type bucket struct {
	target     *document.Meta // typed bucket; nil for generic
	collection string         // generic bucket key; empty for typed
}

// collectionName returns the physical collection the bucket resolves
// against.
func (b bucket) collectionName() string {
	if b.target != nil {
		if b.target.QuerySet != nil {
			return b.target.QuerySet.CollectionName()
		}
		return b.target.Collection
	}
	return b.collection
}

// referenceMap is the scan result: pending identifiers grouped by target,
// deduplicated per bucket, with bucket discovery order preserved so the
// fetch stage issues queries deterministically.
type referenceMap struct {
	order []bucket
	ids   map[bucket]map[any]struct{}
}

func newReferenceMap() *referenceMap {
	return &referenceMap{ids: make(map[bucket]map[any]struct{})}
}

func (m *referenceMap) add(b bucket, id any) {
	set, ok := m.ids[b]
	if !ok {
		set = make(map[any]struct{})
		m.ids[b] = set
		m.order = append(m.order, b)
	}
	set[id] = struct{}{}
}

// merge folds sub into m. When rekey is non-nil every sub bucket is
// re-keyed to that type: an explicitly typed enclosing field wins over
// whatever generic bucket the nested walk inferred.
func (m *referenceMap) merge(sub *referenceMap, rekey *document.Meta) {
	for _, b := range sub.order {
		nb := b
		if rekey != nil {
			nb = bucket{target: rekey}
		}
		for id := range sub.ids[b] {
			m.add(nb, id)
		}
	}
}

func (m *referenceMap) buckets() int { return len(m.order) }

// refBucket picks the bucket for a pointer found in a declared field: the
// field's declared target type when it has one, else the raw collection
// carried by the pointer itself.
func refBucket(f *document.Field, ref document.Ref) bucket {
	if f != nil && f.Target != nil && f.Kind == document.KindReference {
		return bucket{target: f.Target}
	}
	return bucket{collection: ref.Collection}
}

// taggedBucket picks the bucket for a tagged mapping: the registry type
// named by its discriminator, else the raw collection of the embedded
// pointer. An unknown discriminator is fatal.
func taggedBucket(m map[string]any, ref document.Ref) (bucket, error) {
	if cls, ok := document.TaggedClass(m); ok {
		meta, err := registry.Get(cls)
		if err != nil {
			return bucket{}, err
		}
		return bucket{target: meta}, nil
	}
	return bucket{collection: ref.Collection}, nil
}

// findReferences walks items depth-first collecting every pointer still to
// be resolved, to the call's depth bound. It never mutates the tree.
// Deferred pointers are skipped; under the suspending variant, deferred
// reference proxies are unwrapped to their underlying pointer first.
func (s *resolution) findReferences(items any, depth int) (*referenceMap, error) {
	rm := newReferenceMap()
	if isEmpty(items) || depth >= s.maxDepth {
		return rm, nil
	}

	var vals []any
	if doc, ok := items.(*document.Document); ok {
		vals = []any{doc}
	} else if cv, ok := containerValues(items); ok {
		vals = cv
	} else {
		// scalars and other leaves: nothing to scan
		return rm, nil
	}

	depth++
	for _, item := range vals {
		switch it := item.(type) {
		case *document.Document:
			if err := s.scanDocument(rm, it, depth); err != nil {
				return nil, err
			}
		case document.LazyRef:
			// marked not-to-resolve
			continue
		case document.Ref:
			rm.add(bucket{collection: it.Collection}, it.ID)
		case document.ReferenceProxy:
			if !s.proxies {
				continue
			}
			if ref, ok := it.Ref(); ok {
				if it.Target != nil {
					rm.add(bucket{target: it.Target}, ref.ID)
				} else {
					rm.add(bucket{collection: ref.Collection}, ref.ID)
				}
			}
		default:
			if m, ok := asStringMap(item); ok {
				if ref, ok := document.TaggedRef(m); ok {
					b, err := taggedBucket(m, ref)
					if err != nil {
						return nil, err
					}
					rm.add(b, ref.ID)
					continue
				}
			}
			if isContainer(item) && depth-1 <= s.maxDepth {
				sub, err := s.findReferences(item, depth-1)
				if err != nil {
					return nil, err
				}
				rm.merge(sub, nil)
			}
		}
	}
	return rm, nil
}

// scanDocument collects pending pointers from a record's declared fields
// (plus dynamic extras for schemaless types).
func (s *resolution) scanDocument(rm *referenceMap, doc *document.Document, depth int) error {
	meta := doc.Meta()
	for _, name := range fieldNames(doc) {
		f := meta.Field(name)
		v := doc.Get(name)

		if s.proxies {
			if p, ok := v.(document.ReferenceProxy); ok {
				if ref, ok := p.Ref(); ok {
					rm.add(refBucket(f, ref), ref.ID)
				}
				continue
			}
		}

		switch fv := v.(type) {
		case document.LazyRef:
			// marked not-to-resolve
			continue
		case document.Ref:
			rm.add(refBucket(f, fv), fv.ID)
		default:
			if m, ok := asStringMap(v); ok {
				if ref, ok := document.TaggedRef(m); ok {
					b, err := taggedBucket(m, ref)
					if err != nil {
						return err
					}
					rm.add(b, ref.ID)
					continue
				}
			}
			if isContainer(v) && depth <= s.maxDepth {
				sub, err := s.findReferences(v, depth)
				if err != nil {
					return err
				}
				rm.merge(sub, elemTarget(f))
			}
		}
	}
	return nil
}

// elemTarget returns the declared element target type of a container
// field, when it has one.
func elemTarget(f *document.Field) *document.Meta {
	if f == nil || f.Elem == nil {
		return nil
	}
	if leaf := f.Elem.Leaf(); leaf != nil && leaf.Kind == document.KindReference {
		return leaf.Target
	}
	return nil
}
