package resolver

import (
	"fmt"
	"strconv"

	document "github.com/modmdb/modm/internal/document"
	registry "github.com/modmdb/modm/internal/registry"
)

// objectKey addresses one fetched object: physical collection plus
// identifier. Attach lookups use exactly this key; anything absent means
// the original pointer stays in the output.
type objectKey struct {
	collection string
	id         any
}

func (s *resolution) lookup(ref document.Ref) (any, bool) {
	obj, ok := s.objects[objectKey{collection: ref.Collection, id: ref.ID}]
	return obj, ok
}

// attachObjects re-walks the same shape the scanner saw, substituting
// fetched objects for pointers while preserving container kinds. Records
// are updated in place; containers are reconstructed, re-wrapping
// owner-tracked kinds with the owner and field path they arrived with.
func (s *resolution) attachObjects(items any, depth int, owner *document.Document, name string) (any, error) {
	if isEmpty(items) {
		switch items.(type) {
		case *document.TrackedList, *document.EmbeddedList, *document.TrackedMap:
			// keep the tracked wrapper so later mutation tracking works
			return items, nil
		case document.Tuple:
			return items, nil
		}
		if owner != nil && name != "" {
			switch it := items.(type) {
			case map[string]any:
				return document.NewTrackedMap(it, owner, name), nil
			case []any:
				return document.NewTrackedList(it, owner, name), nil
			case nil:
				return document.NewTrackedList(nil, owner, name), nil
			}
		}
		return items, nil
	}

	if m, ok := asStringMap(items); ok {
		if ref, ok := document.TaggedRef(m); ok {
			if obj, ok := s.lookup(ref); ok {
				return obj, nil
			}
			return items, nil
		}
		if cls, ok := document.TaggedClass(m); ok {
			return s.attachTagged(m, cls, depth)
		}
	}

	if doc, ok := items.(*document.Document); ok {
		if err := s.attachDocumentFields(doc, depth+1, owner, name, ""); err != nil {
			return nil, err
		}
		return doc, nil
	}

	depth++
	if isMapLike(items) {
		src, _ := asStringMap(items)
		data := make(map[string]any, len(src))
		for _, k := range sortedKeys(src) {
			nv, err := s.attachElement(k, src[k], depth, owner, name)
			if err != nil {
				return nil, err
			}
			data[k] = nv
		}
		if owner != nil && name != "" {
			return document.NewTrackedMap(data, owner, name), nil
		}
		return data, nil
	}

	elems, ok := containerValues(items)
	if !ok {
		// scalars and other leaves pass through untouched
		return items, nil
	}
	data := make([]any, len(elems))
	for i, v := range elems {
		nv, err := s.attachElement(strconv.Itoa(i), v, depth, owner, name)
		if err != nil {
			return nil, err
		}
		data[i] = nv
	}
	return s.rewrapList(items, data, owner, name), nil
}

// attachTagged materializes a raw mapping carrying a type discriminator
// and resolves the pointers inside its fields.
func (s *resolution) attachTagged(m map[string]any, cls string, depth int) (any, error) {
	meta, err := registry.Get(cls)
	if err != nil {
		return nil, err
	}
	doc, err := document.FromRaw(meta, m)
	if err != nil {
		return nil, err
	}
	data := doc.Data()
	delete(data, document.ClassKey)
	attached, err := s.attachObjects(data, depth, doc, "")
	if err != nil {
		return nil, err
	}
	if nd, ok := attached.(map[string]any); ok {
		doc.ReplaceData(nd)
	}
	doc.Data()[document.ClassKey] = cls
	return doc, nil
}

// attachElement applies the substitution rules to one container element.
func (s *resolution) attachElement(key string, v any, depth int, owner *document.Document, name string) (any, error) {
	switch fv := v.(type) {
	case *document.Document:
		if err := s.attachDocumentFields(fv, depth, owner, name, key); err != nil {
			return nil, err
		}
		return fv, nil
	case document.Ref:
		if obj, ok := s.lookup(fv); ok {
			return obj, nil
		}
		return v, nil
	case document.ReferenceProxy:
		if s.proxies {
			if ref, ok := proxyRef(fv, nil); ok {
				if obj, ok := s.lookup(ref); ok {
					return obj, nil
				}
			}
		}
		return v, nil
	default:
		if isContainer(v) && depth <= s.maxDepth {
			itemName := name
			if name != "" {
				itemName = name + "." + key
			}
			return s.attachObjects(v, depth-1, owner, itemName)
		}
		return v, nil
	}
}

// attachDocumentFields writes resolved objects back into a record's
// reference fields in place.
func (s *resolution) attachDocumentFields(doc *document.Document, depth int, owner *document.Document, name, key string) error {
	meta := doc.Meta()
	data := doc.Data()
	for _, fname := range fieldNames(doc) {
		f := meta.Field(fname)
		v := data[fname]

		if s.proxies {
			if p, ok := v.(document.ReferenceProxy); ok {
				if ref, ok := proxyRef(p, f); ok {
					if obj, ok := s.lookup(ref); ok {
						data[fname] = obj
					}
				}
				continue
			}
		}

		switch fv := v.(type) {
		case document.LazyRef:
			// marked not-to-resolve
			continue
		case document.Ref:
			if obj, ok := s.lookup(fv); ok {
				data[fname] = obj
			}
		default:
			if m, ok := asStringMap(v); ok {
				if ref, ok := document.TaggedRef(m); ok {
					if obj, ok := s.lookup(ref); ok {
						data[fname] = obj
					}
					continue
				}
			}
			if isContainer(v) && depth <= s.maxDepth {
				itemName := fmt.Sprintf("%s.%s.%s", name, key, fname)
				nv, err := s.attachObjects(v, depth, owner, itemName)
				if err != nil {
					return err
				}
				data[fname] = nv
			}
		}
	}
	return nil
}

// rewrapList reconstructs the output container in the kind the input had.
// Fixed-length sequences stay fixed; owner-tracked kinds are re-wrapped
// only when an owner and field path were supplied.
func (s *resolution) rewrapList(items any, data []any, owner *document.Document, name string) any {
	if _, ok := items.(document.Tuple); ok {
		return document.Tuple(data)
	}
	if owner != nil && name != "" {
		if _, ok := items.(*document.EmbeddedList); ok {
			return document.NewEmbeddedList(data, owner, name)
		}
		return document.NewTrackedList(data, owner, name)
	}
	return data
}

// proxyRef recovers the pointer behind a deferred reference proxy, falling
// back to the enclosing field's declared target for bare identifiers.
func proxyRef(p document.ReferenceProxy, f *document.Field) (document.Ref, bool) {
	if ref, ok := p.Ref(); ok {
		return ref, true
	}
	if f != nil && f.Target != nil {
		if p.Value != nil {
			return document.Ref{Collection: f.Target.Collection, ID: p.Value}, true
		}
	}
	return document.Ref{}, false
}

func isMapLike(v any) bool {
	switch v.(type) {
	case map[string]any, *document.TrackedMap:
		return true
	default:
		return false
	}
}
