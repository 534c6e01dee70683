package document

import (
	"context"
	"fmt"
)

// Keys used by the tagged (generic) reference encoding inside raw mappings.
const (
	// RefKey holds the Ref value of a tagged reference.
	RefKey = "_ref"
	// ClassKey holds the type-name discriminator of a tagged reference
	// or of an embedded raw row.
	ClassKey = "_cls"
)

// Ref is an encoded cross-collection reference: the physical collection name
// of the target plus its identifier. It is a comparable value type so it can
// be used in map keys and deduplicated directly.
type Ref struct {
	Collection string
	ID         any
}

func (r Ref) String() string {
	return fmt.Sprintf("Ref(%s, %v)", r.Collection, r.ID)
}

// MarshalJSON renders the reference in DBRef-style extended JSON.
func (r Ref) MarshalJSON() ([]byte, error) {
	return marshalRefJSON(r)
}

// LazyRef is a reference explicitly marked to skip automatic resolution.
// It is structurally a Ref; the resolver recognizes and ignores it. The
// target document is loaded on demand through Fetch.
type LazyRef struct {
	Ref
	// Target is the declared target type, when known. Required for Fetch.
	Target *Meta
}

// Fetch loads the referenced document through the target type's query
// capability. It is invoked by surrounding record logic, never by the
// resolver.
func (l LazyRef) Fetch(ctx context.Context) (*Document, error) {
	if l.Target == nil || l.Target.QuerySet == nil {
		return nil, fmt.Errorf("lazy reference to %s: no query capability", l.Collection)
	}
	doc, err := l.Target.QuerySet.Get(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("lazy reference to %s: %w", l.Collection, err)
	}
	return doc, nil
}

// TaggedRef extracts the Ref from a tagged mapping. The second result
// reports whether m carries the tagged encoding at all.
func TaggedRef(m map[string]any) (Ref, bool) {
	v, ok := m[RefKey]
	if !ok {
		return Ref{}, false
	}
	ref, ok := v.(Ref)
	return ref, ok
}

// TaggedClass extracts the type-name discriminator from a tagged mapping.
func TaggedClass(m map[string]any) (string, bool) {
	v, ok := m[ClassKey]
	if !ok {
		return "", false
	}
	cls, ok := v.(string)
	return cls, ok
}

// ReferenceProxy is a deferred-reference handle returned in place of a
// reference field's value when the owning record was constructed without
// the resolver. It wraps the raw reference data (a Ref or a bare
// identifier) and supports on-demand resolution. The resolver's suspending
// variant unwraps it to reach the underlying pointer instead of treating
// the proxy as an opaque leaf.
type ReferenceProxy struct {
	// Target is the field's declared target type; used to recover the
	// collection name when Value is a bare identifier.
	Target *Meta
	// Value is the underlying raw reference: a Ref or a bare identifier.
	Value any
}

// Ref recovers the full pointer behind the proxy. It reports false when
// neither a Ref nor a target type is available to name the collection.
func (p ReferenceProxy) Ref() (Ref, bool) {
	switch v := p.Value.(type) {
	case Ref:
		return v, true
	case LazyRef:
		return v.Ref, true
	case nil:
		return Ref{}, false
	default:
		if p.Target == nil {
			return Ref{}, false
		}
		return Ref{Collection: p.Target.Collection, ID: v}, true
	}
}

// Fetch loads the referenced document on demand.
func (p ReferenceProxy) Fetch(ctx context.Context) (*Document, error) {
	ref, ok := p.Ref()
	if !ok {
		return nil, fmt.Errorf("reference proxy: no underlying reference")
	}
	if p.Target == nil || p.Target.QuerySet == nil {
		return nil, fmt.Errorf("reference proxy to %s: no query capability", ref.Collection)
	}
	doc, err := p.Target.QuerySet.Get(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("reference proxy to %s: %w", ref.Collection, err)
	}
	return doc, nil
}
