package document

import "context"

// Kind classifies a declared field.
type Kind int

const (
	// KindDynamic is an untyped field: scalars, or whatever the row carried.
	KindDynamic Kind = iota
	// KindReference is a typed pointer to a statically known document type.
	KindReference
	// KindGenericReference is a tagged pointer whose target type is only
	// known at runtime from the discriminator.
	KindGenericReference
	// KindLazyReference is a pointer explicitly excluded from automatic
	// resolution.
	KindLazyReference
	// KindEmbedded is a nested document stored inline.
	KindEmbedded
	// KindList is an ordered container; Elem describes the element field.
	KindList
	// KindMap is a string-keyed container; Elem describes the value field.
	KindMap
)

// Field declares one field of a document type.
type Field struct {
	Name string
	Kind Kind
	// Target is the declared target type for references and embedded
	// documents; nil when the target is generic or unknown.
	Target *Meta
	// Elem describes the element of a list/map field; nil for an untyped
	// container.
	Elem *Field
	// DBRef reports whether the field stores a full pointer rather than a
	// bare identifier.
	DBRef bool
}

// Leaf unwraps container declarations down to the innermost element field.
func (f *Field) Leaf() *Field {
	for f != nil && f.Elem != nil {
		f = f.Elem
	}
	return f
}

// QuerySet is the collection-query capability of a document type: the
// analogue of a type-bound query manager. Implementations issue real
// database lookups; the resolver only ever calls them with deduplicated
// identifier sets.
type QuerySet interface {
	// CollectionName returns the physical collection queried.
	CollectionName() string
	// Get loads a single document by identifier. A missing document is an
	// error; callers decide whether that is fatal.
	Get(ctx context.Context, id any) (*Document, error)
}

// BulkQuerySet is a QuerySet that can materialize many documents in one
// round-trip. The resolver prefers it and degrades to per-identifier Gets
// when it is absent.
type BulkQuerySet interface {
	QuerySet
	// InBulk returns the found documents keyed by identifier. Missing
	// identifiers are simply absent from the result.
	InBulk(ctx context.Context, ids []any) (map[any]*Document, error)
}

// Meta describes a registered document type: its registry name, physical
// collection, declared fields and query capability.
type Meta struct {
	// Name is the type name used as the registry key and discriminator.
	Name string
	// Collection is the physical collection name.
	Collection string
	// Fields maps field names to their declarations.
	Fields map[string]*Field
	// FieldOrder fixes iteration order over Fields; populated by NewMeta.
	FieldOrder []string
	// QuerySet is the type-bound query capability; nil for embedded types
	// or types not backed by a collection.
	QuerySet QuerySet
	// Dynamic marks a schemaless type: rows may carry undeclared fields
	// and they are kept as-is.
	Dynamic bool
}

// NewMeta builds a Meta with the given declared fields, preserving their
// order.
func NewMeta(name, collection string, fields ...*Field) *Meta {
	m := &Meta{
		Name:       name,
		Collection: collection,
		Fields:     make(map[string]*Field, len(fields)),
		FieldOrder: make([]string, 0, len(fields)),
	}
	for _, f := range fields {
		m.Fields[f.Name] = f
		m.FieldOrder = append(m.FieldOrder, f.Name)
	}
	return m
}

// NewDynamicMeta builds a schemaless Meta for a collection whose shape is
// not declared ahead of time.
func NewDynamicMeta(name, collection string) *Meta {
	m := NewMeta(name, collection)
	m.Dynamic = true
	return m
}

// Field returns the declaration for name, or nil.
func (m *Meta) Field(name string) *Field {
	if m == nil {
		return nil
	}
	return m.Fields[name]
}
