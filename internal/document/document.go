package document

import (
	"encoding/json"
	"fmt"
)

// Raw is a raw database row as produced by the persistence layer.
type Raw = map[string]any

// Document is a materialized record: a document type plus its current
// field values. Values may be scalars, Refs, containers of either, or
// nested Documents.
type Document struct {
	meta    *Meta
	data    map[string]any
	changed map[string]struct{}
}

// New creates an empty document of the given type.
func New(meta *Meta) *Document {
	return &Document{meta: meta, data: make(map[string]any)}
}

// FromRaw materializes a raw row into a document of the given type.
// Declared lazy-reference fields are wrapped so the resolver skips them,
// and declared embedded documents are materialized recursively. Undeclared
// row fields are kept as-is.
func FromRaw(meta *Meta, raw Raw) (*Document, error) {
	if meta == nil {
		return nil, fmt.Errorf("materialize row: nil document type")
	}
	d := New(meta)
	for k, v := range raw {
		d.data[k] = v
	}
	for _, name := range meta.FieldOrder {
		f := meta.Fields[name]
		v, ok := d.data[name]
		if !ok || v == nil {
			continue
		}
		switch f.Kind {
		case KindLazyReference:
			switch rv := v.(type) {
			case LazyRef:
				// already wrapped
			case Ref:
				d.data[name] = LazyRef{Ref: rv, Target: f.Target}
			default:
				if f.Target != nil {
					d.data[name] = LazyRef{Ref: Ref{Collection: f.Target.Collection, ID: rv}, Target: f.Target}
				}
			}
		case KindEmbedded:
			if f.Target == nil {
				continue
			}
			switch ev := v.(type) {
			case *Document:
				// already materialized
			case map[string]any:
				sub, err := FromRaw(f.Target, ev)
				if err != nil {
					return nil, fmt.Errorf("materialize %s.%s: %w", meta.Name, name, err)
				}
				d.data[name] = sub
			default:
				return nil, fmt.Errorf("materialize %s.%s: expected mapping, got %T", meta.Name, name, v)
			}
		}
	}
	return d, nil
}

// Meta returns the document's declared type.
func (d *Document) Meta() *Meta { return d.meta }

// ID returns the document's identifier, or nil when unsaved.
func (d *Document) ID() any { return d.data["_id"] }

// Get returns the current value of a field.
func (d *Document) Get(name string) any { return d.data[name] }

// Set writes a field value and records the change.
func (d *Document) Set(name string, v any) {
	d.data[name] = v
	d.MarkChanged(name)
}

// Data exposes the live field-value map. The resolver writes resolved
// objects back through it; tracked containers report mutations against it.
func (d *Document) Data() map[string]any { return d.data }

// ReplaceData swaps the document's field-value map wholesale. Used by the
// resolver when it rebuilds a materialized record's values.
func (d *Document) ReplaceData(data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	d.data = data
}

// MarkChanged records that the field path was mutated since load.
func (d *Document) MarkChanged(path string) {
	if d.changed == nil {
		d.changed = make(map[string]struct{})
	}
	d.changed[path] = struct{}{}
}

// Changed reports whether the field path was mutated since load.
func (d *Document) Changed(path string) bool {
	_, ok := d.changed[path]
	return ok
}

// ChangedFields returns every recorded mutated field path.
func (d *Document) ChangedFields() []string {
	out := make([]string, 0, len(d.changed))
	for p := range d.changed {
		out = append(out, p)
	}
	return out
}

func (d *Document) String() string {
	if d == nil {
		return "Document(nil)"
	}
	return fmt.Sprintf("Document(%s, %v)", d.meta.Name, d.ID())
}

// MarshalJSON renders the document's field values.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.data)
}

type refJSON struct {
	Collection string `json:"$ref"`
	ID         any    `json:"$id"`
}

func marshalRefJSON(r Ref) ([]byte, error) {
	return json.Marshal(refJSON{Collection: r.Collection, ID: r.ID})
}
