package document

import "encoding/json"

// Tuple is a fixed-length ordered sequence. The resolver reconstructs a
// fresh Tuple instead of mutating in place, so callers can treat values as
// immutable.
type Tuple []any

// MarshalJSON renders the tuple as a plain array.
func (t Tuple) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any(t))
}

// TrackedList is an ordered container bound to an owning document and a
// field path. Mutations through its methods mark the owner's changed set,
// which is how the surrounding persistence logic detects in-place edits.
type TrackedList struct {
	Items []any

	owner *Document
	name  string
}

// NewTrackedList binds items to an owner and field path.
func NewTrackedList(items []any, owner *Document, name string) *TrackedList {
	return &TrackedList{Items: items, owner: owner, name: name}
}

// Owner returns the owning document.
func (l *TrackedList) Owner() *Document { return l.owner }

// Name returns the tracked field path.
func (l *TrackedList) Name() string { return l.name }

// Len returns the number of elements.
func (l *TrackedList) Len() int { return len(l.Items) }

// Get returns the element at index i.
func (l *TrackedList) Get(i int) any { return l.Items[i] }

// Set replaces the element at index i and marks the owner changed.
func (l *TrackedList) Set(i int, v any) {
	l.Items[i] = v
	l.markChanged()
}

// Append adds elements and marks the owner changed.
func (l *TrackedList) Append(vs ...any) {
	l.Items = append(l.Items, vs...)
	l.markChanged()
}

func (l *TrackedList) markChanged() {
	if l.owner != nil && l.name != "" {
		l.owner.MarkChanged(l.name)
	}
}

// MarshalJSON renders the underlying items.
func (l *TrackedList) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Items)
}

// EmbeddedList is the tracked list variant used for embedded documents.
// The attacher preserves it as a distinct container kind.
type EmbeddedList struct {
	TrackedList
}

// NewEmbeddedList binds embedded items to an owner and field path.
func NewEmbeddedList(items []any, owner *Document, name string) *EmbeddedList {
	return &EmbeddedList{TrackedList{Items: items, owner: owner, name: name}}
}

// TrackedMap is a string-keyed container bound to an owning document and a
// field path, with the same mutation tracking as TrackedList.
type TrackedMap struct {
	Items map[string]any

	owner *Document
	name  string
}

// NewTrackedMap binds items to an owner and field path.
func NewTrackedMap(items map[string]any, owner *Document, name string) *TrackedMap {
	return &TrackedMap{Items: items, owner: owner, name: name}
}

// Owner returns the owning document.
func (m *TrackedMap) Owner() *Document { return m.owner }

// Name returns the tracked field path.
func (m *TrackedMap) Name() string { return m.name }

// Len returns the number of entries.
func (m *TrackedMap) Len() int { return len(m.Items) }

// Get returns the value stored under k.
func (m *TrackedMap) Get(k string) any { return m.Items[k] }

// Set writes an entry and marks the owner changed.
func (m *TrackedMap) Set(k string, v any) {
	m.Items[k] = v
	m.markChanged()
}

// Delete removes an entry and marks the owner changed.
func (m *TrackedMap) Delete(k string) {
	delete(m.Items, k)
	m.markChanged()
}

func (m *TrackedMap) markChanged() {
	if m.owner != nil && m.name != "" {
		m.owner.MarkChanged(m.name)
	}
}

// MarshalJSON renders the underlying entries.
func (m *TrackedMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Items)
}
