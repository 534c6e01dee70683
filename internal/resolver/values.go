package resolver

import (
	"fmt"
	"sort"

	document "github.com/modmdb/modm/internal/document"
)

// isEmpty reports whether v is nothing to work on: nil or a container with
// no elements. Documents are never empty.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case document.Tuple:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case []*document.Document:
		return len(t) == 0
	case *document.TrackedList:
		return t == nil || len(t.Items) == 0
	case *document.EmbeddedList:
		return t == nil || len(t.Items) == 0
	case *document.TrackedMap:
		return t == nil || len(t.Items) == 0
	default:
		return false
	}
}

// isContainer reports whether v is one of the container shapes the resolver
// walks into.
func isContainer(v any) bool {
	switch v.(type) {
	case []any, document.Tuple, map[string]any, []*document.Document,
		*document.TrackedList, *document.EmbeddedList, *document.TrackedMap:
		return true
	default:
		return false
	}
}

// asStringMap unwraps v to its string-keyed mapping when it has one.
func asStringMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case *document.TrackedMap:
		if t == nil {
			return nil, false
		}
		return t.Items, true
	default:
		return nil, false
	}
}

// containerValues returns the element values of a list-like or map-like
// container, in deterministic order. It reports false for anything else.
func containerValues(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case document.Tuple:
		return t, true
	case []*document.Document:
		out := make([]any, len(t))
		for i, d := range t {
			out[i] = d
		}
		return out, true
	case *document.TrackedList:
		return t.Items, true
	case *document.EmbeddedList:
		return t.Items, true
	case map[string]any:
		return mapValues(t), true
	case *document.TrackedMap:
		return mapValues(t.Items), true
	default:
		return nil, false
	}
}

func mapValues(m map[string]any) []any {
	out := make([]any, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k])
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sortIDs fixes the identifier order of a bulk query so equivalent calls
// issue equivalent queries.
func sortIDs(ids []any) {
	sort.Slice(ids, func(i, j int) bool {
		return fmt.Sprint(ids[i]) < fmt.Sprint(ids[j])
	})
}

// fieldNames returns the field names to walk for a document: the declared
// fields in declaration order, plus, for dynamic types, any undeclared
// data keys in sorted order.
func fieldNames(doc *document.Document) []string {
	meta := doc.Meta()
	names := make([]string, 0, len(meta.FieldOrder))
	names = append(names, meta.FieldOrder...)
	if !meta.Dynamic {
		return names
	}
	data := doc.Data()
	extras := make([]string, 0, len(data))
	for k := range data {
		if _, declared := meta.Fields[k]; !declared {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	return append(names, extras...)
}
