package mongostore

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	document "github.com/modmdb/modm/internal/document"
)

// NormalizeRaw converts a decoded row into the document model's raw form:
// driver DBRef values (decoded either as primitive.DBRef or as plain
// {$ref, $id} mappings) become document.Refs, recursively through nested
// mappings and arrays. The engine never sees driver wire types.
func NormalizeRaw(row bson.M) document.Raw {
	out := make(document.Raw, len(row))
	for k, v := range row {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case primitive.DBRef:
		return document.Ref{Collection: t.Ref, ID: normalizeValue(t.ID)}
	case bson.M:
		if ref, ok := refFromMap(t); ok {
			return ref
		}
		return map[string]any(NormalizeRaw(t))
	case map[string]any:
		if ref, ok := refFromMap(bson.M(t)); ok {
			return ref
		}
		return map[string]any(NormalizeRaw(bson.M(t)))
	case bson.D:
		m := make(bson.M, len(t))
		for _, e := range t {
			m[e.Key] = e.Value
		}
		return normalizeValue(m)
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

// refFromMap recognizes the {$ref, $id} wire convention.
func refFromMap(m bson.M) (document.Ref, bool) {
	if len(m) < 2 || len(m) > 3 {
		return document.Ref{}, false
	}
	col, ok := m["$ref"].(string)
	if !ok {
		return document.Ref{}, false
	}
	id, ok := m["$id"]
	if !ok {
		return document.Ref{}, false
	}
	if len(m) == 3 {
		if _, ok := m["$db"]; !ok {
			return document.Ref{}, false
		}
	}
	return document.Ref{Collection: col, ID: normalizeValue(id)}, true
}
