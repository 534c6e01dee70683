package resolver

import (
	"testing"

	document "github.com/modmdb/modm/internal/document"
	registry "github.com/modmdb/modm/internal/registry"
)

// Fixture types shared across the resolver tests. Each builder returns a
// fresh Meta so tests can attach their own query capabilities without
// leaking state into each other.

func userMeta() *document.Meta {
	return document.NewMeta("User", "users",
		&document.Field{Name: "_id"},
		&document.Field{Name: "name"},
	)
}

func postMeta(user *document.Meta) *document.Meta {
	return document.NewMeta("Post", "posts",
		&document.Field{Name: "_id"},
		&document.Field{Name: "title"},
		&document.Field{Name: "author", Kind: document.KindReference, Target: user, DBRef: true},
	)
}

// groupMeta declares a container-of-references field, with or without full
// pointers depending on dbref.
func groupMeta(user *document.Meta, dbref bool) *document.Meta {
	return document.NewMeta("Group", "groups",
		&document.Field{Name: "_id"},
		&document.Field{Name: "members", Kind: document.KindList,
			Elem: &document.Field{Kind: document.KindReference, Target: user, DBRef: dbref}},
	)
}

func mustDoc(t *testing.T, meta *document.Meta, raw document.Raw) *document.Document {
	t.Helper()
	doc, err := document.FromRaw(meta, raw)
	if err != nil {
		t.Fatalf("materialize %s: %v", meta.Name, err)
	}
	return doc
}

// withRegistry registers metas for the duration of one test.
func withRegistry(t *testing.T, metas ...*document.Meta) {
	t.Helper()
	registry.Reset()
	for _, m := range metas {
		registry.Register(m)
	}
	t.Cleanup(registry.Reset)
}
