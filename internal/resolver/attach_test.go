package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	document "github.com/modmdb/modm/internal/document"
)

func objectsWith(t *testing.T, meta *document.Meta, rows ...document.Raw) map[objectKey]any {
	t.Helper()
	objects := make(map[objectKey]any)
	for _, row := range rows {
		doc := mustDoc(t, meta, row)
		objects[objectKey{collection: meta.Collection, id: row["_id"]}] = doc
	}
	return objects
}

func TestAttachObjects_SubstitutesDocumentField(t *testing.T) {
	user := userMeta()
	post := postMeta(user)
	doc := mustDoc(t, post, document.Raw{
		"_id":    "p1",
		"author": document.Ref{Collection: "users", ID: "u1"},
	})

	s := &resolution{maxDepth: 1, objects: objectsWith(t, user, document.Raw{"_id": "u1", "name": "ada"})}
	out, err := s.attachObjects(doc, 0, nil, "")
	require.NoError(t, err)
	require.Same(t, doc, out, "records are updated in place")

	author, ok := doc.Get("author").(*document.Document)
	require.True(t, ok)
	require.Equal(t, "ada", author.Get("name"))
}

func TestAttachObjects_MissingTargetKeepsPointer(t *testing.T) {
	user := userMeta()
	post := postMeta(user)
	ref := document.Ref{Collection: "users", ID: "ghost"}
	doc := mustDoc(t, post, document.Raw{"_id": "p1", "author": ref})

	s := &resolution{maxDepth: 1, objects: map[objectKey]any{}}
	_, err := s.attachObjects(doc, 0, nil, "")
	require.NoError(t, err)
	require.Equal(t, ref, doc.Get("author"))
}

func TestAttachObjects_SequenceAndMapping(t *testing.T) {
	user := userMeta()
	objects := objectsWith(t, user, document.Raw{"_id": "u1", "name": "ada"})

	t.Run("sequence keeps scalars", func(t *testing.T) {
		s := &resolution{maxDepth: 1, objects: objects}
		out, err := s.attachObjects([]any{document.Ref{Collection: "users", ID: "u1"}, 42}, 0, nil, "")
		require.NoError(t, err)
		got := out.([]any)
		require.Len(t, got, 2)
		require.IsType(t, (*document.Document)(nil), got[0])
		require.Equal(t, 42, got[1])
	})

	t.Run("mapping keeps keys", func(t *testing.T) {
		s := &resolution{maxDepth: 1, objects: objects}
		out, err := s.attachObjects(map[string]any{
			"hit":  document.Ref{Collection: "users", ID: "u1"},
			"miss": document.Ref{Collection: "users", ID: "u9"},
		}, 0, nil, "")
		require.NoError(t, err)
		got := out.(map[string]any)
		require.IsType(t, (*document.Document)(nil), got["hit"])
		require.Equal(t, document.Ref{Collection: "users", ID: "u9"}, got["miss"])
	})
}

func TestAttachObjects_FixedSequencePreserved(t *testing.T) {
	user := userMeta()
	s := &resolution{maxDepth: 1, objects: objectsWith(t, user, document.Raw{"_id": "u1"})}

	out, err := s.attachObjects(document.Tuple{document.Ref{Collection: "users", ID: "u1"}}, 0, nil, "")
	require.NoError(t, err)
	tup, ok := out.(document.Tuple)
	require.True(t, ok)
	require.IsType(t, (*document.Document)(nil), tup[0])
}

func TestAttachObjects_OwnerTrackedRewrap(t *testing.T) {
	user := userMeta()
	group := groupMeta(user, true)
	owner := mustDoc(t, group, document.Raw{"_id": "g1"})
	objects := objectsWith(t, user, document.Raw{"_id": "u1"})

	t.Run("list", func(t *testing.T) {
		s := &resolution{maxDepth: 1, objects: objects}
		items := document.NewTrackedList([]any{document.Ref{Collection: "users", ID: "u1"}}, nil, "")
		out, err := s.attachObjects(items, 0, owner, "members")
		require.NoError(t, err)
		got, ok := out.(*document.TrackedList)
		require.True(t, ok)
		require.Same(t, owner, got.Owner())
		require.Equal(t, "members", got.Name())
		require.IsType(t, (*document.Document)(nil), got.Get(0))

		require.False(t, owner.Changed("members"))
		got.Set(0, nil)
		require.True(t, owner.Changed("members"), "mutations after resolution mark the owner")
	})

	t.Run("embedded list keeps its kind", func(t *testing.T) {
		s := &resolution{maxDepth: 1, objects: objects}
		items := document.NewEmbeddedList([]any{document.Ref{Collection: "users", ID: "u1"}}, nil, "")
		out, err := s.attachObjects(items, 0, owner, "members")
		require.NoError(t, err)
		require.IsType(t, (*document.EmbeddedList)(nil), out)
	})

	t.Run("map", func(t *testing.T) {
		s := &resolution{maxDepth: 1, objects: objects}
		items := map[string]any{"lead": document.Ref{Collection: "users", ID: "u1"}}
		out, err := s.attachObjects(items, 0, owner, "members")
		require.NoError(t, err)
		got, ok := out.(*document.TrackedMap)
		require.True(t, ok)
		require.Same(t, owner, got.Owner())
		require.IsType(t, (*document.Document)(nil), got.Get("lead"))
	})

	t.Run("without owner the plain kinds come back", func(t *testing.T) {
		s := &resolution{maxDepth: 1, objects: objects}
		out, err := s.attachObjects([]any{document.Ref{Collection: "users", ID: "u1"}}, 0, nil, "")
		require.NoError(t, err)
		require.IsType(t, []any(nil), out)
	})
}

func TestAttachObjects_EmptyInputs(t *testing.T) {
	user := userMeta()
	group := groupMeta(user, true)
	owner := mustDoc(t, group, document.Raw{"_id": "g1"})
	s := &resolution{maxDepth: 1, objects: map[objectKey]any{}}

	t.Run("empty tracked container is kept as-is", func(t *testing.T) {
		items := document.NewTrackedList(nil, owner, "members")
		out, err := s.attachObjects(items, 0, owner, "members")
		require.NoError(t, err)
		require.Same(t, items, out)
	})

	t.Run("empty plain containers are bound to the owner", func(t *testing.T) {
		out, err := s.attachObjects([]any{}, 0, owner, "members")
		require.NoError(t, err)
		require.IsType(t, (*document.TrackedList)(nil), out)

		out, err = s.attachObjects(map[string]any{}, 0, owner, "members")
		require.NoError(t, err)
		require.IsType(t, (*document.TrackedMap)(nil), out)
	})

	t.Run("nil without owner passes through", func(t *testing.T) {
		out, err := s.attachObjects(nil, 0, nil, "")
		require.NoError(t, err)
		require.Nil(t, out)
	})
}

func TestAttachObjects_DepthBoundLeavesNestedPointers(t *testing.T) {
	user := userMeta()
	group := groupMeta(user, true)
	ref := document.Ref{Collection: "users", ID: "u1"}
	doc := mustDoc(t, group, document.Raw{"_id": "g1", "members": []any{ref}})

	s := &resolution{maxDepth: 0, objects: objectsWith(t, user, document.Raw{"_id": "u1"})}
	_, err := s.attachObjects(doc, 0, nil, "")
	require.NoError(t, err)
	require.Equal(t, []any{ref}, doc.Get("members"), "containers past the bound stay untouched")

	s = &resolution{maxDepth: 1, objects: objectsWith(t, user, document.Raw{"_id": "u1"})}
	_, err = s.attachObjects(doc, 0, nil, "")
	require.NoError(t, err)
	members := doc.Get("members").([]any)
	require.IsType(t, (*document.Document)(nil), members[0])
}

func TestAttachObjects_TaggedMappings(t *testing.T) {
	user := userMeta()
	withRegistry(t, user)

	t.Run("tagged pointer is replaced when fetched", func(t *testing.T) {
		s := &resolution{maxDepth: 1, objects: objectsWith(t, user, document.Raw{"_id": "u1"})}
		tagged := map[string]any{
			document.RefKey:   document.Ref{Collection: "users", ID: "u1"},
			document.ClassKey: "User",
		}
		out, err := s.attachObjects(tagged, 0, nil, "")
		require.NoError(t, err)
		require.IsType(t, (*document.Document)(nil), out)
	})

	t.Run("tagged pointer is kept when missing", func(t *testing.T) {
		s := &resolution{maxDepth: 1, objects: map[objectKey]any{}}
		tagged := map[string]any{
			document.RefKey:   document.Ref{Collection: "users", ID: "u9"},
			document.ClassKey: "User",
		}
		out, err := s.attachObjects(tagged, 0, nil, "")
		require.NoError(t, err)
		require.Equal(t, tagged, out)
	})

	t.Run("discriminated row materializes and keeps its tag", func(t *testing.T) {
		s := &resolution{maxDepth: 1, objects: map[objectKey]any{}}
		row := map[string]any{document.ClassKey: "User", "_id": "u2", "name": "joan"}
		out, err := s.attachObjects(row, 0, nil, "")
		require.NoError(t, err)
		doc, ok := out.(*document.Document)
		require.True(t, ok)
		require.Same(t, user, doc.Meta())
		require.Equal(t, "joan", doc.Get("name"))
		require.Equal(t, "User", doc.Get(document.ClassKey))
	})
}
