package document

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubQuerySet serves Get from a fixed row set.
type stubQuerySet struct {
	meta *Meta
	rows map[any]Raw
}

func (q *stubQuerySet) CollectionName() string { return q.meta.Collection }

func (q *stubQuerySet) Get(ctx context.Context, id any) (*Document, error) {
	row, ok := q.rows[id]
	if !ok {
		return nil, fmt.Errorf("%s %v: not found", q.meta.Collection, id)
	}
	return FromRaw(q.meta, row)
}

func TestTaggedEncoding(t *testing.T) {
	m := map[string]any{
		RefKey:   Ref{Collection: "users", ID: "u1"},
		ClassKey: "User",
	}

	ref, ok := TaggedRef(m)
	require.True(t, ok)
	require.Equal(t, Ref{Collection: "users", ID: "u1"}, ref)

	cls, ok := TaggedClass(m)
	require.True(t, ok)
	require.Equal(t, "User", cls)

	_, ok = TaggedRef(map[string]any{"name": "ada"})
	require.False(t, ok)
}

func TestReferenceProxy_Ref(t *testing.T) {
	user := NewMeta("User", "users", &Field{Name: "_id"})

	t.Run("wrapped pointer", func(t *testing.T) {
		p := ReferenceProxy{Value: Ref{Collection: "users", ID: "u1"}}
		ref, ok := p.Ref()
		require.True(t, ok)
		require.Equal(t, Ref{Collection: "users", ID: "u1"}, ref)
	})

	t.Run("bare identifier with target", func(t *testing.T) {
		p := ReferenceProxy{Target: user, Value: "u1"}
		ref, ok := p.Ref()
		require.True(t, ok)
		require.Equal(t, Ref{Collection: "users", ID: "u1"}, ref)
	})

	t.Run("bare identifier without target", func(t *testing.T) {
		p := ReferenceProxy{Value: "u1"}
		_, ok := p.Ref()
		require.False(t, ok)
	})

	t.Run("empty", func(t *testing.T) {
		p := ReferenceProxy{Target: user}
		_, ok := p.Ref()
		require.False(t, ok)
	})
}

func TestLazyRef_Fetch(t *testing.T) {
	user := NewMeta("User", "users", &Field{Name: "_id"}, &Field{Name: "name"})

	l := LazyRef{Ref: Ref{Collection: "users", ID: "u1"}, Target: user}
	_, err := l.Fetch(context.Background())
	require.Error(t, err, "fetch needs a query capability")

	user.QuerySet = &stubQuerySet{meta: user, rows: map[any]Raw{"u1": {"_id": "u1", "name": "ada"}}}
	doc, err := l.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ada", doc.Get("name"))
}

func TestReferenceProxy_Fetch(t *testing.T) {
	user := NewMeta("User", "users", &Field{Name: "_id"}, &Field{Name: "name"})
	user.QuerySet = &stubQuerySet{meta: user, rows: map[any]Raw{"u1": {"_id": "u1", "name": "ada"}}}

	p := ReferenceProxy{Target: user, Value: "u1"}
	doc, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ada", doc.Get("name"))

	_, err = ReferenceProxy{}.Fetch(context.Background())
	require.Error(t, err)
}
