package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	document "github.com/modmdb/modm/internal/document"
	registry "github.com/modmdb/modm/internal/registry"
)

func refMap(add func(m *referenceMap)) *referenceMap {
	m := newReferenceMap()
	add(m)
	return m
}

func TestFetchObjects_OneQueryPerCollection(t *testing.T) {
	tags := document.NewDynamicMeta("Tags", "tags")
	sites := document.NewDynamicMeta("Sites", "sites")
	withRegistry(t, tags, sites)

	store := newMockStore()
	store.add("tags", document.Raw{"_id": "t1"}, document.Raw{"_id": "t2"})
	store.add("sites", document.Raw{"_id": "s1"})

	s := &resolution{store: store, maxDepth: 1}
	s.refs = refMap(func(m *referenceMap) {
		m.add(bucket{collection: "tags"}, "t2")
		m.add(bucket{collection: "tags"}, "t1")
		m.add(bucket{collection: "sites"}, "s1")
	})

	objects, err := s.fetchObjects(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 3)

	calls := store.callsFor("tags")
	require.Len(t, calls, 1)
	require.Equal(t, []any{"t1", "t2"}, calls[0].IDs, "identifiers are deduplicated and ordered")
	require.Len(t, store.callsFor("sites"), 1)
}

func TestFetchObjects_MissingIsSilent(t *testing.T) {
	tags := document.NewDynamicMeta("Tags", "tags")
	withRegistry(t, tags)

	store := newMockStore()
	store.add("tags", document.Raw{"_id": "t1"})

	s := &resolution{store: store, maxDepth: 1}
	s.refs = refMap(func(m *referenceMap) {
		m.add(bucket{collection: "tags"}, "t1")
		m.add(bucket{collection: "tags"}, "ghost")
	})

	objects, err := s.fetchObjects(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 1)
	_, ok := objects[objectKey{collection: "tags", id: "ghost"}]
	require.False(t, ok)
}

func TestFetchObjects_TransportFailureIsFatal(t *testing.T) {
	store := newMockStore()
	boom := errors.New("connection reset")
	store.failOn("tags", boom)

	s := &resolution{store: store, maxDepth: 1}
	s.refs = refMap(func(m *referenceMap) {
		m.add(bucket{collection: "tags"}, "t1")
	})

	_, err := s.fetchObjects(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, boom))
}

func TestFetchObjects_DiscriminatorWinsOverBucketType(t *testing.T) {
	user := userMeta()
	admin := document.NewMeta("Admin", "users",
		&document.Field{Name: "_id"},
		&document.Field{Name: "name"},
	)
	withRegistry(t, user, admin)

	store := newMockStore()
	store.add("users", document.Raw{"_id": "u1", document.ClassKey: "Admin"})

	s := &resolution{store: store, maxDepth: 1}
	s.refs = refMap(func(m *referenceMap) {
		m.add(bucket{target: user}, "u1")
	})

	objects, err := s.fetchObjects(context.Background())
	require.NoError(t, err)
	doc, ok := objects[objectKey{collection: "users", id: "u1"}].(*document.Document)
	require.True(t, ok)
	require.Same(t, admin, doc.Meta())
}

func TestFetchObjects_UnknownDiscriminatorIsFatal(t *testing.T) {
	withRegistry(t)

	store := newMockStore()
	store.add("users", document.Raw{"_id": "u1", document.ClassKey: "Ghost"})

	s := &resolution{store: store, maxDepth: 1}
	s.refs = refMap(func(m *referenceMap) {
		m.add(bucket{collection: "users"}, "u1")
	})

	_, err := s.fetchObjects(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, registry.ErrNotRegistered))
}

func TestFetchObjects_CollectionNameFallback(t *testing.T) {
	blogPost := document.NewDynamicMeta("BlogPost", "blog_post")
	withRegistry(t, blogPost)

	store := newMockStore()
	store.add("blog_post", document.Raw{"_id": "b1"})

	s := &resolution{store: store, maxDepth: 1}
	s.refs = refMap(func(m *referenceMap) {
		m.add(bucket{collection: "blog_post"}, "b1")
	})

	objects, err := s.fetchObjects(context.Background())
	require.NoError(t, err)
	doc := objects[objectKey{collection: "blog_post", id: "b1"}].(*document.Document)
	require.Same(t, blogPost, doc.Meta())
}

func TestFetchObjects_SkipsUntypedGenericBuckets(t *testing.T) {
	store := newMockStore()

	s := &resolution{store: store, maxDepth: 1, skipUntypedGeneric: true}
	s.refs = refMap(func(m *referenceMap) {
		m.add(bucket{collection: "tags"}, "t1")
	})

	objects, err := s.fetchObjects(context.Background())
	require.NoError(t, err)
	require.Empty(t, objects)
	require.Empty(t, store.calls)
}

func TestFetchTyped_PrefersBulkLookup(t *testing.T) {
	user := userMeta()
	store := newMockStore()
	store.add("users", document.Raw{"_id": "u1", "name": "ada"})
	qs := newMockBulkQuerySet(user, store)

	s := &resolution{store: store, maxDepth: 1}
	s.refs = refMap(func(m *referenceMap) {
		m.add(bucket{target: user}, "u1")
	})

	objects, err := s.fetchObjects(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.Len(t, qs.bulkCalls, 1)
	require.Empty(t, store.calls, "bulk-capable types never hit the raw store")
}

func TestFetchTyped_WithoutBulkFallsBackToRawQuery(t *testing.T) {
	user := userMeta()
	store := newMockStore()
	store.add("users", document.Raw{"_id": "u1", "name": "ada"})
	qs := newMockQuerySet(user, store)

	s := &resolution{store: store, maxDepth: 1}
	s.refs = refMap(func(m *referenceMap) {
		m.add(bucket{target: user}, "u1")
	})

	objects, err := s.fetchObjects(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.Len(t, store.callsFor("users"), 1, "blocking path keeps one query per collection")
	require.Empty(t, qs.getCalls)
}

func TestFetchTypedAsync_DegradesToPerIDGets(t *testing.T) {
	user := userMeta()
	store := newMockStore()
	store.add("users",
		document.Raw{"_id": "u1", "name": "ada"},
		document.Raw{"_id": "u3", "name": "joan"},
	)
	qs := newMockQuerySet(user, store)
	qs.getFail["u2"] = errors.New("stale shard")

	s := &resolution{store: store, maxDepth: 1, proxies: true}
	s.refs = refMap(func(m *referenceMap) {
		m.add(bucket{target: user}, "u1")
		m.add(bucket{target: user}, "u2")
		m.add(bucket{target: user}, "u3")
	})

	objects, err := s.fetchObjectsAsync(context.Background())
	require.NoError(t, err, "a failed single lookup never aborts the batch")
	require.Len(t, objects, 2)
	require.Equal(t, []any{"u1", "u2", "u3"}, qs.getCalls)
	require.Empty(t, store.calls)
}

func TestFetchTypedAsync_HonorsCancellation(t *testing.T) {
	user := userMeta()
	store := newMockStore()
	newMockQuerySet(user, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &resolution{store: store, maxDepth: 1, proxies: true}
	s.refs = refMap(func(m *referenceMap) {
		m.add(bucket{target: user}, "u1")
	})

	_, err := s.fetchObjectsAsync(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}
