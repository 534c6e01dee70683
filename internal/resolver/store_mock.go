package resolver

import (
	"context"
	"fmt"
	"sync"

	document "github.com/modmdb/modm/internal/document"
)

// storeCall records one bulk lookup issued against the mock store.
type storeCall struct {
	Collection string
	IDs        []any
}

// mockStore implements Store over in-memory fixture rows and logs every
// bulk lookup it serves.
type mockStore struct {
	mu    sync.Mutex
	rows  map[string]map[any]document.Raw
	fail  map[string]error
	calls []storeCall
}

var _ Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		rows: make(map[string]map[any]document.Raw),
		fail: make(map[string]error),
	}
}

func (m *mockStore) add(collection string, rows ...document.Raw) {
	if m.rows[collection] == nil {
		m.rows[collection] = make(map[any]document.Raw)
	}
	for _, row := range rows {
		m.rows[collection][row["_id"]] = row
	}
}

func (m *mockStore) failOn(collection string, err error) {
	m.fail[collection] = err
}

func (m *mockStore) FindManyByID(ctx context.Context, collection string, ids []any) ([]document.Raw, error) {
	m.mu.Lock()
	m.calls = append(m.calls, storeCall{Collection: collection, IDs: append([]any(nil), ids...)})
	m.mu.Unlock()
	if err := m.fail[collection]; err != nil {
		return nil, err
	}
	var out []document.Raw
	for _, id := range ids {
		if row, ok := m.rows[collection][id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *mockStore) callsFor(collection string) []storeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storeCall
	for _, c := range m.calls {
		if c.Collection == collection {
			out = append(out, c)
		}
	}
	return out
}

// mockQuerySet is a query capability without bulk lookup: the suspending
// fetch path must degrade to one Get per identifier through it.
type mockQuerySet struct {
	meta  *document.Meta
	store *mockStore

	mu       sync.Mutex
	getCalls []any
	getFail  map[any]error
}

var _ document.QuerySet = (*mockQuerySet)(nil)

func newMockQuerySet(meta *document.Meta, store *mockStore) *mockQuerySet {
	qs := &mockQuerySet{meta: meta, store: store, getFail: make(map[any]error)}
	meta.QuerySet = qs
	return qs
}

func (q *mockQuerySet) CollectionName() string { return q.meta.Collection }

func (q *mockQuerySet) Get(ctx context.Context, id any) (*document.Document, error) {
	q.mu.Lock()
	q.getCalls = append(q.getCalls, id)
	q.mu.Unlock()
	if err := q.getFail[id]; err != nil {
		return nil, err
	}
	row, ok := q.store.rows[q.meta.Collection][id]
	if !ok {
		return nil, fmt.Errorf("%s %v: not found", q.meta.Collection, id)
	}
	return document.FromRaw(q.meta, row)
}

// mockBulkQuerySet adds the bulk helper on top of mockQuerySet.
type mockBulkQuerySet struct {
	mockQuerySet

	bulkCalls []storeCall
}

var _ document.BulkQuerySet = (*mockBulkQuerySet)(nil)

func newMockBulkQuerySet(meta *document.Meta, store *mockStore) *mockBulkQuerySet {
	qs := &mockBulkQuerySet{mockQuerySet: mockQuerySet{meta: meta, store: store, getFail: make(map[any]error)}}
	meta.QuerySet = qs
	return qs
}

func (q *mockBulkQuerySet) InBulk(ctx context.Context, ids []any) (map[any]*document.Document, error) {
	q.mu.Lock()
	q.bulkCalls = append(q.bulkCalls, storeCall{Collection: q.meta.Collection, IDs: append([]any(nil), ids...)})
	q.mu.Unlock()
	docs := make(map[any]*document.Document)
	for _, id := range ids {
		row, ok := q.store.rows[q.meta.Collection][id]
		if !ok {
			continue
		}
		doc, err := document.FromRaw(q.meta, row)
		if err != nil {
			continue
		}
		docs[id] = doc
	}
	return docs, nil
}

// sliceCursor drives the cursor-drain path in tests.
type sliceCursor struct {
	items []any
	pos   int
	err   error
}

var _ Cursor = (*sliceCursor)(nil)

func (c *sliceCursor) Next(ctx context.Context) bool {
	if c.pos >= len(c.items) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Value() any { return c.items[c.pos-1] }

func (c *sliceCursor) Err() error { return c.err }
