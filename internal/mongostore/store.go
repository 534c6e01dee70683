// Package mongostore backs the resolver's query surfaces with MongoDB
// through the official driver. It owns the translation between driver
// types and the document model; nothing above it sees bson.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	document "github.com/modmdb/modm/internal/document"
)

// ErrNotFound reports a single-document lookup that matched nothing.
var ErrNotFound = errors.New("document not found")

// Store issues raw bulk lookups against a database. It implements the
// resolver's Store interface.
type Store struct {
	db *mongo.Database
}

// New creates a Store over db.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// FindManyByID returns the rows of collection whose _id is in ids.
// Missing identifiers are simply absent; rows that fail to decode are
// dropped.
func (s *Store) FindManyByID(ctx context.Context, collection string, ids []any) ([]document.Raw, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var rows []document.Raw
	for cur.Next(ctx) {
		var row bson.M
		if err := cur.Decode(&row); err != nil {
			continue
		}
		rows = append(rows, NormalizeRaw(row))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	return rows, nil
}

// QuerySet is the type-bound query capability for a collection-backed
// document type. It satisfies document.BulkQuerySet.
type QuerySet struct {
	meta *document.Meta
	db   *mongo.Database
}

var _ document.BulkQuerySet = (*QuerySet)(nil)

// Bind attaches a QuerySet for db to meta and returns it. Called once per
// type at declaration time.
func Bind(meta *document.Meta, db *mongo.Database) *QuerySet {
	qs := &QuerySet{meta: meta, db: db}
	meta.QuerySet = qs
	return qs
}

// CollectionName returns the physical collection queried.
func (q *QuerySet) CollectionName() string { return q.meta.Collection }

// Get loads one document by identifier.
func (q *QuerySet) Get(ctx context.Context, id any) (*document.Document, error) {
	var row bson.M
	err := q.db.Collection(q.meta.Collection).FindOne(ctx, bson.M{"_id": id}).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, q.meta.Collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %v: %w", q.meta.Collection, id, err)
	}
	return document.FromRaw(q.meta, NormalizeRaw(row))
}

// InBulk loads many documents in one round-trip, keyed by identifier.
// Identifiers that match nothing, and rows that fail to materialize, are
// absent from the result.
func (q *QuerySet) InBulk(ctx context.Context, ids []any) (map[any]*document.Document, error) {
	cur, err := q.db.Collection(q.meta.Collection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("in bulk %s: %w", q.meta.Collection, err)
	}
	defer cur.Close(ctx)

	docs := make(map[any]*document.Document)
	for cur.Next(ctx) {
		var row bson.M
		if err := cur.Decode(&row); err != nil {
			continue
		}
		doc, err := document.FromRaw(q.meta, NormalizeRaw(row))
		if err != nil {
			continue
		}
		if id := doc.ID(); id != nil {
			docs[id] = doc
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("in bulk %s: %w", q.meta.Collection, err)
	}
	return docs, nil
}

// Cursor adapts a driver cursor to the resolver's record cursor. With a
// meta it materializes each row; without one it yields normalized raw
// rows.
type Cursor struct {
	meta *document.Meta
	cur  *mongo.Cursor
	val  any
	err  error
}

// NewCursor wraps cur; meta may be nil for raw iteration.
func NewCursor(cur *mongo.Cursor, meta *document.Meta) *Cursor {
	return &Cursor{meta: meta, cur: cur}
}

// Next advances to the next record.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if !c.cur.Next(ctx) {
		c.err = c.cur.Err()
		return false
	}
	var row bson.M
	if err := c.cur.Decode(&row); err != nil {
		c.err = err
		return false
	}
	raw := NormalizeRaw(row)
	if c.meta == nil {
		c.val = raw
		return true
	}
	doc, err := document.FromRaw(c.meta, raw)
	if err != nil {
		c.err = err
		return false
	}
	c.val = doc
	return true
}

// Value returns the current record.
func (c *Cursor) Value() any { return c.val }

// Err returns the error that stopped iteration, if any.
func (c *Cursor) Err() error { return c.err }

// Close releases the underlying driver cursor.
func (c *Cursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }
