// Package connection keeps the process-wide registry of database
// connections by alias. Document types name an alias at declaration time;
// stores are built from whatever database the alias maps to. The resolver
// never touches this package.
package connection

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultAlias is the alias used when a type names none.
const DefaultAlias = "default"

type conn struct {
	client *mongo.Client
	db     *mongo.Database
}

var (
	mu    sync.RWMutex
	conns = make(map[string]*conn)
)

// Connect dials uri, registers the named database under alias and returns
// it. A previous registration under the same alias is replaced.
func Connect(ctx context.Context, alias, uri, dbName string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect %q: %w", alias, err)
	}
	db := client.Database(dbName)
	mu.Lock()
	conns[alias] = &conn{client: client, db: db}
	mu.Unlock()
	return db, nil
}

// Register stores an externally constructed database under alias.
func Register(alias string, db *mongo.Database) {
	mu.Lock()
	conns[alias] = &conn{db: db}
	mu.Unlock()
}

// DB returns the database registered under alias.
func DB(alias string) (*mongo.Database, error) {
	mu.RLock()
	c, ok := conns[alias]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no connection registered for alias %q", alias)
	}
	return c.db, nil
}

// Disconnect closes the client behind alias, if this package opened it,
// and drops the registration.
func Disconnect(ctx context.Context, alias string) error {
	mu.Lock()
	c, ok := conns[alias]
	delete(conns, alias)
	mu.Unlock()
	if !ok {
		return fmt.Errorf("no connection registered for alias %q", alias)
	}
	if c.client != nil {
		if err := c.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("disconnect %q: %w", alias, err)
		}
	}
	return nil
}

// Reset drops every registration without closing clients. Tests only.
func Reset() {
	mu.Lock()
	conns = make(map[string]*conn)
	mu.Unlock()
}
