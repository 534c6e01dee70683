// Package registry maintains the process-wide mapping from document type
// names to their Meta declarations. It is populated as types are declared
// at process start and read-only afterwards from the resolver's point of
// view; lookups of unknown names are fatal for the calling resolution
// because there is no type to materialize a row into.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	document "github.com/modmdb/modm/internal/document"
)

// ErrNotRegistered reports a discriminator naming a type the registry has
// never seen.
var ErrNotRegistered = errors.New("document type not registered")

var (
	mu    sync.RWMutex
	metas = make(map[string]*document.Meta)
)

// Register adds a document type under its Name. Re-registering a name
// replaces the previous declaration; declaration code is expected to run
// once at startup.
func Register(meta *document.Meta) {
	if meta == nil || meta.Name == "" {
		panic("registry: meta must have a name")
	}
	mu.Lock()
	metas[meta.Name] = meta
	mu.Unlock()
}

// Get returns the Meta registered under name.
func Get(name string) (*document.Meta, error) {
	mu.RLock()
	m, ok := metas[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return m, nil
}

// ForCollection derives a type name from a snake_case collection name
// ("blog_post" becomes "BlogPost") and looks it up. It is the last-resort
// lookup for rows that carry no discriminator.
func ForCollection(collection string) (*document.Meta, error) {
	return Get(TypeNameForCollection(collection))
}

// TypeNameForCollection converts a snake_case collection name to the
// CamelCase type name convention used at declaration time.
func TypeNameForCollection(collection string) string {
	parts := strings.Split(collection, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// Reset clears all registrations. Tests only.
func Reset() {
	mu.Lock()
	metas = make(map[string]*document.Meta)
	mu.Unlock()
}
