package acoustic

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Source gives a Loader access to the files and options of a model bundle.
type Source interface {
	// ReadFile returns the content of a named manifest file. It returns an
	// error wrapping fs.ErrNotExist when the bundle has no such file.
	ReadFile(ctx context.Context, name string) ([]byte, error)

	// Option returns a manifest option, or "" when unset.
	Option(key string) string
}

// Loader opens a Backend from a Source.
type Loader func(ctx context.Context, src Source) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Loader)
)

// Register makes a backend kind available to Open. It is typically called
// from init. Registering the same kind twice replaces the loader.
func Register(kind string, l Loader) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = l
}

// Open loads a backend of the given kind.
func Open(ctx context.Context, kind string, src Source) (Backend, error) {
	registryMu.RLock()
	l, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownKind, kind, Kinds())
	}
	return l(ctx, src)
}

// Kinds returns the registered backend kinds in sorted order.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
