package acoustic

import (
	"context"
	"fmt"
	"io/fs"
)

// MapSource is an in-memory Source, used for built-in variants and tests.
type MapSource struct {
	Files   map[string][]byte
	Options map[string]string
}

// ReadFile implements Source.
func (m MapSource) ReadFile(_ context.Context, name string) ([]byte, error) {
	data, ok := m.Files[name]
	if !ok {
		return nil, fmt.Errorf("acoustic: file %q: %w", name, fs.ErrNotExist)
	}
	return data, nil
}

// Option implements Source.
func (m MapSource) Option(key string) string {
	return m.Options[key]
}

var _ Source = MapSource{}
