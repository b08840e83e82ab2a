//go:build onnxruntime

package onnx

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ErrNoGraph is returned by Graphs.Get for a name that was never loaded.
var ErrNoGraph = errors.New("onnx: graph not loaded")

// Graphs is a set of named sessions sharing one Env, such as the language
// model, decoder and encoder of a speech model.
type Graphs struct {
	env *Env

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewGraphs creates an empty set on env.
func NewGraphs(env *Env) *Graphs {
	return &Graphs{env: env, sessions: make(map[string]*Session)}
}

// Load creates a session for data and registers it under name, replacing
// and closing any previous session of that name.
func (g *Graphs) Load(name string, data []byte, opts SessionOptions) error {
	s, err := g.env.NewSession(data, opts)
	if err != nil {
		return fmt.Errorf("onnx: load %s: %w", name, err)
	}
	g.mu.Lock()
	old := g.sessions[name]
	g.sessions[name] = s
	g.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Get returns the session registered under name.
func (g *Graphs) Get(name string) (*Session, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoGraph, name)
	}
	return s, nil
}

// Has reports whether name is loaded.
func (g *Graphs) Has(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.sessions[name]
	return ok
}

// Names returns the loaded graph names in sorted order.
func (g *Graphs) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Sorted(maps.Keys(g.sessions))
}

// Close closes every session. The Env is left open.
func (g *Graphs) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, s := range g.sessions {
		s.Close()
		delete(g.sessions, name)
	}
	return nil
}
