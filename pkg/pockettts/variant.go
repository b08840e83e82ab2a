package pockettts

import (
	"maps"
	"slices"
	"sync"

	"github.com/haivivi/pockettts/pkg/acoustic"
	"github.com/haivivi/pockettts/pkg/acoustic/reference"
)

// DefaultVariant is the model signature loaded when none is given.
const DefaultVariant = "b6369a24"

// Variant is a built-in model: a backend kind plus the files and options
// it is opened with.
type Variant struct {
	Name    string
	Backend string
	Files   map[string][]byte
	Options map[string]string
}

var (
	variantsMu sync.RWMutex
	variants   = make(map[string]Variant)
)

func init() {
	RegisterVariant(Variant{
		Name:    DefaultVariant,
		Backend: reference.Kind,
		Options: map[string]string{"f0": "140"},
	})
}

// RegisterVariant makes a variant available to Load.
func RegisterVariant(v Variant) {
	variantsMu.Lock()
	defer variantsMu.Unlock()
	variants[v.Name] = v
}

// Variants returns the registered variant names in sorted order.
func Variants() []string {
	variantsMu.RLock()
	defer variantsMu.RUnlock()
	return slices.Sorted(maps.Keys(variants))
}

// LookupVariant returns the registered variant with the given name.
func LookupVariant(name string) (Variant, bool) {
	variantsMu.RLock()
	defer variantsMu.RUnlock()
	v, ok := variants[name]
	return v, ok
}

func (v Variant) source() acoustic.Source {
	return acoustic.MapSource{Files: v.Files, Options: v.Options}
}
