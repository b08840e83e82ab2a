package pockettts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haivivi/pockettts/pkg/acoustic"
	"github.com/haivivi/pockettts/pkg/storage"
)

// ManifestName is the manifest file at the root of a model directory.
const ManifestName = "manifest.yaml"

// Manifest describes a model directory:
//
//	variant: b6369a24
//	backend: onnx
//	sample_rate: 24000
//	files:
//	  flow_lm:   {path: flow_lm_step.onnx, sha256: 9f2c...}
//	  decoder:   {path: mimi_decoder.onnx}
//	  tokenizer: {path: tokenizer.json}
//	options:
//	  latent_dim: "32"
//
// Paths are relative to the directory unless absolute. A file with a
// sha256 is verified when the backend reads it.
type Manifest struct {
	Variant    string               `yaml:"variant"`
	Backend    string               `yaml:"backend"`
	SampleRate int                  `yaml:"sample_rate,omitempty"`
	Files      map[string]FileEntry `yaml:"files,omitempty"`
	Options    map[string]string    `yaml:"options,omitempty"`
}

// FileEntry is one file of a model directory.
type FileEntry struct {
	Path   string `yaml:"path"`
	SHA256 string `yaml:"sha256,omitempty"`
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrModelFiles, ManifestName, err)
	}
	if m.Variant == "" {
		return nil, fmt.Errorf("%w: %s: variant is required", ErrModelFiles, ManifestName)
	}
	if m.Backend == "" {
		return nil, fmt.Errorf("%w: %s: backend is required", ErrModelFiles, ManifestName)
	}
	if m.SampleRate < 0 {
		return nil, fmt.Errorf("%w: %s: sample_rate %d", ErrModelFiles, ManifestName, m.SampleRate)
	}
	for name, f := range m.Files {
		if f.Path == "" {
			return nil, fmt.Errorf("%w: %s: file %q has no path", ErrModelFiles, ManifestName, name)
		}
		if f.SHA256 != "" {
			if _, err := hex.DecodeString(f.SHA256); err != nil || len(f.SHA256) != 64 {
				return nil, fmt.Errorf("%w: %s: file %q has a malformed sha256", ErrModelFiles, ManifestName, name)
			}
		}
	}
	return &m, nil
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// bundleSource serves manifest files from a FileStore.
type bundleSource struct {
	store    storage.FileStore
	manifest *Manifest
}

func (b *bundleSource) ReadFile(ctx context.Context, name string) ([]byte, error) {
	f, ok := b.manifest.Files[name]
	if !ok {
		return nil, fmt.Errorf("manifest has no file %q: %w", name, fs.ErrNotExist)
	}
	data, err := storage.ReadFile(ctx, b.store, f.Path)
	if err != nil {
		// A listed file must exist, so not-exist is not passed through.
		return nil, fmt.Errorf("%w: %s: %v", ErrModelFiles, f.Path, err)
	}
	if f.SHA256 != "" {
		sum := sha256.Sum256(data)
		if got := hex.EncodeToString(sum[:]); !strings.EqualFold(got, f.SHA256) {
			return nil, fmt.Errorf("%w: %s: sha256 %s, want %s", ErrModelFiles, f.Path, got, f.SHA256)
		}
	}
	return data, nil
}

func (b *bundleSource) Option(key string) string {
	return b.manifest.Options[key]
}

var _ acoustic.Source = (*bundleSource)(nil)
