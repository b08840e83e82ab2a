package pockettts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haivivi/pockettts/pkg/acoustic"
	"github.com/haivivi/pockettts/pkg/sentence"
	"github.com/haivivi/pockettts/pkg/storage"
)

// Model is a loaded acoustic core with its generation hyperparameters. It
// is immutable after load and safe for concurrent use.
//
// Close marks the model closed: new operations fail with ErrModelClosed,
// while streams opened earlier keep running. The backend is released when
// the last of them finishes.
type Model struct {
	variant     string
	dir         string
	fingerprint string
	params      Params
	info        acoustic.Info
	backend     acoustic.Backend
	tokenizer   sentence.Tokenizer
	logger      *slog.Logger
	cache       *VoiceCache
	s3          storage.S3Client

	mu     sync.Mutex
	closed bool
	refs   int
}

// Load loads a built-in variant.
func Load(ctx context.Context, variant string, opts ...Option) (*Model, error) {
	return load(ctx, variant, "", newConfig(opts))
}

// LoadWithParams loads a built-in variant with explicit hyperparameters.
func LoadWithParams(ctx context.Context, variant string, temperature float64, decodeSteps int, eosThreshold float64, opts ...Option) (*Model, error) {
	cfg := newConfig(opts)
	cfg.params.Temperature = temperature
	cfg.params.DecodeSteps = decodeSteps
	cfg.params.EOSThreshold = eosThreshold
	return load(ctx, variant, "", cfg)
}

// LoadFromDir loads a model from a directory holding a manifest.yaml. dir
// may be a local path or s3://bucket/prefix (see WithS3Client). An empty
// variant accepts whatever the manifest declares.
func LoadFromDir(ctx context.Context, variant, dir string, opts ...Option) (*Model, error) {
	return load(ctx, variant, dir, newConfig(opts))
}

// LoadWithParamsFromDir combines LoadFromDir and LoadWithParams.
func LoadWithParamsFromDir(ctx context.Context, variant, dir string, temperature float64, decodeSteps int, eosThreshold float64, opts ...Option) (*Model, error) {
	cfg := newConfig(opts)
	cfg.params.Temperature = temperature
	cfg.params.DecodeSteps = decodeSteps
	cfg.params.EOSThreshold = eosThreshold
	return load(ctx, variant, dir, cfg)
}

func load(ctx context.Context, variant, dir string, cfg *config) (*Model, error) {
	if err := cfg.params.Validate(); err != nil {
		return nil, err
	}
	if variant == "" && dir == "" && cfg.store == nil {
		variant = DefaultVariant
	}

	var (
		src         acoustic.Source
		kind        string
		fingerprint string
		sampleRate  int
	)
	if dir == "" && cfg.store == nil {
		v, ok := LookupVariant(variant)
		if !ok {
			return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownVariant, variant, Variants())
		}
		src, kind = v.source(), v.Backend
		fingerprint = v.Name + "@builtin"
	} else {
		store := cfg.store
		if store == nil {
			var err error
			if store, err = storage.Open(dir, cfg.s3); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrModelFiles, err)
			}
		}
		raw, err := storage.ReadFile(ctx, store, ManifestName)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrModelFiles, dir, err)
		}
		man, err := ParseManifest(raw)
		if err != nil {
			return nil, err
		}
		if variant != "" && variant != man.Variant {
			return nil, fmt.Errorf("%w: %s holds variant %q, not %q", ErrModelFiles, dir, man.Variant, variant)
		}
		variant = man.Variant
		src, kind = &bundleSource{store: store, manifest: man}, man.Backend
		sum := sha256.Sum256(raw)
		fingerprint = variant + "@" + hex.EncodeToString(sum[:8])
		sampleRate = man.SampleRate
	}

	backend, err := acoustic.Open(ctx, kind, src)
	if err != nil {
		if errors.Is(err, ErrModelFiles) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrModelFiles, variant, err)
	}
	info := backend.Info()
	if sampleRate != 0 && sampleRate != info.SampleRate {
		backend.Close()
		return nil, fmt.Errorf("%w: manifest sample rate %d, backend produces %d", ErrModelFiles, sampleRate, info.SampleRate)
	}

	m := &Model{
		variant:     variant,
		dir:         dir,
		fingerprint: fingerprint,
		params:      cfg.params,
		info:        info,
		backend:     backend,
		tokenizer:   backend.Tokenizer(),
		logger:      cfg.logger,
		cache:       cfg.cache,
		s3:          cfg.s3,
	}
	m.logger.Debug("pockettts: model loaded",
		"variant", variant,
		"dir", dir,
		"backend", info.Name,
		"sample_rate", info.SampleRate,
		"fingerprint", fingerprint,
	)
	return m, nil
}

// Variant returns the model variant name.
func (m *Model) Variant() string { return m.variant }

// Dir returns the model directory, or "" for built-in weights.
func (m *Model) Dir() string { return m.dir }

// Fingerprint identifies the weights. Voice states are interchangeable
// between models with equal fingerprints.
func (m *Model) Fingerprint() string { return m.fingerprint }

// SampleRate returns the output sample rate in Hz.
func (m *Model) SampleRate() int { return m.info.SampleRate }

// Params returns the generation hyperparameters.
func (m *Model) Params() Params { return m.params }

// Info returns the acoustic core description.
func (m *Model) Info() acoustic.Info { return m.info }

// Close releases the model. Calling Close more than once is a no-op.
func (m *Model) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	idle := m.refs == 0
	m.mu.Unlock()

	m.logger.Debug("pockettts: model closed", "variant", m.variant, "busy", !idle)
	if idle {
		return m.backend.Close()
	}
	return nil
}

// acquire pins the backend for one operation or stream.
func (m *Model) acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrModelClosed
	}
	m.refs++
	return nil
}

func (m *Model) release() {
	m.mu.Lock()
	m.refs--
	last := m.closed && m.refs == 0
	m.mu.Unlock()
	if last {
		if err := m.backend.Close(); err != nil {
			m.logger.Warn("pockettts: close backend", "variant", m.variant, "err", err)
		}
	}
}
