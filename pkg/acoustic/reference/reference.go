// Package reference implements a deterministic parametric acoustic core.
//
// The reference core stands in for the neural model when no weights are
// installed. It follows the same contract: tokens are consumed
// autoregressively, each step emits a latent frame and an end-of-speech
// logit, and latents are rendered to 24 kHz audio by a harmonic
// synthesizer whose pitch and timbre come from the voice conditioning.
// Output length follows the text: every rune contributes a fixed share of
// frames depending on its class, so timing is predictable and tests can
// reason about durations.
//
// Bundle files (all optional):
//
//	timbre   safetensors with an F32 tensor "harmonics" of shape [16]
//
// Options:
//
//	f0               neutral voice pitch in Hz (default 140)
//	projection_seed  seed of the voice-feature projection (default 1)
package reference

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"sync/atomic"

	"github.com/haivivi/pockettts/pkg/acoustic"
	"github.com/haivivi/pockettts/pkg/audio/fbank"
	"github.com/haivivi/pockettts/pkg/safetensors"
	"github.com/haivivi/pockettts/pkg/sentence"
)

// Kind is the registry name of this backend.
const Kind = "reference"

// Fixed geometry.
const (
	SampleRate   = 24000
	FrameSize    = 1920 // 80 ms, 12.5 Hz
	LatentDim    = 32
	EmbeddingDim = 32
	NumHarmonics = 16

	defaultF0 = 140.0
	minF0     = 60.0
	maxF0     = 400.0
)

func init() {
	acoustic.Register(Kind, Load)
}

// Backend is the reference acoustic core.
type Backend struct {
	f0        float64
	harmonics [NumHarmonics]float64
	proj      [][]float32 // [EmbeddingDim-1][NumMels]
	fbank     *fbank.Extractor
	closed    atomic.Bool
}

// Load opens a reference backend from src.
func Load(ctx context.Context, src acoustic.Source) (acoustic.Backend, error) {
	b := &Backend{
		f0:    defaultF0,
		fbank: fbank.New(fbank.DefaultConfig()),
	}
	if v := src.Option("f0"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < minF0 || f > maxF0 {
			return nil, fmt.Errorf("reference: option f0=%q out of range [%g, %g]", v, minF0, maxF0)
		}
		b.f0 = f
	}
	seed := uint64(1)
	if v := src.Option("projection_seed"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("reference: option projection_seed: %w", err)
		}
		seed = n
	}
	b.proj = projection(seed, EmbeddingDim-1, b.fbank.Config().NumMels)

	for k := range b.harmonics {
		b.harmonics[k] = 1
	}
	data, err := src.ReadFile(ctx, "timbre")
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reference: read timbre: %w", err)
	default:
		if err := b.loadTimbre(data); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Backend) loadTimbre(data []byte) error {
	f, err := safetensors.Decode(data)
	if err != nil {
		return fmt.Errorf("reference: timbre: %w", err)
	}
	t, ok := f.Tensors["harmonics"]
	if !ok {
		return fmt.Errorf("reference: timbre: missing tensor %q", "harmonics")
	}
	w, err := t.Float32s()
	if err != nil {
		return fmt.Errorf("reference: timbre: %w", err)
	}
	if len(w) != NumHarmonics {
		return fmt.Errorf("reference: timbre: %d harmonics, want %d", len(w), NumHarmonics)
	}
	for k, v := range w {
		if v < 0 {
			return fmt.Errorf("reference: timbre: negative weight %g at %d", v, k)
		}
		b.harmonics[k] = float64(v)
	}
	return nil
}

// Info implements acoustic.Backend.
func (b *Backend) Info() acoustic.Info {
	return acoustic.Info{
		Name:         Kind,
		SampleRate:   SampleRate,
		FrameSize:    FrameSize,
		LatentDim:    LatentDim,
		EmbeddingDim: EmbeddingDim,
	}
}

// Tokenizer implements acoustic.Backend. Tokens are code points; the
// session uses the rune class of each token to pace the utterance.
func (b *Backend) Tokenizer() sentence.Tokenizer {
	return sentence.RuneTokenizer{}
}

// NewSession implements acoustic.Backend.
func (b *Backend) NewSession(_ context.Context, cond *acoustic.Conditioning) (acoustic.Session, error) {
	if b.closed.Load() {
		return nil, acoustic.ErrClosed
	}
	if err := cond.Validate(EmbeddingDim); err != nil {
		return nil, err
	}
	return newSession(b.voice(cond)), nil
}

// Close implements acoustic.Backend.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}

var _ acoustic.Backend = (*Backend)(nil)
