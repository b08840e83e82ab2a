// Package acoustic defines the contract between the pockettts engine and an
// acoustic core.
//
// An acoustic core turns token ids into audio in three stages: an
// autoregressive step that emits one latent frame plus an end-of-speech
// logit, a sampler controlled by temperature and decode-step count, and a
// decoder that turns latent frames into PCM. The engine owns segmentation,
// pacing and the stop rule; a Backend owns the numbers.
//
// Backends register a Loader under a kind name ("reference", "onnx") and
// are opened from a Source, which gives access to the files listed in a
// model manifest.
package acoustic

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/haivivi/pockettts/pkg/sentence"
)

// Sentinel errors.
var (
	// ErrShape is returned when conditioning or latent data has the wrong
	// dimensions.
	ErrShape = errors.New("acoustic: shape mismatch")

	// ErrClosed is returned by operations on a closed Backend or Session.
	ErrClosed = errors.New("acoustic: closed")

	// ErrUnknownKind is returned by Open for unregistered backend kinds.
	ErrUnknownKind = errors.New("acoustic: unknown backend kind")
)

// Conditioning is a voice embedding of shape [1, Frames, Dim], stored
// row-major in Data. An empty Conditioning (Frames == 0) selects the
// backend's neutral voice.
type Conditioning struct {
	Frames int
	Dim    int
	Data   []float32
}

// Empty reports whether c carries no frames.
func (c *Conditioning) Empty() bool {
	return c == nil || c.Frames == 0
}

// Row returns frame i.
func (c *Conditioning) Row(i int) []float32 {
	return c.Data[i*c.Dim : (i+1)*c.Dim]
}

// Clone returns a deep copy.
func (c *Conditioning) Clone() *Conditioning {
	if c == nil {
		return nil
	}
	out := *c
	out.Data = append([]float32(nil), c.Data...)
	return &out
}

// Validate checks that Data matches Frames and Dim and holds only finite
// values. dim, when positive, is the embedding size the caller expects.
func (c *Conditioning) Validate(dim int) error {
	if c.Empty() {
		return nil
	}
	if c.Frames < 0 || c.Dim <= 0 {
		return fmt.Errorf("%w: frames=%d dim=%d", ErrShape, c.Frames, c.Dim)
	}
	if dim > 0 && c.Dim != dim {
		return fmt.Errorf("%w: embedding dim %d, want %d", ErrShape, c.Dim, dim)
	}
	if len(c.Data) != c.Frames*c.Dim {
		return fmt.Errorf("%w: %d values for [1, %d, %d]", ErrShape, len(c.Data), c.Frames, c.Dim)
	}
	for i, v := range c.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: non-finite value at %d", ErrShape, i)
		}
	}
	return nil
}

// Info describes a loaded backend.
type Info struct {
	// Name is the backend kind that produced the weights.
	Name string
	// SampleRate is the output sample rate in Hz.
	SampleRate int
	// FrameSize is the number of samples one latent frame decodes to.
	FrameSize int
	// LatentDim is the size of one latent frame.
	LatentDim int
	// EmbeddingDim is the size of one conditioning row.
	EmbeddingDim int
}

// FrameRate returns latent frames per second.
func (i Info) FrameRate() float64 {
	if i.FrameSize == 0 {
		return 0
	}
	return float64(i.SampleRate) / float64(i.FrameSize)
}

// StepInput controls one autoregressive step.
type StepInput struct {
	// Temperature scales the sampling noise. Zero is greedy.
	Temperature float64
	// DecodeSteps is the number of latent refinement iterations.
	DecodeSteps int
	// Noise supplies standard normal samples; nil means no noise.
	Noise func() float64
}

// Frame is the result of one step.
type Frame struct {
	Latent []float32
	// EOSLogit is the end-of-speech logit; the engine compares
	// sigmoid(EOSLogit) against its threshold.
	EOSLogit float64
}

// Backend is a loaded acoustic core. A Backend is safe for concurrent use;
// per-utterance state lives in Sessions.
type Backend interface {
	Info() Info

	// Tokenizer returns the text tokenizer matching the backend's weights.
	Tokenizer() sentence.Tokenizer

	// EncodeVoice turns mono PCM at Info().SampleRate into conditioning.
	EncodeVoice(ctx context.Context, pcm []float32) (*Conditioning, error)

	// NewSession starts an utterance conditioned on cond. cond may be empty.
	NewSession(ctx context.Context, cond *Conditioning) (Session, error)

	Close() error
}

// Session carries the autoregressive and decoder state of one stream of
// speech. Sessions are not safe for concurrent use.
type Session interface {
	// Feed appends the tokens of the next text segment. Generation state
	// from previous segments is kept, which preserves prosody across
	// segment boundaries.
	Feed(ctx context.Context, tokens []int) error

	// Step runs one autoregressive step over the fed tokens.
	Step(ctx context.Context, in StepInput) (Frame, error)

	// Decode converts latent frames to PCM. Decoder state carries across
	// calls, so decoding frames in several calls yields the same samples
	// as one call.
	Decode(ctx context.Context, latents [][]float32) ([]float32, error)

	Close() error
}

// Sigmoid is the logistic function used for the end-of-speech decision.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
