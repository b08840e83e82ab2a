package pockettts

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/haivivi/pockettts/pkg/storage"
)

// Default hyperparameters.
const (
	DefaultTemperature      = 0.7
	DefaultDecodeSteps      = 1
	DefaultEOSThreshold     = 0.018 // sigmoid(-4)
	DefaultSeed             = 42
	DefaultMaxFramesPerRune = 4.0

	// AutoFramesAfterEOS decodes 3 extra frames after end-of-speech for
	// texts of at most 4 words and 1 otherwise.
	AutoFramesAfterEOS = -1
)

// divergenceSlack is added to the per-rune step budget of every segment.
const divergenceSlack = 4

// Params are the generation hyperparameters of a Model.
type Params struct {
	// Temperature scales sampling noise. 0 is greedy.
	Temperature float64
	// DecodeSteps is the number of latent refinement iterations per frame.
	DecodeSteps int
	// EOSThreshold is the end-of-speech probability that ends a segment.
	EOSThreshold float64
	// FramesAfterEOS is the number of frames decoded after end-of-speech,
	// or AutoFramesAfterEOS.
	FramesAfterEOS int
	// Seed seeds the per-segment sampling RNG.
	Seed uint64
	// MaxFramesPerRune bounds the steps of a segment before it is reported
	// as diverged.
	MaxFramesPerRune float64
}

// DefaultParams returns the default hyperparameters.
func DefaultParams() Params {
	return Params{
		Temperature:      DefaultTemperature,
		DecodeSteps:      DefaultDecodeSteps,
		EOSThreshold:     DefaultEOSThreshold,
		FramesAfterEOS:   AutoFramesAfterEOS,
		Seed:             DefaultSeed,
		MaxFramesPerRune: DefaultMaxFramesPerRune,
	}
}

// Validate reports out-of-range values as ErrInvalidParams.
func (p Params) Validate() error {
	switch {
	case math.IsNaN(p.Temperature) || math.IsInf(p.Temperature, 0) || p.Temperature < 0:
		return fmt.Errorf("%w: temperature %v must be >= 0", ErrInvalidParams, p.Temperature)
	case p.DecodeSteps <= 0:
		return fmt.Errorf("%w: decode steps %d must be > 0", ErrInvalidParams, p.DecodeSteps)
	case math.IsNaN(p.EOSThreshold) || p.EOSThreshold <= 0 || p.EOSThreshold >= 1:
		return fmt.Errorf("%w: eos threshold %v must be in (0, 1)", ErrInvalidParams, p.EOSThreshold)
	case p.FramesAfterEOS < AutoFramesAfterEOS:
		return fmt.Errorf("%w: frames after eos %d must be >= 0", ErrInvalidParams, p.FramesAfterEOS)
	case math.IsNaN(p.MaxFramesPerRune) || p.MaxFramesPerRune <= 0:
		return fmt.Errorf("%w: max frames per rune %v must be > 0", ErrInvalidParams, p.MaxFramesPerRune)
	}
	return nil
}

// framesAfterEOS resolves the auto setting for a segment.
func (p Params) framesAfterEOS(words int) int {
	if p.FramesAfterEOS != AutoFramesAfterEOS {
		return p.FramesAfterEOS
	}
	if words <= 4 {
		return 3
	}
	return 1
}

// stepLimit is the divergence budget for a segment of n runes.
func (p Params) stepLimit(n int) int {
	return int(math.Ceil(float64(n)*p.MaxFramesPerRune)) + divergenceSlack
}

// Option configures Load.
type Option func(*config)

type config struct {
	params Params
	logger *slog.Logger
	cache  *VoiceCache
	s3     storage.S3Client
	store  storage.FileStore
}

func newConfig(opts []Option) *config {
	c := &config{params: DefaultParams()}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// WithParams replaces all hyperparameters.
func WithParams(p Params) Option {
	return func(c *config) { c.params = p }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *config) { c.params.Temperature = t }
}

// WithDecodeSteps sets the latent refinement step count.
func WithDecodeSteps(n int) Option {
	return func(c *config) { c.params.DecodeSteps = n }
}

// WithEOSThreshold sets the end-of-speech probability threshold.
func WithEOSThreshold(p float64) Option {
	return func(c *config) { c.params.EOSThreshold = p }
}

// WithFramesAfterEOS sets a fixed number of frames decoded after
// end-of-speech.
func WithFramesAfterEOS(n int) Option {
	return func(c *config) { c.params.FramesAfterEOS = n }
}

// WithSeed sets the sampling seed.
func WithSeed(seed uint64) Option {
	return func(c *config) { c.params.Seed = seed }
}

// WithMaxFramesPerRune sets the divergence budget.
func WithMaxFramesPerRune(n float64) Option {
	return func(c *config) { c.params.MaxFramesPerRune = n }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithVoiceCache caches encoded reference audio.
func WithVoiceCache(vc *VoiceCache) Option {
	return func(c *config) { c.cache = vc }
}

// WithS3Client enables s3:// model directories and voice paths.
func WithS3Client(client storage.S3Client) Option {
	return func(c *config) { c.s3 = client }
}

// WithFileStore reads the model directory from store instead of opening
// the dir argument.
func WithFileStore(store storage.FileStore) Option {
	return func(c *config) { c.store = store }
}
