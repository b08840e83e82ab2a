package reference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"unicode"

	"github.com/haivivi/pockettts/pkg/acoustic"
)

// Frame shares per rune class, in tenths of a frame.
const (
	wordWeight  = 8
	spaceWeight = 5
	punctWeight = 15
	wideWeight  = 25

	minBudget = 2
	decay     = 0.6
)

var errNotFed = errors.New("reference: step before feed")

// RuneFrames returns the number of frames the reference core speaks for
// text before raising its end-of-speech logit.
func RuneFrames(tokens []int) int {
	sum := 0
	for _, tok := range tokens {
		sum += runeWeight(rune(tok))
	}
	return max(minBudget, (sum+9)/10)
}

func runeWeight(r rune) int {
	switch {
	case unicode.IsSpace(r):
		return spaceWeight
	case unicode.IsPunct(r) || unicode.IsSymbol(r):
		return punctWeight
	case r < 0x2E80 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
		return wordWeight
	default:
		return wideWeight
	}
}

type session struct {
	tokens []int
	budget int
	pos    int
	h      [LatentDim]float64
	synth  synth
	closed bool
}

func newSession(v voice) *session {
	s := &session{}
	s.synth.reset(v)
	return s
}

func (s *session) Feed(_ context.Context, tokens []int) error {
	if s.closed {
		return acoustic.ErrClosed
	}
	if len(tokens) == 0 {
		return fmt.Errorf("reference: feed: no tokens")
	}
	s.tokens = append(s.tokens[:0], tokens...)
	s.budget = RuneFrames(tokens)
	s.pos = 0
	return nil
}

func (s *session) Step(ctx context.Context, in acoustic.StepInput) (acoustic.Frame, error) {
	if s.closed {
		return acoustic.Frame{}, acoustic.ErrClosed
	}
	if len(s.tokens) == 0 {
		return acoustic.Frame{}, errNotFed
	}
	if err := ctx.Err(); err != nil {
		return acoustic.Frame{}, err
	}

	idx := min(len(s.tokens)-1, s.pos*len(s.tokens)/s.budget)
	r := rune(s.tokens[idx])
	progress := float64(s.pos) / float64(s.budget)

	scale := 0.0
	if in.Noise != nil && in.Temperature > 0 {
		steps := max(in.DecodeSteps, 1)
		scale = math.Sqrt(in.Temperature) * 0.3 * math.Pow(0.5, float64(steps-1))
	}

	latent := make([]float32, LatentDim)
	for j := range LatentDim {
		v := decay*s.h[j] + (1-decay)*drive(r, j, progress)
		if scale > 0 {
			v += scale * in.Noise()
		}
		s.h[j] = v
		latent[j] = float32(v)
	}

	logit := 4*float64(s.pos+1-s.budget) - 2
	s.pos++
	return acoustic.Frame{Latent: latent, EOSLogit: logit}, nil
}

// drive is the target latent for rune r. Dimension 0 is loudness,
// dimension 1 pitch movement, the rest shape the harmonic spectrum.
func drive(r rune, j int, progress float64) float64 {
	switch j {
	case 0:
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			return -1.5
		}
		return 1.5
	case 1:
		// Declination across the segment plus a per-rune accent.
		return 0.6 - 1.2*progress + 0.3*math.Sin(float64(r)*0.61)
	default:
		return 0.8 * math.Sin(float64(r)*0.37*float64(j)+float64(j)*1.7)
	}
}

func (s *session) Decode(ctx context.Context, latents [][]float32) ([]float32, error) {
	if s.closed {
		return nil, acoustic.ErrClosed
	}
	out := make([]float32, 0, len(latents)*FrameSize)
	for i, l := range latents {
		if len(l) != LatentDim {
			return nil, fmt.Errorf("%w: latent %d has %d values, want %d", acoustic.ErrShape, i, len(l), LatentDim)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = s.synth.frame(out, l)
	}
	return out, nil
}

func (s *session) Close() error {
	s.closed = true
	return nil
}
