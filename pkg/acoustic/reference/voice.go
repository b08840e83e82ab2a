package reference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/haivivi/pockettts/pkg/acoustic"
	"github.com/haivivi/pockettts/pkg/audio/fbank"
	"github.com/haivivi/pockettts/pkg/audio/resampler"
)

// ErrTooShort is returned by EncodeVoice when the reference audio is
// shorter than one analysis window.
var ErrTooShort = errors.New("reference: reference audio too short")

const (
	// featureRate is the fbank frame rate (10 ms hop).
	featureRate = 100
	// poolSize groups fbank frames into acoustic frames (80 ms).
	poolSize = 8
	// maxPromptFrames caps the conditioning at 20 s.
	maxPromptFrames = 250
	// pitchSeconds bounds the audio scanned for pitch.
	pitchSeconds = 5
)

// EncodeVoice implements acoustic.Backend. The conditioning has one row
// per 80 ms of audio (at most 250 rows): element 0 encodes the estimated
// pitch, the rest is a fixed random projection of the pooled log-mel
// spectrum.
func (b *Backend) EncodeVoice(ctx context.Context, pcm []float32) (*acoustic.Conditioning, error) {
	if b.closed.Load() {
		return nil, acoustic.ErrClosed
	}
	cfg := b.fbank.Config()
	pcm16, err := resampler.Resample(pcm, SampleRate, cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("reference: resample: %w", err)
	}
	feats := b.fbank.Extract(pcm16)
	if len(feats) == 0 {
		return nil, fmt.Errorf("%w: %d samples", ErrTooShort, len(pcm))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pooled := fbank.Pool(feats, poolSize)
	if len(pooled) > maxPromptFrames {
		pooled = pooled[:maxPromptFrames]
	}

	f0 := estimatePitch(pcm16, cfg.SampleRate)
	pitch := float32(4 * math.Log(f0/defaultF0))

	cond := &acoustic.Conditioning{
		Frames: len(pooled),
		Dim:    EmbeddingDim,
		Data:   make([]float32, len(pooled)*EmbeddingDim),
	}
	for i, mel := range pooled {
		row := cond.Row(i)
		row[0] = pitch
		mean := float32(0)
		for _, v := range mel {
			mean += v
		}
		mean /= float32(len(mel))
		for d, w := range b.proj {
			acc := float32(0)
			for m, v := range mel {
				acc += w[m] * (v - mean)
			}
			row[d+1] = float32(math.Tanh(float64(acc) / 4))
		}
	}
	return cond, nil
}

// projection returns rows×cols Gaussian weights scaled by 1/sqrt(cols).
func projection(seed uint64, rows, cols int) [][]float32 {
	rng := rand.New(rand.NewPCG(seed, 0x706f636b6574))
	scale := 1 / math.Sqrt(float64(cols))
	out := make([][]float32, rows)
	for i := range out {
		out[i] = make([]float32, cols)
		for j := range out[i] {
			out[i][j] = float32(rng.NormFloat64() * scale)
		}
	}
	return out
}

// estimatePitch returns the median fundamental frequency over voiced
// windows, or the neutral pitch when nothing is voiced. Each window picks
// the shortest autocorrelation peak within 90% of the best one, which
// avoids octave errors on periodic input.
func estimatePitch(pcm []float32, rate int) float64 {
	const (
		window   = 1024
		hop      = 512
		voicedAt = 0.5
	)
	minLag := rate / int(maxF0)
	maxLag := rate / int(minF0)
	n := min(len(pcm), rate*pitchSeconds)
	if n < window+maxLag {
		return defaultF0
	}

	var f0s []float64
	r := make([]float64, maxLag+1)
	for start := 0; start+window+maxLag <= n; start += hop {
		x := pcm[start : start+window+maxLag]
		energy0 := 0.0
		for i := range window {
			energy0 += float64(x[i]) * float64(x[i])
		}
		if energy0 < 1e-6 {
			continue
		}
		best := 0.0
		for lag := minLag; lag <= maxLag; lag++ {
			dot, energy := 0.0, 0.0
			for i := range window {
				a, b := float64(x[i]), float64(x[i+lag])
				dot += a * b
				energy += b * b
			}
			r[lag] = 0
			if energy > 0 {
				r[lag] = dot / math.Sqrt(energy0*energy)
			}
			best = max(best, r[lag])
		}
		if best < voicedAt {
			continue
		}
		for lag := minLag + 1; lag < maxLag; lag++ {
			if r[lag] >= 0.9*best && r[lag] >= r[lag-1] && r[lag] >= r[lag+1] {
				f0s = append(f0s, float64(rate)/float64(lag))
				break
			}
		}
	}
	if len(f0s) == 0 {
		return defaultF0
	}
	slices.Sort(f0s)
	return clampF0(f0s[len(f0s)/2])
}
