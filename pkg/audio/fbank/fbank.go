// Package fbank computes log mel filterbank features from PCM audio.
//
// The features feed the voice encoder: a reference recording is turned into
// a [T, NumMels] matrix, pooled to the acoustic frame rate and projected into
// the conditioning space of the model.
//
// Default parameters follow the Kaldi convention:
//
//	SampleRate:  16000
//	WindowSize:  400 (25 ms)
//	HopSize:     160 (10 ms)
//	FFTSize:     512
//	NumMels:     80
//	LowFreq:     20
//	HighFreq:  7600
//	PreEmphasis: 0.97
package fbank

import (
	"math"
)

// Config controls mel filterbank extraction parameters.
type Config struct {
	SampleRate  int     // audio sample rate in Hz (default 16000)
	WindowSize  int     // window length in samples (default 400 = 25ms)
	HopSize     int     // hop length in samples (default 160 = 10ms)
	FFTSize     int     // FFT size, a power of two (default 512)
	NumMels     int     // number of mel bins (default 80)
	LowFreq     float64 // lowest mel frequency (default 20)
	HighFreq    float64 // highest mel frequency (default 7600)
	PreEmphasis float64 // pre-emphasis coefficient (default 0.97)
}

// DefaultConfig returns the 16kHz, 80-bin configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		WindowSize:  400,
		HopSize:     160,
		FFTSize:     512,
		NumMels:     80,
		LowFreq:     20,
		HighFreq:    7600,
		PreEmphasis: 0.97,
	}
}

// Extractor computes mel filterbank features from PCM samples. It holds no
// per-call state and is safe for concurrent use.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
}

// New creates a new fbank Extractor with the given config.
func New(cfg Config) *Extractor {
	return &Extractor{
		cfg:     cfg,
		window:  hammingWindow(cfg.WindowSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
	}
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// NumFrames returns the number of feature frames Extract produces for n
// samples.
func (e *Extractor) NumFrames(n int) int {
	if n < e.cfg.WindowSize {
		return 0
	}
	return (n-e.cfg.WindowSize)/e.cfg.HopSize + 1
}

// Extract computes log mel filterbank features from samples in [-1, 1].
// It returns nil when there is less than one window of audio.
func (e *Extractor) Extract(pcm []float32) [][]float32 {
	cfg := e.cfg
	numFrames := e.NumFrames(len(pcm))
	if numFrames == 0 {
		return nil
	}

	features := make([][]float32, numFrames)
	re := make([]float64, cfg.FFTSize)
	im := make([]float64, cfg.FFTSize)
	power := make([]float64, cfg.FFTSize/2+1)

	for t := range numFrames {
		start := t * cfg.HopSize
		for i := range re {
			re[i], im[i] = 0, 0
		}
		for i := 0; i < cfg.WindowSize; i++ {
			s := float64(pcm[start+i])
			if i > 0 {
				s -= cfg.PreEmphasis * float64(pcm[start+i-1])
			}
			re[i] = s * e.window[i]
		}
		FFT(re, im)
		for i := range power {
			power[i] = re[i]*re[i] + im[i]*im[i]
		}

		mel := make([]float32, cfg.NumMels)
		for m, filter := range e.melBank {
			sum := 0.0
			for k, w := range filter {
				sum += w * power[k]
			}
			mel[m] = float32(math.Log(max(sum, 1e-10)))
		}
		features[t] = mel
	}
	return features
}

// Pool averages consecutive groups of size frames. A trailing partial group
// is averaged over the frames it has.
func Pool(features [][]float32, size int) [][]float32 {
	if len(features) == 0 || size <= 1 {
		return features
	}
	dim := len(features[0])
	out := make([][]float32, 0, (len(features)+size-1)/size)
	for start := 0; start < len(features); start += size {
		group := features[start:min(start+size, len(features))]
		row := make([]float32, dim)
		for _, f := range group {
			for m, v := range f {
				row[m] += v
			}
		}
		for m := range row {
			row[m] /= float32(len(group))
		}
		out = append(out, row)
	}
	return out
}
