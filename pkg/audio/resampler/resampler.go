package resampler

import (
	"errors"
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// ErrRate is returned for non-positive sample rates.
var ErrRate = errors.New("resampler: invalid sample rate")

// ToMono downmixes interleaved samples in src to mono and resamples them to
// dstRate.
func ToMono(samples []float32, src Format, dstRate int) ([]float32, error) {
	return Resample(Downmix(samples, src.Channels), src.SampleRate, dstRate)
}

// Downmix averages interleaved channels into one. A trailing partial frame
// is dropped.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	out := make([]float32, len(samples)/channels)
	for i := range out {
		var sum float32
		for c := range channels {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// Resample converts mono samples from srcRate to dstRate. The output length
// is len(samples)*dstRate/srcRate, rounded to the nearest sample. When the
// rates are equal a copy of the input is returned.
func Resample(samples []float32, srcRate, dstRate int) ([]float32, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrRate, srcRate, dstRate)
	}
	want := int(math.Round(float64(len(samples)) * float64(dstRate) / float64(srcRate)))
	if srcRate == dstRate || len(samples) == 0 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create: %w", err)
	}

	// Pad with 100ms of silence so the filter tail is pushed through.
	input := make([]float64, len(samples)+srcRate/10)
	for i, s := range samples {
		input[i] = float64(s)
	}
	output, err := r.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}

	out := make([]float32, want)
	for i := range min(want, len(output)) {
		out[i] = float32(max(-1, min(1, output[i])))
	}
	return out, nil
}
