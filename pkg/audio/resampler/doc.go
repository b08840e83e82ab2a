// Package resampler converts float PCM audio between sample rates.
//
// Reference recordings arrive at whatever rate they were captured at; the
// voice encoder needs them at the model rate and the feature extractor at
// 16kHz. Conversion is pure Go, so the package builds without cgo.
//
// Example usage:
//
//	src := resampler.Format{SampleRate: 44100, Channels: 2}
//	mono24k, err := resampler.ToMono(samples, src, 24000)
//	if err != nil {
//	    return err
//	}
package resampler
