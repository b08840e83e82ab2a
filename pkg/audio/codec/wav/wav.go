// Package wav reads and writes RIFF/WAVE audio.
package wav

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// ErrInvalid is returned for input that is not a readable WAVE file.
var ErrInvalid = errors.New("wav: invalid file")

const (
	formatPCM   = 1
	formatFloat = 3
)

// Decode reads a whole WAVE file and returns interleaved float samples in
// [-1, 1]. Integer PCM of 8 to 32 bits and 32-bit IEEE float are supported.
func Decode(r io.ReadSeeker) (samples []float32, sampleRate, channels int, err error) {
	d := gowav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, 0, 0, ErrInvalid
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, 0, 0, fmt.Errorf("%w: missing format", ErrInvalid)
	}

	samples = make([]float32, len(buf.Data))
	switch {
	case d.WavAudioFormat == formatFloat && d.BitDepth == 32:
		for i, v := range buf.Data {
			samples[i] = math.Float32frombits(uint32(v))
		}
	case d.WavAudioFormat == formatPCM || d.WavAudioFormat == 0xFFFE:
		bits := int(d.BitDepth)
		if bits < 8 || bits > 32 {
			return nil, 0, 0, fmt.Errorf("%w: %d-bit samples", ErrInvalid, bits)
		}
		scale := float32(int64(1) << (bits - 1))
		offset := 0
		if bits == 8 {
			// 8-bit WAVE is unsigned.
			offset = 128
		}
		for i, v := range buf.Data {
			samples[i] = float32(v-offset) / scale
		}
	default:
		return nil, 0, 0, fmt.Errorf("%w: audio format %d", ErrInvalid, d.WavAudioFormat)
	}
	return samples, buf.Format.SampleRate, buf.Format.NumChannels, nil
}

// Encode writes mono float samples as a 16-bit PCM WAVE file.
func Encode(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := gowav.NewEncoder(w, sampleRate, 16, 1, formatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		v := math.Round(float64(s) * 32767)
		buf.Data[i] = int(max(-32768, min(32767, v)))
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav: write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav: close: %w", err)
	}
	return nil
}
