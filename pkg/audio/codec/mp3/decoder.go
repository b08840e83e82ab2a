// Package mp3 decodes MP3 audio to PCM.
//
// Decoding is pure Go. The decoder always produces interleaved 16-bit stereo
// at the stream's sample rate; mono sources are duplicated on both channels.
package mp3

import (
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/haivivi/pockettts/pkg/audio/pcm"
)

// Channels is the channel count of decoded output.
const Channels = 2

// Decoder decodes MP3 audio to PCM.
type Decoder struct {
	d *gomp3.Decoder
}

// NewDecoder creates a decoder reading from r. It reads the first frame to
// learn the sample rate.
func NewDecoder(r io.Reader) (*Decoder, error) {
	d, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	return &Decoder{d: d}, nil
}

// SampleRate returns the sample rate of the MP3 stream.
func (d *Decoder) SampleRate() int {
	return d.d.SampleRate()
}

// Read reads decoded PCM data into p as interleaved little-endian int16
// stereo samples.
func (d *Decoder) Read(p []byte) (int, error) {
	return d.d.Read(p)
}

// DecodeFull decodes the whole stream to interleaved int16 stereo PCM.
func DecodeFull(r io.Reader) (pcm []byte, sampleRate, channels int, err error) {
	d, err := NewDecoder(r)
	if err != nil {
		return nil, 0, 0, err
	}
	pcm, err = io.ReadAll(d)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("mp3: decode: %w", err)
	}
	return pcm, d.SampleRate(), Channels, nil
}

// Decode decodes the whole stream to interleaved float stereo samples.
func Decode(r io.Reader) (samples []float32, sampleRate int, err error) {
	data, rate, _, err := DecodeFull(r)
	if err != nil {
		return nil, 0, err
	}
	return pcm.L16ToFloat(data), rate, nil
}
