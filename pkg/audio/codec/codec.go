// Package codec decodes reference recordings of any supported container into
// float PCM.
//
// The container is sniffed from the leading bytes, so callers do not need to
// trust file extensions:
//
//	clip, err := codec.Decode(data)
//	mono := clip.Mono()
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/haivivi/pockettts/pkg/audio/codec/mp3"
	"github.com/haivivi/pockettts/pkg/audio/codec/wav"
	"github.com/haivivi/pockettts/pkg/audio/resampler"
)

// ErrUnknownFormat is returned when the container cannot be recognized.
var ErrUnknownFormat = errors.New("codec: unknown audio format")

// Kind is a container type.
type Kind int

const (
	KindUnknown Kind = iota
	KindWAV
	KindMP3
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindWAV:
		return "wav"
	case KindMP3:
		return "mp3"
	}
	return "unknown"
}

// Sniff identifies the container from its first bytes. MP3 is recognized by
// an ID3v2 tag or an MPEG audio frame sync word.
func Sniff(data []byte) Kind {
	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return KindWAV
	case len(data) >= 3 && string(data[:3]) == "ID3":
		return KindMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return KindMP3
	}
	return KindUnknown
}

// Clip is decoded audio with interleaved samples.
type Clip struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames.
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the playback time of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Format returns the clip's rate and channel layout.
func (c *Clip) Format() resampler.Format {
	return resampler.Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// Mono returns the clip downmixed to a single channel.
func (c *Clip) Mono() []float32 {
	return resampler.Downmix(c.Samples, c.Channels)
}

// Decode sniffs and decodes a complete audio file held in memory.
func Decode(data []byte) (*Clip, error) {
	switch kind := Sniff(data); kind {
	case KindWAV:
		samples, rate, channels, err := wav.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("codec: %w", err)
		}
		return &Clip{Samples: samples, SampleRate: rate, Channels: channels}, nil
	case KindMP3:
		samples, rate, err := mp3.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("codec: %w", err)
		}
		return &Clip{Samples: samples, SampleRate: rate, Channels: mp3.Channels}, nil
	}
	return nil, ErrUnknownFormat
}
