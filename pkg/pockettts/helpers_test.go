package pockettts_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/haivivi/pockettts/pkg/audio/codec/wav"
	"github.com/haivivi/pockettts/pkg/pockettts"
)

func loadModel(t *testing.T, opts ...pockettts.Option) *pockettts.Model {
	t.Helper()
	m, err := pockettts.Load(context.Background(), pockettts.DefaultVariant, opts...)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func sine(freq, seconds float64, rate int) []float32 {
	out := make([]float32, int(seconds*float64(rate)))
	for i := range out {
		out[i] = float32(0.4 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

// writeWAV writes samples to dir/name and returns the path.
func writeWAV(t *testing.T, dir, name string, samples []float32, rate int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := wav.Encode(f, samples, rate); err != nil {
		t.Fatalf("wav.Encode: %v", err)
	}
	return p
}

func wavBytes(t *testing.T, samples []float32, rate int) []byte {
	t.Helper()
	data, err := os.ReadFile(writeWAV(t, t.TempDir(), "voice.wav", samples, rate))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func seconds(m *pockettts.Model, pcm []float32) float64 {
	return float64(len(pcm)) / float64(m.SampleRate())
}

func equalSamples(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			return false
		}
	}
	return true
}
