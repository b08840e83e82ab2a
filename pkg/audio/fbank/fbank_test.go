package fbank

import (
	"math"
	"testing"
)

func TestHammingWindow(t *testing.T) {
	w := hammingWindow(400)
	if len(w) != 400 {
		t.Fatalf("expected 400, got %d", len(w))
	}
	// Hamming window: endpoints should be ~0.08
	if math.Abs(w[0]-0.08) > 0.01 {
		t.Errorf("w[0] = %f, want ~0.08", w[0])
	}
	// Center should be ~1.0
	if math.Abs(w[199]-1.0) > 0.02 {
		t.Errorf("w[199] = %f, want ~1.0", w[199])
	}
}

func TestMelConversion(t *testing.T) {
	// HTK mel scale: 2595 * log10(1 + f/700)
	// hzToMel(1000) = 2595 * log10(1 + 1000/700) ≈ 1000.45
	mel := hzToMel(1000)
	if math.Abs(mel-1000.45) > 1.0 {
		t.Errorf("hzToMel(1000) = %f, want ~1000.45", mel)
	}
	// Round-trip
	hz := melToHz(mel)
	if math.Abs(hz-1000) > 0.1 {
		t.Errorf("melToHz(hzToMel(1000)) = %f, want 1000", hz)
	}
}

func TestMelFilterBank(t *testing.T) {
	bank := melFilterBank(80, 512, 16000, 20, 7600)
	if len(bank) != 80 {
		t.Fatalf("expected 80 filters, got %d", len(bank))
	}
	halfFFT := 512/2 + 1
	for i, f := range bank {
		if len(f) != halfFFT {
			t.Fatalf("filter %d: expected %d bins, got %d", i, halfFFT, len(f))
		}
	}
	// Each filter should have at least one non-zero coefficient
	for i, f := range bank {
		hasNonZero := false
		for _, v := range f {
			if v > 0 {
				hasNonZero = true
				break
			}
		}
		if !hasNonZero {
			t.Errorf("filter %d is all zeros", i)
		}
	}
}

func TestFFT(t *testing.T) {
	// Test with known signal: DC + 1Hz cosine in 8-sample window
	n := 8
	real := make([]float64, n)
	imag := make([]float64, n)
	for i := range real {
		real[i] = 1.0 + math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	FFT(real, imag)

	// DC component should be n (sum of 1.0*8)
	if math.Abs(real[0]-float64(n)) > 0.01 {
		t.Errorf("DC = %f, want %d", real[0], n)
	}
	// First harmonic should be n/2
	if math.Abs(real[1]-float64(n)/2) > 0.01 {
		t.Errorf("H1 real = %f, want %f", real[1], float64(n)/2)
	}
}

func TestExtract(t *testing.T) {
	cfg := DefaultConfig()
	ext := New(cfg)

	// 1 second of 440Hz sine at 16kHz
	n := 16000
	pcm := make([]float32, n)
	for i := range pcm {
		pcm[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 16000))
	}

	features := ext.Extract(pcm)
	if len(features) != ext.NumFrames(n) {
		t.Fatalf("expected %d frames, got %d", ext.NumFrames(n), len(features))
	}
	if len(features) != 98 {
		t.Fatalf("expected 98 frames, got %d", len(features))
	}
	if len(features[0]) != 80 {
		t.Fatalf("expected 80 mels, got %d", len(features[0]))
	}
	for i, f := range features {
		for j, v := range f {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Errorf("features[%d][%d] = %f (not finite)", i, j, v)
			}
		}
	}

	// The 440Hz bin should carry far more energy than the top bin.
	peak := 0
	for m, v := range features[10] {
		if v > features[10][peak] {
			peak = m
		}
	}
	if peak > 20 {
		t.Errorf("peak mel bin = %d, want a low bin for 440Hz", peak)
	}
}

func TestExtractShortInput(t *testing.T) {
	ext := New(DefaultConfig())
	if got := ext.Extract(make([]float32, 399)); got != nil {
		t.Errorf("expected nil for short input, got %d frames", len(got))
	}
	if got := ext.NumFrames(400); got != 1 {
		t.Errorf("NumFrames(400) = %d, want 1", got)
	}
}

func TestPool(t *testing.T) {
	features := [][]float32{{1, 2}, {3, 4}, {5, 6}, {7, 8}, {9, 10}}
	pooled := Pool(features, 2)
	want := [][]float32{{2, 3}, {6, 7}, {9, 10}}
	if len(pooled) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(pooled))
	}
	for i := range want {
		for j := range want[i] {
			if pooled[i][j] != want[i][j] {
				t.Errorf("pooled[%d][%d] = %f, want %f", i, j, pooled[i][j], want[i][j])
			}
		}
	}
	if got := Pool(features, 1); len(got) != len(features) {
		t.Errorf("Pool(size 1) changed length to %d", len(got))
	}
}

func BenchmarkExtract(b *testing.B) {
	ext := New(DefaultConfig())

	// 3 seconds at 16kHz
	pcm := make([]float32, 48000)
	for i := range pcm {
		pcm[i] = float32(math.Sin(2*math.Pi*440*float64(i)/16000)) * 0.5
	}

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		_ = ext.Extract(pcm)
	}
}
