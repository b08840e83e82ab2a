package resampler

import (
	"errors"
	"math"
	"testing"
)

func TestFormat_Frames(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		want   int
	}{
		{name: "unset", format: Format{SampleRate: 44100}, want: 1},
		{name: "mono", format: Format{SampleRate: 44100, Channels: 1}, want: 1},
		{name: "stereo", format: Format{SampleRate: 48000, Channels: 2}, want: 2},
		{name: "quad", format: Format{SampleRate: 48000, Channels: 4}, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.Frames(8); got != 8/tt.want {
				t.Errorf("Format.Frames(8) = %d, want %d", got, 8/tt.want)
			}
		})
	}
}

func TestDownmix(t *testing.T) {
	got := Downmix([]float32{1, 0, 0.5, 0.5, -1, 1, 9}, 2)
	want := []float32{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %f, want %f", i, got[i], want[i])
		}
	}
	mono := []float32{1, 2}
	if got := Downmix(mono, 1); &got[0] != &mono[0] {
		t.Error("Downmix with one channel should return input")
	}
}

func sine(rate, n int, freq, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestResample(t *testing.T) {
	tests := []struct {
		name    string
		src     int
		dst     int
		samples int
		want    int
	}{
		{name: "48k to 24k", src: 48000, dst: 24000, samples: 48000, want: 24000},
		{name: "16k to 24k", src: 16000, dst: 24000, samples: 16000, want: 24000},
		{name: "44.1k to 16k", src: 44100, dst: 16000, samples: 4410, want: 1600},
		{name: "same rate", src: 24000, dst: 24000, samples: 100, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sine(tt.src, tt.samples, 440, 0.5)
			out, err := Resample(in, tt.src, tt.dst)
			if err != nil {
				t.Fatal(err)
			}
			if len(out) != tt.want {
				t.Fatalf("len = %d, want %d", len(out), tt.want)
			}
			if tt.want < 1000 {
				return
			}
			var sum float64
			mid := out[len(out)/4 : 3*len(out)/4]
			for _, s := range mid {
				sum += float64(s) * float64(s)
			}
			rms := math.Sqrt(sum / float64(len(mid)))
			if rms < 0.25 || rms > 0.45 {
				t.Errorf("rms = %f, want about 0.35", rms)
			}
		})
	}
}

func TestResampleSameRateCopies(t *testing.T) {
	in := []float32{0.1, 0.2}
	out, err := Resample(in, 24000, 24000)
	if err != nil {
		t.Fatal(err)
	}
	out[0] = 9
	if in[0] != 0.1 {
		t.Error("Resample modified its input")
	}
}

func TestResampleInvalidRate(t *testing.T) {
	if _, err := Resample([]float32{1}, 0, 24000); !errors.Is(err, ErrRate) {
		t.Errorf("err = %v, want ErrRate", err)
	}
}

func TestToMono(t *testing.T) {
	stereo := make([]float32, 9600)
	for i := range stereo {
		stereo[i] = 0.25
	}
	out, err := ToMono(stereo, Format{SampleRate: 48000, Channels: 2}, 48000)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 4800 {
		t.Errorf("len = %d, want 4800", len(out))
	}
}
