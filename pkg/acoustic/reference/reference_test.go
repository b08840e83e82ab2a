package reference

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/haivivi/pockettts/pkg/acoustic"
	"github.com/haivivi/pockettts/pkg/safetensors"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := acoustic.Open(context.Background(), Kind, acoustic.MapSource{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b.(*Backend)
}

func tokens(s string) []int {
	var ids []int
	for _, r := range s {
		ids = append(ids, int(r))
	}
	return ids
}

func sine(freq float64, seconds float64) []float32 {
	out := make([]float32, int(seconds*SampleRate))
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/SampleRate))
	}
	return out
}

// run steps a fresh session until EOS and returns the latents.
func run(t *testing.T, s acoustic.Session, text string, in acoustic.StepInput) [][]float32 {
	t.Helper()
	ctx := context.Background()
	if err := s.Feed(ctx, tokens(text)); err != nil {
		t.Fatal(err)
	}
	var latents [][]float32
	for range 100 {
		f, err := s.Step(ctx, in)
		if err != nil {
			t.Fatal(err)
		}
		latents = append(latents, f.Latent)
		if acoustic.Sigmoid(f.EOSLogit) > 0.018 {
			return latents
		}
	}
	t.Fatal("no EOS within 100 steps")
	return nil
}

func TestInfo(t *testing.T) {
	info := newTestBackend(t).Info()
	want := acoustic.Info{Name: "reference", SampleRate: 24000, FrameSize: 1920, LatentDim: 32, EmbeddingDim: 32}
	if info != want {
		t.Fatalf("Info = %+v; want %+v", info, want)
	}
}

func TestRuneFrames(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"a", 2},
		{"Hello.", 6},
		{"Hello world.", 10},
		{"你好。", 7},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := RuneFrames(tokens(tt.text)); got != tt.want {
				t.Errorf("RuneFrames(%q) = %d; want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestSessionEOS(t *testing.T) {
	b := newTestBackend(t)
	s, err := b.NewSession(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	latents := run(t, s, "Hello.", acoustic.StepInput{DecodeSteps: 1})
	if len(latents) != 6 {
		t.Fatalf("EOS after %d frames; want 6", len(latents))
	}

	// A second segment restarts the schedule but keeps state.
	latents = run(t, s, "Hi.", acoustic.StepInput{DecodeSteps: 1})
	if len(latents) != RuneFrames(tokens("Hi.")) {
		t.Fatalf("second segment EOS after %d frames", len(latents))
	}
}

func TestSessionErrors(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	s, _ := b.NewSession(ctx, nil)
	if _, err := s.Step(ctx, acoustic.StepInput{}); !errors.Is(err, errNotFed) {
		t.Fatalf("Step before Feed = %v; want errNotFed", err)
	}
	if err := s.Feed(ctx, nil); err == nil {
		t.Fatal("Feed(nil) succeeded")
	}
	if _, err := s.Decode(ctx, [][]float32{{1, 2}}); !errors.Is(err, acoustic.ErrShape) {
		t.Fatalf("Decode short latent = %v; want ErrShape", err)
	}
	s.Close()
	if err := s.Feed(ctx, tokens("a")); !errors.Is(err, acoustic.ErrClosed) {
		t.Fatalf("Feed after Close = %v; want ErrClosed", err)
	}

	bad := &acoustic.Conditioning{Frames: 1, Dim: 4, Data: make([]float32, 4)}
	if _, err := b.NewSession(ctx, bad); !errors.Is(err, acoustic.ErrShape) {
		t.Fatalf("NewSession bad dim = %v; want ErrShape", err)
	}
	b.Close()
	if _, err := b.NewSession(ctx, nil); !errors.Is(err, acoustic.ErrClosed) {
		t.Fatalf("NewSession after Close = %v; want ErrClosed", err)
	}
}

func TestDecodeSplitMatchesWhole(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	s1, _ := b.NewSession(ctx, nil)
	latents := run(t, s1, "Hello world, how are you?", acoustic.StepInput{DecodeSteps: 1})
	whole, err := s1.Decode(ctx, latents)
	if err != nil {
		t.Fatal(err)
	}
	if len(whole) != len(latents)*FrameSize {
		t.Fatalf("Decode len = %d; want %d", len(whole), len(latents)*FrameSize)
	}

	s2, _ := b.NewSession(ctx, nil)
	var split []float32
	for start := 0; start < len(latents); start += 3 {
		pcm, err := s2.Decode(ctx, latents[start:min(start+3, len(latents))])
		if err != nil {
			t.Fatal(err)
		}
		split = append(split, pcm...)
	}
	if !slices.Equal(whole, split) {
		t.Fatal("split decode differs from whole decode")
	}

	peak := float32(0)
	for _, v := range whole {
		peak = max(peak, float32(math.Abs(float64(v))))
	}
	if peak == 0 || peak > 1 {
		t.Fatalf("peak = %v; want in (0, 1]", peak)
	}
}

func TestTemperature(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	latentsFor := func(temp float64, seed uint64) [][]float32 {
		s, _ := b.NewSession(ctx, nil)
		rng := rand.New(rand.NewPCG(seed, 0))
		return run(t, s, "Hello.", acoustic.StepInput{Temperature: temp, DecodeSteps: 1, Noise: rng.NormFloat64})
	}
	equal := func(a, b [][]float32) bool {
		return slices.EqualFunc(a, b, func(x, y []float32) bool { return slices.Equal(x, y) })
	}

	if !equal(latentsFor(0, 1), latentsFor(0, 2)) {
		t.Error("temperature 0 should ignore noise")
	}
	if !equal(latentsFor(0.7, 1), latentsFor(0.7, 1)) {
		t.Error("same seed should reproduce latents")
	}
	if equal(latentsFor(0.7, 1), latentsFor(0.7, 2)) {
		t.Error("different seeds should change latents")
	}
}

func TestEncodeVoice(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	pcm := sine(200, 1)
	cond, err := b.EncodeVoice(ctx, pcm)
	if err != nil {
		t.Fatal(err)
	}
	if cond.Dim != EmbeddingDim || cond.Frames < 12 || cond.Frames > 13 {
		t.Fatalf("cond = [1, %d, %d]; want ~[1, 13, 32]", cond.Frames, cond.Dim)
	}
	if err := cond.Validate(EmbeddingDim); err != nil {
		t.Fatal(err)
	}

	f0 := b.voice(cond).f0
	if math.Abs(f0-200) > 10 {
		t.Errorf("voice f0 = %.1f; want ~200", f0)
	}

	again, err := b.EncodeVoice(ctx, pcm)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(cond.Data, again.Data) {
		t.Error("EncodeVoice is not reproducible")
	}

	if _, err := b.EncodeVoice(ctx, pcm[:100]); !errors.Is(err, ErrTooShort) {
		t.Fatalf("EncodeVoice short = %v; want ErrTooShort", err)
	}
}

func TestEncodeVoiceCapsFrames(t *testing.T) {
	cond, err := newTestBackend(t).EncodeVoice(context.Background(), sine(150, 25))
	if err != nil {
		t.Fatal(err)
	}
	if cond.Frames != maxPromptFrames {
		t.Fatalf("Frames = %d; want %d", cond.Frames, maxPromptFrames)
	}
}

func TestVoicePitchMapping(t *testing.T) {
	b := newTestBackend(t)
	if got := b.voice(nil).f0; got != defaultF0 {
		t.Errorf("neutral f0 = %v; want %v", got, defaultF0)
	}
	cond := &acoustic.Conditioning{Frames: 1, Dim: EmbeddingDim, Data: make([]float32, EmbeddingDim)}
	cond.Data[0] = float32(4 * math.Ln2)
	if got := b.voice(cond).f0; math.Abs(got-280) > 0.01 {
		t.Errorf("f0 = %v; want 280", got)
	}
	cond.Data[0] = 40
	if got := b.voice(cond).f0; got != maxF0 {
		t.Errorf("clamped f0 = %v; want %v", got, maxF0)
	}
}

func TestEstimatePitchSilence(t *testing.T) {
	if got := estimatePitch(make([]float32, 32000), 16000); got != defaultF0 {
		t.Errorf("estimatePitch(silence) = %v; want %v", got, defaultF0)
	}
}

func TestLoadOptions(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	weights := make([]float32, NumHarmonics)
	weights[0] = 1
	if err := safetensors.Encode(&buf, nil, safetensors.F32("harmonics", []int64{NumHarmonics}, weights)); err != nil {
		t.Fatal(err)
	}
	src := acoustic.MapSource{
		Files:   map[string][]byte{"timbre": buf.Bytes()},
		Options: map[string]string{"f0": "220", "projection_seed": "9"},
	}
	be, err := Load(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	b := be.(*Backend)
	if b.f0 != 220 || b.harmonics[0] != 1 || b.harmonics[1] != 0 {
		t.Errorf("Load applied f0=%v harmonics=%v", b.f0, b.harmonics)
	}

	bad := []acoustic.MapSource{
		{Options: map[string]string{"f0": "10"}},
		{Options: map[string]string{"projection_seed": "x"}},
		{Files: map[string][]byte{"timbre": []byte("garbage")}},
	}
	for i, src := range bad {
		if _, err := Load(ctx, src); err == nil {
			t.Errorf("bad source %d loaded", i)
		}
	}
}
