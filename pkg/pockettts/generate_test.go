package pockettts_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/haivivi/pockettts/pkg/acoustic/reference"
	"github.com/haivivi/pockettts/pkg/pockettts"
	"github.com/haivivi/pockettts/pkg/sentence"
)

func TestGenerateHello(t *testing.T) {
	m := loadModel(t)
	pcm, err := m.Generate(context.Background(), "Hello.", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := seconds(m, pcm); got < 0.3 || got > 1.5 {
		t.Errorf("duration = %.3fs; want within [0.3, 1.5]", got)
	}
	// Six frames of speech plus three after end-of-speech.
	if got, want := len(pcm), 9*reference.FrameSize; got != want {
		t.Errorf("samples = %d; want %d", got, want)
	}
}

func TestGenerateWithinRuneBound(t *testing.T) {
	m := loadModel(t)
	tests := []string{
		"a",
		"hello world",
		"The quick brown fox jumps over the lazy dog.",
		"你好，世界",
		"  spaced   out\ttext  ",
	}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			pcm, err := m.Generate(context.Background(), text, nil)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(pcm) == 0 {
				t.Fatal("empty audio")
			}
			runes := utf8.RuneCountInString(text) + 1
			maxFrames := int(math.Ceil(float64(runes)*pockettts.DefaultMaxFramesPerRune)) + 4 + 3
			if len(pcm) > maxFrames*reference.FrameSize {
				t.Errorf("samples = %d; want <= %d", len(pcm), maxFrames*reference.FrameSize)
			}
			if len(pcm)%reference.FrameSize != 0 {
				t.Errorf("samples = %d; not a whole number of frames", len(pcm))
			}
		})
	}
}

func TestGenerateDeterministic(t *testing.T) {
	ctx := context.Background()
	a, err := loadModel(t).Generate(ctx, "Same seed, same audio.", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := loadModel(t).Generate(ctx, "Same seed, same audio.", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !equalSamples(a, b) {
		t.Error("two models with the same seed produced different audio")
	}

	c, err := loadModel(t, pockettts.WithSeed(7)).Generate(ctx, "Same seed, same audio.", nil)
	if err != nil {
		t.Fatal(err)
	}
	if equalSamples(a, c) {
		t.Error("different seeds produced identical audio")
	}

	g1, _ := loadModel(t, pockettts.WithTemperature(0)).Generate(ctx, "Greedy.", nil)
	g2, _ := loadModel(t, pockettts.WithTemperature(0), pockettts.WithSeed(99)).Generate(ctx, "Greedy.", nil)
	if !equalSamples(g1, g2) {
		t.Error("greedy decoding depends on the seed")
	}
}

func TestGenerateEmptyText(t *testing.T) {
	m := loadModel(t)
	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := m.Generate(context.Background(), text, nil); !errors.Is(err, pockettts.ErrEmptyText) {
			t.Errorf("Generate(%q) error = %v; want ErrEmptyText", text, err)
		}
		if _, err := m.GenerateWithPauses(context.Background(), text, nil); !errors.Is(err, pockettts.ErrEmptyText) {
			t.Errorf("GenerateWithPauses(%q) error = %v; want ErrEmptyText", text, err)
		}
	}
}

func TestGenerateDiverged(t *testing.T) {
	m := loadModel(t, pockettts.WithMaxFramesPerRune(0.1))
	_, err := m.Generate(context.Background(), "Hello.", nil)
	if !errors.Is(err, pockettts.ErrDiverged) {
		t.Fatalf("error = %v; want ErrDiverged", err)
	}
}

func TestGenerateFramesAfterEOS(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		after int
		want  int
	}{
		{0, 6},
		{1, 7},
		{5, 11},
	}
	for _, tt := range tests {
		m := loadModel(t, pockettts.WithFramesAfterEOS(tt.after))
		pcm, err := m.Generate(ctx, "Hello.", nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := len(pcm) / reference.FrameSize; got != tt.want {
			t.Errorf("after=%d: frames = %d; want %d", tt.after, got, tt.want)
		}
	}
}

func TestGenerateCanceled(t *testing.T) {
	m := loadModel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Generate(ctx, "Hello.", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v; want context.Canceled", err)
	}
}

func TestGenerateWithPausesLonger(t *testing.T) {
	m := loadModel(t)
	ctx := context.Background()
	tests := []string{
		"Hello.",
		"Hello world. How are you, friend?\nFine.",
		"First line\nsecond line\nthird line",
		"One; two: three, four. Five!",
		"你好。今天天气很好，我们出去吧！",
	}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			plain, err := m.Generate(ctx, text, nil)
			if err != nil {
				t.Fatal(err)
			}
			paused, err := m.GenerateWithPauses(ctx, text, nil)
			if err != nil {
				t.Fatal(err)
			}
			if len(paused) < len(plain) {
				t.Errorf("pauses = %d samples; want >= %d", len(paused), len(plain))
			}
		})
	}
}

func TestGenerateWithPausesSilence(t *testing.T) {
	m := loadModel(t, pockettts.WithFramesAfterEOS(0))
	ctx := context.Background()

	a, _ := m.Generate(ctx, "Hello.", nil)
	b, _ := m.Generate(ctx, "World.", nil)
	got, err := m.GenerateWithPauses(ctx, "Hello. World.", nil)
	if err != nil {
		t.Fatal(err)
	}
	pause := int(pockettts.SentencePause.Milliseconds()) * m.SampleRate() / 1000
	if want := len(a) + pause + len(b); len(got) != want {
		t.Fatalf("samples = %d; want %d", len(got), want)
	}
	for i := len(a); i < len(a)+pause; i++ {
		if got[i] != 0 {
			t.Fatalf("sample %d = %v; want silence", i, got[i])
		}
	}
}

func TestGenerateWithPausesSingleSegment(t *testing.T) {
	m := loadModel(t)
	ctx := context.Background()
	plain, _ := m.Generate(ctx, "no punctuation here", nil)
	paused, err := m.GenerateWithPauses(ctx, "no punctuation here", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !equalSamples(plain, paused) {
		t.Error("a single segment differs between Generate and GenerateWithPauses")
	}
}

func TestPauseFor(t *testing.T) {
	tests := []struct {
		b    sentence.Boundary
		want time.Duration
	}{
		{sentence.BoundarySentence, 400 * time.Millisecond},
		{sentence.BoundaryClause, 200 * time.Millisecond},
		{sentence.BoundaryLine, 600 * time.Millisecond},
		{sentence.BoundaryNone, 0},
	}
	for _, tt := range tests {
		if got := pockettts.PauseFor(tt.b); got != tt.want {
			t.Errorf("PauseFor(%v) = %v; want %v", tt.b, got, tt.want)
		}
	}
}
