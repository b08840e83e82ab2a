//go:build onnxruntime

package onnxcore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haivivi/pockettts/pkg/acoustic"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name string
		opts map[string]string
		ok   bool
	}{
		{"required only", map[string]string{"lm_state_dim": "64", "decoder_state_dim": "16"}, true},
		{"missing lm state", map[string]string{"decoder_state_dim": "16"}, false},
		{"bad number", map[string]string{"lm_state_dim": "x", "decoder_state_dim": "16"}, false},
		{"zero latent", map[string]string{"lm_state_dim": "64", "decoder_state_dim": "16", "latent_dim": "0"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseOptions(acoustic.MapSource{Options: tt.opts})
			if tt.ok != (err == nil) {
				t.Fatalf("parseOptions() error = %v, ok = %v", err, tt.ok)
			}
			if tt.ok && (o.sampleRate != 24000 || o.frameSize != 1920 || o.lmDim != 64) {
				t.Errorf("options = %+v", o)
			}
		})
	}
}

func TestLoadMissingTokenizer(t *testing.T) {
	_, err := Load(context.Background(), acoustic.MapSource{Options: map[string]string{
		"lm_state_dim": "64", "decoder_state_dim": "16",
	}})
	if err == nil || !strings.Contains(err.Error(), "tokenizer") {
		t.Errorf("Load() error = %v, want tokenizer error", err)
	}
}

// TestExportedModel runs a real export from POCKET_TTS_ONNX_DIR, which
// holds flow_lm.onnx, decoder.onnx and tokenizer.json.
func TestExportedModel(t *testing.T) {
	dir := os.Getenv("POCKET_TTS_ONNX_DIR")
	if dir == "" {
		t.Skip("POCKET_TTS_ONNX_DIR not set")
	}
	files := map[string][]byte{}
	for name, file := range map[string]string{
		GraphFlowLM:  "flow_lm.onnx",
		GraphDecoder: "decoder.onnx",
		"tokenizer":  "tokenizer.json",
	} {
		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			t.Fatal(err)
		}
		files[name] = data
	}
	b, err := Load(context.Background(), acoustic.MapSource{Files: files, Options: map[string]string{
		"lm_state_dim":      os.Getenv("POCKET_TTS_LM_STATE_DIM"),
		"decoder_state_dim": os.Getenv("POCKET_TTS_DECODER_STATE_DIM"),
	}})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx := context.Background()
	s, err := b.NewSession(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Feed(ctx, b.Tokenizer().Encode("Hello.")); err != nil {
		t.Fatal(err)
	}
	f, err := s.Step(ctx, acoustic.StepInput{DecodeSteps: 1})
	if err != nil {
		t.Fatal(err)
	}
	pcm, err := s.Decode(ctx, [][]float32{f.Latent})
	if err != nil {
		t.Fatal(err)
	}
	if len(pcm) != b.Info().FrameSize {
		t.Errorf("decoded %d samples, want %d", len(pcm), b.Info().FrameSize)
	}
}
