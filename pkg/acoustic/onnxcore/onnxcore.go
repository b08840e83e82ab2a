//go:build onnxruntime

package onnxcore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/haivivi/pockettts/pkg/acoustic"
	"github.com/haivivi/pockettts/pkg/onnx"
	"github.com/haivivi/pockettts/pkg/sentence"
)

// Kind is the backend kind named in manifests.
const Kind = "onnx"

// Graph names.
const (
	GraphFlowLM  = "flow_lm"
	GraphDecoder = "decoder"
	GraphEncoder = "encoder"
)

// ErrNoEncoder is returned by EncodeVoice when the model has no encoder
// graph.
var ErrNoEncoder = errors.New("onnxcore: model has no voice encoder")

func init() {
	acoustic.Register(Kind, Load)
}

var (
	envOnce sync.Once
	env     *onnx.Env
	envErr  error
)

// sharedEnv returns the process-wide runtime environment.
func sharedEnv() (*onnx.Env, error) {
	envOnce.Do(func() {
		env, envErr = onnx.NewEnv("pockettts")
	})
	return env, envErr
}

// Backend runs the ONNX graphs of one model.
type Backend struct {
	graphs *onnx.Graphs
	info   acoustic.Info
	tok    sentence.Tokenizer
	lmDim  int
	decDim int
	closed atomic.Bool
}

var _ acoustic.Backend = (*Backend)(nil)

type options struct {
	sampleRate, frameSize, latentDim, embeddingDim int
	lmDim, decDim, threads                         int
}

func intOption(src acoustic.Source, key string, def int, required bool) (int, error) {
	v := src.Option(key)
	if v == "" {
		if required {
			return 0, fmt.Errorf("onnxcore: option %q is required", key)
		}
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("onnxcore: option %q: invalid value %q", key, v)
	}
	return n, nil
}

func parseOptions(src acoustic.Source) (options, error) {
	var (
		o   options
		err error
	)
	for _, f := range []struct {
		dst      *int
		key      string
		def      int
		required bool
	}{
		{&o.sampleRate, "sample_rate", 24000, false},
		{&o.frameSize, "frame_size", 1920, false},
		{&o.latentDim, "latent_dim", 32, false},
		{&o.embeddingDim, "embedding_dim", 1024, false},
		{&o.lmDim, "lm_state_dim", 0, true},
		{&o.decDim, "decoder_state_dim", 0, true},
		{&o.threads, "threads", 0, false},
	} {
		if *f.dst, err = intOption(src, f.key, f.def, f.required); err != nil {
			return o, err
		}
	}
	if o.sampleRate == 0 || o.frameSize == 0 || o.latentDim == 0 || o.embeddingDim == 0 || o.lmDim == 0 || o.decDim == 0 {
		return o, fmt.Errorf("onnxcore: sizes must be positive")
	}
	return o, nil
}

// Load opens the graphs listed by src.
func Load(ctx context.Context, src acoustic.Source) (acoustic.Backend, error) {
	o, err := parseOptions(src)
	if err != nil {
		return nil, err
	}
	vocab, err := src.ReadFile(ctx, "tokenizer")
	if err != nil {
		return nil, fmt.Errorf("onnxcore: read tokenizer: %w", err)
	}
	tok, err := sentence.LoadVocab(vocab)
	if err != nil {
		return nil, fmt.Errorf("onnxcore: %w", err)
	}

	e, err := sharedEnv()
	if err != nil {
		return nil, err
	}
	graphs := onnx.NewGraphs(e)
	opts := onnx.SessionOptions{IntraOpThreads: o.threads}
	for _, name := range []string{GraphFlowLM, GraphDecoder, GraphEncoder} {
		data, err := src.ReadFile(ctx, name)
		if err != nil {
			if name == GraphEncoder && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			graphs.Close()
			return nil, fmt.Errorf("onnxcore: read %s: %w", name, err)
		}
		if err := graphs.Load(name, data, opts); err != nil {
			graphs.Close()
			return nil, err
		}
	}

	return &Backend{
		graphs: graphs,
		info: acoustic.Info{
			Name:         Kind,
			SampleRate:   o.sampleRate,
			FrameSize:    o.frameSize,
			LatentDim:    o.latentDim,
			EmbeddingDim: o.embeddingDim,
		},
		tok:    tok,
		lmDim:  o.lmDim,
		decDim: o.decDim,
	}, nil
}

func (b *Backend) Info() acoustic.Info { return b.info }

func (b *Backend) Tokenizer() sentence.Tokenizer { return b.tok }

// EncodeVoice runs the encoder graph over mono PCM.
func (b *Backend) EncodeVoice(ctx context.Context, pcm []float32) (*acoustic.Conditioning, error) {
	if b.closed.Load() {
		return nil, acoustic.ErrClosed
	}
	enc, err := b.graphs.Get(GraphEncoder)
	if err != nil {
		return nil, ErrNoEncoder
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("onnxcore: no audio")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in, err := onnx.NewTensor([]int64{1, 1, int64(len(pcm))}, pcm)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	outs, err := enc.Run([]string{"audio"}, []*onnx.Tensor{in}, []string{"embedding"})
	if err != nil {
		return nil, err
	}
	defer onnx.CloseAll(outs)

	shape, err := outs[0].Shape()
	if err != nil {
		return nil, err
	}
	if len(shape) != 3 || shape[0] != 1 || int(shape[2]) != b.info.EmbeddingDim {
		return nil, fmt.Errorf("%w: encoder output %v", acoustic.ErrShape, shape)
	}
	data, err := outs[0].FloatData()
	if err != nil {
		return nil, err
	}
	return &acoustic.Conditioning{Frames: int(shape[1]), Dim: int(shape[2]), Data: data}, nil
}

// NewSession starts an utterance.
func (b *Backend) NewSession(_ context.Context, cond *acoustic.Conditioning) (acoustic.Session, error) {
	if b.closed.Load() {
		return nil, acoustic.ErrClosed
	}
	s := &session{
		b:        b,
		lmState:  make([]float32, b.lmDim),
		decState: make([]float32, b.decDim),
		prev:     make([]float32, b.info.LatentDim),
	}
	if cond != nil && !cond.Empty() {
		if err := cond.Validate(b.info.EmbeddingDim); err != nil {
			return nil, err
		}
		s.voice, s.voiceFrames = cond.Data, cond.Frames
	} else {
		s.voice, s.voiceFrames = make([]float32, b.info.EmbeddingDim), 0
	}
	return s, nil
}

// Close releases the graphs.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.graphs.Close()
}
