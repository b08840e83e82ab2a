//go:build onnxruntime

package onnxcore

import (
	"context"
	"fmt"

	"github.com/haivivi/pockettts/pkg/acoustic"
	"github.com/haivivi/pockettts/pkg/onnx"
)

type session struct {
	b           *Backend
	voice       []float32
	voiceFrames int
	tokens      []int64
	lmState     []float32
	decState    []float32
	prev        []float32
	pos         int64
	closed      bool
}

func (s *session) Feed(_ context.Context, tokens []int) error {
	if s.closed {
		return acoustic.ErrClosed
	}
	if len(tokens) == 0 {
		return fmt.Errorf("onnxcore: feed: no tokens")
	}
	s.tokens = s.tokens[:0]
	for _, t := range tokens {
		s.tokens = append(s.tokens, int64(t))
	}
	s.pos = 0
	return nil
}

// inputs builds named tensors and closes them all on failure.
type inputs struct {
	names   []string
	tensors []*onnx.Tensor
	err     error
}

func (in *inputs) floats(name string, shape []int64, data []float32) {
	if in.err != nil {
		return
	}
	t, err := onnx.NewTensor(shape, data)
	if err != nil {
		in.err = fmt.Errorf("onnxcore: input %s: %w", name, err)
		return
	}
	in.names = append(in.names, name)
	in.tensors = append(in.tensors, t)
}

func (in *inputs) ints(name string, shape []int64, data []int64) {
	if in.err != nil {
		return
	}
	t, err := onnx.NewInt64Tensor(shape, data)
	if err != nil {
		in.err = fmt.Errorf("onnxcore: input %s: %w", name, err)
		return
	}
	in.names = append(in.names, name)
	in.tensors = append(in.tensors, t)
}

func (in *inputs) close() { onnx.CloseAll(in.tensors) }

func (s *session) Step(ctx context.Context, p acoustic.StepInput) (acoustic.Frame, error) {
	if s.closed {
		return acoustic.Frame{}, acoustic.ErrClosed
	}
	if len(s.tokens) == 0 {
		return acoustic.Frame{}, fmt.Errorf("onnxcore: step before feed")
	}
	if err := ctx.Err(); err != nil {
		return acoustic.Frame{}, err
	}
	lm, err := s.b.graphs.Get(GraphFlowLM)
	if err != nil {
		return acoustic.Frame{}, err
	}

	info := s.b.info
	noise := make([]float32, info.LatentDim)
	if p.Noise != nil && p.Temperature > 0 {
		for i := range noise {
			noise[i] = float32(p.Noise())
		}
	}
	voiceRows := max(s.voiceFrames, 1)

	var in inputs
	defer in.close()
	in.ints("tokens", []int64{1, int64(len(s.tokens))}, s.tokens)
	in.floats("voice", []int64{1, int64(voiceRows), int64(info.EmbeddingDim)}, s.voice)
	in.ints("voice_frames", []int64{1}, []int64{int64(s.voiceFrames)})
	in.floats("state", []int64{1, int64(len(s.lmState))}, s.lmState)
	in.floats("prev_latent", []int64{1, int64(info.LatentDim)}, s.prev)
	in.floats("noise", []int64{1, int64(info.LatentDim)}, noise)
	in.floats("temperature", []int64{1}, []float32{float32(p.Temperature)})
	in.ints("decode_steps", []int64{1}, []int64{int64(max(p.DecodeSteps, 1))})
	in.ints("position", []int64{1}, []int64{s.pos})
	if in.err != nil {
		return acoustic.Frame{}, in.err
	}

	outs, err := lm.Run(in.names, in.tensors, []string{"latent", "eos_logit", "next_state"})
	if err != nil {
		return acoustic.Frame{}, err
	}
	defer onnx.CloseAll(outs)

	latent, err := outs[0].FloatData()
	if err != nil {
		return acoustic.Frame{}, err
	}
	if len(latent) != info.LatentDim {
		return acoustic.Frame{}, fmt.Errorf("%w: latent has %d values, want %d", acoustic.ErrShape, len(latent), info.LatentDim)
	}
	logit, err := outs[1].FloatData()
	if err != nil || len(logit) != 1 {
		return acoustic.Frame{}, fmt.Errorf("%w: eos_logit: %v", acoustic.ErrShape, err)
	}
	state, err := outs[2].FloatData()
	if err != nil {
		return acoustic.Frame{}, err
	}
	if len(state) != len(s.lmState) {
		return acoustic.Frame{}, fmt.Errorf("%w: state has %d values, want %d", acoustic.ErrShape, len(state), len(s.lmState))
	}

	s.lmState = state
	copy(s.prev, latent)
	s.pos++
	return acoustic.Frame{Latent: latent, EOSLogit: float64(logit[0])}, nil
}

func (s *session) Decode(ctx context.Context, latents [][]float32) ([]float32, error) {
	if s.closed {
		return nil, acoustic.ErrClosed
	}
	if len(latents) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dec, err := s.b.graphs.Get(GraphDecoder)
	if err != nil {
		return nil, err
	}
	dim := s.b.info.LatentDim
	flat := make([]float32, 0, len(latents)*dim)
	for i, l := range latents {
		if len(l) != dim {
			return nil, fmt.Errorf("%w: latent %d has %d values, want %d", acoustic.ErrShape, i, len(l), dim)
		}
		flat = append(flat, l...)
	}

	var in inputs
	defer in.close()
	in.floats("latents", []int64{1, int64(len(latents)), int64(dim)}, flat)
	in.floats("state", []int64{1, int64(len(s.decState))}, s.decState)
	if in.err != nil {
		return nil, in.err
	}
	outs, err := dec.Run(in.names, in.tensors, []string{"audio", "next_state"})
	if err != nil {
		return nil, err
	}
	defer onnx.CloseAll(outs)

	pcm, err := outs[0].FloatData()
	if err != nil {
		return nil, err
	}
	if want := len(latents) * s.b.info.FrameSize; len(pcm) != want {
		return nil, fmt.Errorf("%w: decoder produced %d samples, want %d", acoustic.ErrShape, len(pcm), want)
	}
	state, err := outs[1].FloatData()
	if err != nil {
		return nil, err
	}
	if len(state) == len(s.decState) {
		s.decState = state
	}
	return pcm, nil
}

func (s *session) Close() error {
	s.closed = true
	return nil
}
