package pockettts

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/haivivi/pockettts/pkg/acoustic"
	"github.com/haivivi/pockettts/pkg/safetensors"
)

// promptTensor is the tensor name written by MarshalPrompt.
const promptTensor = "audio_prompt"

func encodePrompt(w io.Writer, cond *acoustic.Conditioning, fingerprint string) error {
	t := safetensors.F32(promptTensor, []int64{1, int64(cond.Frames), int64(cond.Dim)}, cond.Data)
	meta := map[string]string{"format": "pockettts-voice", "model": fingerprint}
	return safetensors.Encode(w, meta, t)
}

// decodePrompt parses prompt bytes for an embedding size of dim.
func decodePrompt(data []byte, dim int) (*acoustic.Conditioning, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrPromptFormat)
	}
	var (
		cond *acoustic.Conditioning
		err  error
	)
	if looksLikeSafetensors(data) {
		cond, err = decodePromptFile(data)
	} else {
		cond, err = decodeRawPrompt(data, dim)
	}
	if err != nil {
		return nil, err
	}
	if err := cond.Validate(dim); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPromptFormat, err)
	}
	return cond, nil
}

// looksLikeSafetensors checks for a plausible header length followed by a
// JSON object.
func looksLikeSafetensors(data []byte) bool {
	if len(data) < 10 {
		return false
	}
	n := binary.LittleEndian.Uint64(data)
	return n >= 2 && n <= uint64(len(data)-8) && data[8] == '{'
}

func decodePromptFile(data []byte) (*acoustic.Conditioning, error) {
	f, err := safetensors.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPromptFormat, err)
	}
	t, ok := f.Tensors[promptTensor]
	if !ok {
		if len(f.Tensors) != 1 {
			return nil, fmt.Errorf("%w: want tensor %q or a single tensor, have %v", ErrPromptFormat, promptTensor, f.Names())
		}
		for _, only := range f.Tensors {
			t = only
		}
	}
	shape := t.Shape
	if len(shape) == 3 {
		if shape[0] != 1 {
			return nil, fmt.Errorf("%w: batch %d, want 1", ErrPromptFormat, shape[0])
		}
		shape = shape[1:]
	}
	if len(shape) != 2 || shape[0] <= 0 || shape[1] <= 0 {
		return nil, fmt.Errorf("%w: shape %v, want [1, T, D] or [T, D]", ErrPromptFormat, t.Shape)
	}
	values, err := t.Float32s()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPromptFormat, err)
	}
	return &acoustic.Conditioning{Frames: int(shape[0]), Dim: int(shape[1]), Data: values}, nil
}

func decodeRawPrompt(data []byte, dim int) (*acoustic.Conditioning, error) {
	row := 4 * dim
	if dim <= 0 || len(data)%row != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d (embedding dim %d)", ErrPromptFormat, len(data), row, dim)
	}
	values := make([]float32, len(data)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return &acoustic.Conditioning{Frames: len(values) / dim, Dim: dim, Data: values}, nil
}
