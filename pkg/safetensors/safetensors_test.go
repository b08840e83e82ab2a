package safetensors

import (
	"bytes"
	"encoding/binary"
	"errors"
	"slices"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	prompt := F32("audio_prompt", []int64{1, 2, 3}, []float32{1, 2, 3, 4, 5, 6})
	bias := F32("bias", []int64{2}, []float32{-1, 0.5})
	if err := Encode(&buf, map[string]string{"format": "pt"}, prompt, bias); err != nil {
		t.Fatal(err)
	}

	hlen := binary.LittleEndian.Uint64(buf.Bytes())
	if hlen%8 != 0 {
		t.Errorf("header length %d not 8-byte aligned", hlen)
	}

	f, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Names(); !slices.Equal(got, []string{"audio_prompt", "bias"}) {
		t.Errorf("Names() = %v", got)
	}
	if f.Metadata["format"] != "pt" {
		t.Errorf("metadata = %v", f.Metadata)
	}
	p := f.Tensors["audio_prompt"]
	if !slices.Equal(p.Shape, []int64{1, 2, 3}) {
		t.Errorf("shape = %v", p.Shape)
	}
	vals, err := p.Float32s()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(vals, []float32{1, 2, 3, 4, 5, 6}) {
		t.Errorf("values = %v", vals)
	}
	b, _ := f.Tensors["bias"].Float32s()
	if !slices.Equal(b, []float32{-1, 0.5}) {
		t.Errorf("bias = %v", b)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte{1, 2, 3}},
		{"header too long", append(binary.LittleEndian.AppendUint64(nil, 1000), '{', '}')},
		{"bad json", append(binary.LittleEndian.AppendUint64(nil, 3), 'x', 'y', 'z')},
		{"offsets out of range", func() []byte {
			h := []byte(`{"t":{"dtype":"F32","shape":[1],"data_offsets":[0,8]}}`)
			return append(append(binary.LittleEndian.AppendUint64(nil, uint64(len(h))), h...), 0, 0, 0, 0)
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, ErrFormat) {
				t.Errorf("Decode() err = %v; want ErrFormat", err)
			}
		})
	}
}

func TestFloat32sDType(t *testing.T) {
	tensor := Tensor{Name: "x", DType: "F16", Shape: []int64{2}, Data: make([]byte, 4)}
	if _, err := tensor.Float32s(); !errors.Is(err, ErrDType) {
		t.Errorf("err = %v; want ErrDType", err)
	}
	short := Tensor{Name: "y", DType: "F32", Shape: []int64{3}, Data: make([]byte, 8)}
	if _, err := short.Float32s(); !errors.Is(err, ErrFormat) {
		t.Errorf("err = %v; want ErrFormat", err)
	}
}

func TestEncodeDuplicate(t *testing.T) {
	a := F32("a", []int64{1}, []float32{1})
	if err := Encode(&bytes.Buffer{}, nil, a, a); !errors.Is(err, ErrFormat) {
		t.Errorf("err = %v; want ErrFormat", err)
	}
}
