// Package safetensors reads and writes the safetensors tensor container.
//
// A file is an 8-byte little-endian header length, a JSON header mapping
// tensor names to dtype, shape and byte offsets, and the raw tensor bytes.
// Only the dtypes used for voice prompts and acoustic tables are decoded to
// Go slices; other dtypes are carried as raw bytes.
package safetensors

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
)

// Sentinel errors.
var (
	// ErrFormat is returned for malformed containers.
	ErrFormat = errors.New("safetensors: invalid format")

	// ErrDType is returned when a tensor is read as the wrong dtype.
	ErrDType = errors.New("safetensors: unexpected dtype")
)

// maxHeader bounds the JSON header to keep corrupt length prefixes from
// triggering huge allocations.
const maxHeader = 100 << 20

const metadataKey = "__metadata__"

// Tensor is one named tensor.
type Tensor struct {
	Name  string
	DType string
	Shape []int64
	Data  []byte
}

// Elements returns the product of the shape.
func (t Tensor) Elements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Float32s decodes an F32 tensor.
func (t Tensor) Float32s() ([]float32, error) {
	if t.DType != "F32" {
		return nil, fmt.Errorf("%w: %s is %s, want F32", ErrDType, t.Name, t.DType)
	}
	if int64(len(t.Data)) != t.Elements()*4 {
		return nil, fmt.Errorf("%w: %s has %d bytes for shape %v", ErrFormat, t.Name, len(t.Data), t.Shape)
	}
	out := make([]float32, len(t.Data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[i*4:]))
	}
	return out, nil
}

// F32 builds an F32 tensor from a float slice.
func F32(name string, shape []int64, data []float32) Tensor {
	b := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return Tensor{Name: name, DType: "F32", Shape: slices.Clone(shape), Data: b}
}

// File is a decoded container.
type File struct {
	Metadata map[string]string
	Tensors  map[string]Tensor
}

// Names returns the tensor names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tensors))
	for n := range f.Tensors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type headerEntry struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Decode parses a container held in memory. Tensor data aliases b.
func Decode(b []byte) (*File, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrFormat, len(b))
	}
	n := binary.LittleEndian.Uint64(b)
	if n > maxHeader || n > uint64(len(b)-8) {
		return nil, fmt.Errorf("%w: header length %d", ErrFormat, n)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b[8:8+n], &raw); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	data := b[8+n:]

	f := &File{Tensors: make(map[string]Tensor, len(raw))}
	for name, msg := range raw {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &f.Metadata); err != nil {
				return nil, fmt.Errorf("%w: metadata: %v", ErrFormat, err)
			}
			continue
		}
		var e headerEntry
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %v", ErrFormat, name, err)
		}
		start, end := e.DataOffsets[0], e.DataOffsets[1]
		if start < 0 || end < start || end > int64(len(data)) {
			return nil, fmt.Errorf("%w: tensor %s offsets [%d, %d) outside %d data bytes", ErrFormat, name, start, end, len(data))
		}
		for _, d := range e.Shape {
			if d < 0 {
				return nil, fmt.Errorf("%w: tensor %s shape %v", ErrFormat, name, e.Shape)
			}
		}
		f.Tensors[name] = Tensor{
			Name:  name,
			DType: e.DType,
			Shape: e.Shape,
			Data:  data[start:end],
		}
	}
	return f, nil
}

// Encode writes tensors to w in name order. The header is padded with spaces
// to an 8-byte boundary.
func Encode(w io.Writer, metadata map[string]string, tensors ...Tensor) error {
	sorted := slices.Clone(tensors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	header := make(map[string]any, len(sorted)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}
	var offset int64
	for _, t := range sorted {
		if _, dup := header[t.Name]; dup || t.Name == "" {
			return fmt.Errorf("%w: duplicate or empty tensor name %q", ErrFormat, t.Name)
		}
		end := offset + int64(len(t.Data))
		header[t.Name] = headerEntry{DType: t.DType, Shape: t.Shape, DataOffsets: [2]int64{offset, end}}
		offset = end
	}
	hb, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("safetensors: encode header: %w", err)
	}
	if pad := len(hb) % 8; pad != 0 {
		hb = append(hb, bytes.Repeat([]byte{' '}, 8-pad)...)
	}

	var prefix [8]byte
	binary.LittleEndian.PutUint64(prefix[:], uint64(len(hb)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	if _, err := w.Write(hb); err != nil {
		return err
	}
	for _, t := range sorted {
		if _, err := w.Write(t.Data); err != nil {
			return err
		}
	}
	return nil
}
