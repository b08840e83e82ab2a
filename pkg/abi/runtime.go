package abi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"unsafe"

	"google.golang.org/api/iterator"

	"github.com/haivivi/pockettts/pkg/pockettts"
)

// Runtime is the state behind one loaded copy of the library. Every
// method except LastError and ClearError clears the error slot first and
// records its own failure there.
type Runtime struct {
	opts   []pockettts.Option
	logger *slog.Logger
	errs   ErrorSlot

	models  *Table[*pockettts.Model]
	voices  *Table[*pockettts.VoiceState]
	streams *Table[*pockettts.Stream]
	buffers *Buffers
}

// NewRuntime creates a runtime. opts apply to every model it loads.
func NewRuntime(alloc Allocator, logger *slog.Logger, opts ...pockettts.Option) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		opts:    append([]pockettts.Option{pockettts.WithLogger(logger)}, opts...),
		logger:  logger,
		models:  NewTable[*pockettts.Model]("model"),
		voices:  NewTable[*pockettts.VoiceState]("voice state"),
		streams: NewTable[*pockettts.Stream]("stream"),
		buffers: NewBuffers(alloc),
	}
}

// LastError returns the last recorded message.
func (r *Runtime) LastError() (string, bool) { return r.errs.Message() }

// ClearError empties the error slot.
func (r *Runtime) ClearError() { r.errs.Clear() }

// Fail clears the slot, records err and returns StatusError. Wrappers use
// it for argument errors detected before a Runtime call.
func (r *Runtime) Fail(err error) int {
	r.errs.Set(err)
	return StatusError
}

// guard turns a panic into a recorded error and sets *out to fail.
func guard[T any](r *Runtime, out *T, fail T) {
	if p := recover(); p != nil {
		r.logger.Error("abi: recovered panic", "panic", p, "stack", string(debug.Stack()))
		r.errs.Set(fmt.Errorf("%w: %v", ErrPanic, p))
		*out = fail
	}
}

// record stores err and reports whether the call succeeded.
func (r *Runtime) record(err error) bool {
	if err != nil {
		r.errs.Set(err)
		return false
	}
	return true
}

func (r *Runtime) addModel(m *pockettts.Model, err error) Handle {
	if !r.record(err) {
		return 0
	}
	return r.models.Put(m)
}

// ModelLoad loads a built-in variant.
func (r *Runtime) ModelLoad(variant string) (h Handle) {
	r.errs.Clear()
	defer guard(r, &h, 0)
	return r.addModel(pockettts.Load(context.Background(), variant, r.opts...))
}

// ModelLoadWithParams loads a built-in variant with explicit parameters.
func (r *Runtime) ModelLoadWithParams(variant string, temp float32, steps uint64, eos float32) (h Handle) {
	r.errs.Clear()
	defer guard(r, &h, 0)
	return r.addModel(pockettts.LoadWithParams(context.Background(), variant, float64(temp), int(steps), float64(eos), r.opts...))
}

// ModelLoadFromDir loads a model directory.
func (r *Runtime) ModelLoadFromDir(variant, dir string) (h Handle) {
	r.errs.Clear()
	defer guard(r, &h, 0)
	return r.addModel(pockettts.LoadFromDir(context.Background(), variant, dir, r.opts...))
}

// ModelLoadWithParamsFromDir loads a model directory with explicit
// parameters.
func (r *Runtime) ModelLoadWithParamsFromDir(variant, dir string, temp float32, steps uint64, eos float32) (h Handle) {
	r.errs.Clear()
	defer guard(r, &h, 0)
	return r.addModel(pockettts.LoadWithParamsFromDir(context.Background(), variant, dir, float64(temp), int(steps), float64(eos), r.opts...))
}

// ModelFree frees a model handle. A zero handle is a no-op. Streams
// already opened on the model keep running.
func (r *Runtime) ModelFree(h Handle) {
	r.errs.Clear()
	if h == 0 {
		return
	}
	defer guard(r, new(int), 0)
	m, err := r.models.Take(h)
	if r.record(err) {
		r.record(m.Close())
	}
}

// ModelSampleRate returns the output rate, or 0 for an invalid handle.
func (r *Runtime) ModelSampleRate(h Handle) (rate uint32) {
	r.errs.Clear()
	defer guard(r, &rate, 0)
	m, err := r.models.Get(h)
	if !r.record(err) {
		return 0
	}
	return uint32(m.SampleRate())
}

// VoiceDefault returns a handle to the neutral voice.
func (r *Runtime) VoiceDefault() Handle {
	r.errs.Clear()
	return r.voices.Put(pockettts.DefaultVoiceState())
}

func (r *Runtime) addVoice(v *pockettts.VoiceState, err error) Handle {
	if !r.record(err) {
		return 0
	}
	return r.voices.Put(v)
}

// VoiceFromPath builds a voice from an audio or .safetensors file.
func (r *Runtime) VoiceFromPath(model Handle, path string) (h Handle) {
	r.errs.Clear()
	defer guard(r, &h, 0)
	m, err := r.models.Get(model)
	if !r.record(err) {
		return 0
	}
	return r.addVoice(m.VoiceStateFromPath(context.Background(), path))
}

// VoiceFromAudioBytes encodes WAV or MP3 bytes.
func (r *Runtime) VoiceFromAudioBytes(model Handle, data []byte) (h Handle) {
	r.errs.Clear()
	defer guard(r, &h, 0)
	m, err := r.models.Get(model)
	if !r.record(err) {
		return 0
	}
	if len(data) == 0 {
		r.errs.Set(ErrEmptyBuffer)
		return 0
	}
	return r.addVoice(m.VoiceStateFromAudioBytes(context.Background(), data))
}

// VoiceFromPromptBytes loads a prompt embedding.
func (r *Runtime) VoiceFromPromptBytes(model Handle, data []byte) (h Handle) {
	r.errs.Clear()
	defer guard(r, &h, 0)
	m, err := r.models.Get(model)
	if !r.record(err) {
		return 0
	}
	if len(data) == 0 {
		r.errs.Set(ErrEmptyBuffer)
		return 0
	}
	return r.addVoice(m.VoiceStateFromPromptBytes(data))
}

// VoiceFree frees a voice handle. A zero handle is a no-op.
func (r *Runtime) VoiceFree(h Handle) {
	r.errs.Clear()
	if h == 0 {
		return
	}
	v, err := r.voices.Take(h)
	if r.record(err) {
		v.Close()
	}
}

// voice resolves a voice handle; zero is the default voice.
func (r *Runtime) voice(h Handle) (*pockettts.VoiceState, error) {
	if h == 0 {
		return nil, nil
	}
	return r.voices.Get(h)
}

// Audio is a buffer handed to the caller.
type Audio struct {
	Ptr unsafe.Pointer
	Len int
}

func (r *Runtime) generate(model Handle, text string, voice Handle, pauses bool) (Audio, int) {
	m, err := r.models.Get(model)
	if !r.record(err) {
		return Audio{}, StatusError
	}
	v, err := r.voice(voice)
	if !r.record(err) {
		return Audio{}, StatusError
	}
	var pcm []float32
	if pauses {
		pcm, err = m.GenerateWithPauses(context.Background(), text, v)
	} else {
		pcm, err = m.Generate(context.Background(), text, v)
	}
	if !r.record(err) {
		return Audio{}, StatusError
	}
	p, n, err := r.buffers.Export(pcm)
	if !r.record(err) {
		return Audio{}, StatusError
	}
	return Audio{Ptr: p, Len: n}, StatusOK
}

// Generate synthesizes text. voice may be zero for the default voice.
func (r *Runtime) Generate(model Handle, text string, voice Handle) (a Audio, status int) {
	r.errs.Clear()
	defer guard(r, &status, StatusError)
	return r.generate(model, text, voice, false)
}

// GenerateWithPauses synthesizes text with pauses at punctuation.
func (r *Runtime) GenerateWithPauses(model Handle, text string, voice Handle) (a Audio, status int) {
	r.errs.Clear()
	defer guard(r, &status, StatusError)
	return r.generate(model, text, voice, true)
}

// StreamNew opens a stream. The voice is resolved now, so freeing the
// voice handle afterwards does not affect the stream.
func (r *Runtime) StreamNew(model Handle, text string, voice Handle, long bool) (h Handle) {
	r.errs.Clear()
	defer guard(r, &h, 0)
	m, err := r.models.Get(model)
	if !r.record(err) {
		return 0
	}
	v, err := r.voice(voice)
	if !r.record(err) {
		return 0
	}
	if v != nil {
		if v, err = v.Clone(); !r.record(err) {
			return 0
		}
	}
	s, err := m.OpenStream(context.Background(), text, v, long)
	if !r.record(err) {
		return 0
	}
	return r.streams.Put(s)
}

// StreamNext returns StatusChunk with audio, StatusEnd after the last
// chunk, or StatusError.
func (r *Runtime) StreamNext(h Handle) (a Audio, status int) {
	r.errs.Clear()
	defer guard(r, &status, StatusError)
	s, err := r.streams.Get(h)
	if !r.record(err) {
		return Audio{}, StatusError
	}
	pcm, err := s.Next(context.Background())
	if errors.Is(err, iterator.Done) {
		return Audio{}, StatusEnd
	}
	if !r.record(err) {
		return Audio{}, StatusError
	}
	p, n, err := r.buffers.Export(pcm)
	if !r.record(err) {
		return Audio{}, StatusError
	}
	return Audio{Ptr: p, Len: n}, StatusChunk
}

// StreamFree closes and frees a stream handle. A zero handle is a no-op.
func (r *Runtime) StreamFree(h Handle) {
	r.errs.Clear()
	if h == 0 {
		return
	}
	defer guard(r, new(int), 0)
	s, err := r.streams.Take(h)
	if r.record(err) {
		r.record(s.Close())
	}
}

// AudioFree releases a buffer from Generate or StreamNext.
func (r *Runtime) AudioFree(p unsafe.Pointer, n int) {
	r.errs.Clear()
	r.record(r.buffers.Free(p, n))
}

// Stats reports live objects, for leak checks.
type Stats struct {
	Models, Voices, Streams, Buffers int
}

// Stats returns the live object counts.
func (r *Runtime) Stats() Stats {
	return Stats{
		Models:  r.models.Len(),
		Voices:  r.voices.Len(),
		Streams: r.streams.Len(),
		Buffers: r.buffers.Live(),
	}
}
