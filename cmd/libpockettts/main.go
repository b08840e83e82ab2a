// Command libpockettts builds the pocket-tts C library:
//
//	go build -buildmode=c-shared -o libpocket_tts.so ./cmd/libpockettts
//
// The exported symbols follow pocket_tts.h. Engine settings are read from
// the POCKET_TTS_* environment variables at load time, and
// POCKET_TTS_LOG_LEVEL sets the stderr log level (default warn).
package main

/*
#include <stddef.h>
#include <stdint.h>

typedef struct pocket_tts_model_t pocket_tts_model_t;
typedef struct pocket_tts_voice_state_t pocket_tts_voice_state_t;
typedef struct pocket_tts_stream_t pocket_tts_stream_t;
*/
import "C"

import (
	"errors"
	"log/slog"
	"os"
	"unsafe"

	"github.com/haivivi/pockettts/pkg/abi"
	"github.com/haivivi/pockettts/pkg/cli"
)

var (
	rt       *abi.Runtime
	messages messageCache

	errNullOutput = errors.New("output pointers are null")
)

func init() {
	level := slog.LevelWarn
	if v, ok := os.LookupEnv("POCKET_TTS_LOG_LEVEL"); ok {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			level = slog.LevelWarn
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := &cli.Context{Name: "env"}
	if err := ctx.ApplyEnv(os.LookupEnv); err != nil {
		logger.Warn("libpockettts: ignoring environment", "error", err)
		ctx = &cli.Context{Name: "env"}
	}
	eng, err := ctx.OpenEngine(cli.EngineOptions{CacheDir: ctx.CacheDir, Logger: logger})
	if err != nil {
		logger.Warn("libpockettts: voice cache disabled", "error", err)
		ctx.CacheDir = ""
		eng, _ = ctx.OpenEngine(cli.EngineOptions{Logger: logger})
	}
	rt = abi.NewRuntime(cAlloc{}, logger, eng.Options...)
}

func main() {}

// str converts a required C string. A NULL pointer records an error.
func str(p *C.char) (string, bool) {
	if p == nil {
		rt.Fail(abi.ErrNullPointer)
		return "", false
	}
	return C.GoString(p), true
}

// byteSlice views a C buffer without copying.
func byteSlice(p *C.uint8_t, n C.size_t) ([]byte, bool) {
	if n == 0 {
		return nil, true
	}
	if p == nil {
		rt.Fail(abi.ErrNullPointer)
		return nil, false
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), int(n)), true
}

//export pocket_tts_last_error_message
func pocket_tts_last_error_message() *C.char {
	msg, ok := rt.LastError()
	if !ok {
		return nil
	}
	return messages.get(msg)
}

//export pocket_tts_clear_error
func pocket_tts_clear_error() {
	rt.ClearError()
}

//export pocket_tts_model_load
func pocket_tts_model_load(variant *C.char) *C.pocket_tts_model_t {
	v, ok := str(variant)
	if !ok {
		return nil
	}
	return modelPtr(rt.ModelLoad(v))
}

//export pocket_tts_model_load_with_params
func pocket_tts_model_load_with_params(variant *C.char, temp C.float, steps C.size_t, eos C.float) *C.pocket_tts_model_t {
	v, ok := str(variant)
	if !ok {
		return nil
	}
	return modelPtr(rt.ModelLoadWithParams(v, float32(temp), uint64(steps), float32(eos)))
}

//export pocket_tts_model_load_from_dir
func pocket_tts_model_load_from_dir(variant, dir *C.char) *C.pocket_tts_model_t {
	v, ok := str(variant)
	if !ok {
		return nil
	}
	d, ok := str(dir)
	if !ok {
		return nil
	}
	return modelPtr(rt.ModelLoadFromDir(v, d))
}

//export pocket_tts_model_load_with_params_from_dir
func pocket_tts_model_load_with_params_from_dir(variant, dir *C.char, temp C.float, steps C.size_t, eos C.float) *C.pocket_tts_model_t {
	v, ok := str(variant)
	if !ok {
		return nil
	}
	d, ok := str(dir)
	if !ok {
		return nil
	}
	return modelPtr(rt.ModelLoadWithParamsFromDir(v, d, float32(temp), uint64(steps), float32(eos)))
}

//export pocket_tts_model_free
func pocket_tts_model_free(model *C.pocket_tts_model_t) {
	rt.ModelFree(handle(model))
}

//export pocket_tts_model_sample_rate
func pocket_tts_model_sample_rate(model *C.pocket_tts_model_t) C.uint32_t {
	return C.uint32_t(rt.ModelSampleRate(handle(model)))
}

//export pocket_tts_voice_state_default
func pocket_tts_voice_state_default() *C.pocket_tts_voice_state_t {
	return voicePtr(rt.VoiceDefault())
}

//export pocket_tts_voice_state_from_path
func pocket_tts_voice_state_from_path(model *C.pocket_tts_model_t, path *C.char) *C.pocket_tts_voice_state_t {
	p, ok := str(path)
	if !ok {
		return nil
	}
	return voicePtr(rt.VoiceFromPath(handle(model), p))
}

//export pocket_tts_voice_state_from_audio_bytes
func pocket_tts_voice_state_from_audio_bytes(model *C.pocket_tts_model_t, data *C.uint8_t, n C.size_t) *C.pocket_tts_voice_state_t {
	b, ok := byteSlice(data, n)
	if !ok {
		return nil
	}
	return voicePtr(rt.VoiceFromAudioBytes(handle(model), b))
}

//export pocket_tts_voice_state_from_prompt_bytes
func pocket_tts_voice_state_from_prompt_bytes(model *C.pocket_tts_model_t, data *C.uint8_t, n C.size_t) *C.pocket_tts_voice_state_t {
	b, ok := byteSlice(data, n)
	if !ok {
		return nil
	}
	return voicePtr(rt.VoiceFromPromptBytes(handle(model), b))
}

//export pocket_tts_voice_state_free
func pocket_tts_voice_state_free(state *C.pocket_tts_voice_state_t) {
	rt.VoiceFree(handle(state))
}

// emit writes a buffer to the caller's out pointers.
func emit(a abi.Audio, status C.int, outPtr **C.float, outLen *C.size_t) C.int {
	*outPtr = (*C.float)(a.Ptr)
	*outLen = C.size_t(a.Len)
	return status
}

//export pocket_tts_generate
func pocket_tts_generate(model *C.pocket_tts_model_t, text *C.char, voice *C.pocket_tts_voice_state_t, outPtr **C.float, outLen *C.size_t) C.int {
	if outPtr == nil || outLen == nil {
		return C.int(rt.Fail(errNullOutput))
	}
	t, ok := str(text)
	if !ok {
		return abi.StatusError
	}
	a, status := rt.Generate(handle(model), t, handle(voice))
	return emit(a, C.int(status), outPtr, outLen)
}

//export pocket_tts_generate_with_pauses
func pocket_tts_generate_with_pauses(model *C.pocket_tts_model_t, text *C.char, voice *C.pocket_tts_voice_state_t, outPtr **C.float, outLen *C.size_t) C.int {
	if outPtr == nil || outLen == nil {
		return C.int(rt.Fail(errNullOutput))
	}
	t, ok := str(text)
	if !ok {
		return abi.StatusError
	}
	a, status := rt.GenerateWithPauses(handle(model), t, handle(voice))
	return emit(a, C.int(status), outPtr, outLen)
}

//export pocket_tts_stream_new
func pocket_tts_stream_new(model *C.pocket_tts_model_t, text *C.char, voice *C.pocket_tts_voice_state_t, longText C.int) *C.pocket_tts_stream_t {
	t, ok := str(text)
	if !ok {
		return nil
	}
	return streamPtr(rt.StreamNew(handle(model), t, handle(voice), longText != 0))
}

//export pocket_tts_stream_next
func pocket_tts_stream_next(stream *C.pocket_tts_stream_t, outPtr **C.float, outLen *C.size_t) C.int {
	if outPtr == nil || outLen == nil {
		return C.int(rt.Fail(errNullOutput))
	}
	a, status := rt.StreamNext(handle(stream))
	return emit(a, C.int(status), outPtr, outLen)
}

//export pocket_tts_stream_free
func pocket_tts_stream_free(stream *C.pocket_tts_stream_t) {
	rt.StreamFree(handle(stream))
}

//export pocket_tts_audio_free
func pocket_tts_audio_free(ptr *C.float, n C.size_t) {
	rt.AudioFree(unsafe.Pointer(ptr), int(n))
}
