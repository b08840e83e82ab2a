package pockettts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/haivivi/pockettts/pkg/acoustic"
	"github.com/haivivi/pockettts/pkg/audio/codec"
	"github.com/haivivi/pockettts/pkg/audio/resampler"
	"github.com/haivivi/pockettts/pkg/storage"
)

// VoiceState is a speaker conditioning of shape [1, T, D]. It is immutable
// and safe for concurrent use until closed.
type VoiceState struct {
	cond        *acoustic.Conditioning
	fingerprint string
	closed      atomic.Bool
}

// DefaultVoiceState returns the neutral voice. It has no frames and works
// with every model.
func DefaultVoiceState() *VoiceState {
	return &VoiceState{cond: &acoustic.Conditioning{}}
}

// Frames returns T, the number of conditioning frames.
func (v *VoiceState) Frames() int { return v.cond.Frames }

// Dim returns D, the embedding size, or 0 for the default voice.
func (v *VoiceState) Dim() int { return v.cond.Dim }

// IsDefault reports whether v is the neutral voice.
func (v *VoiceState) IsDefault() bool { return v.cond.Empty() }

// Fingerprint returns the fingerprint of the model that produced v, or ""
// for the default voice.
func (v *VoiceState) Fingerprint() string { return v.fingerprint }

// Clone returns an independent copy that stays valid after v is closed.
func (v *VoiceState) Clone() (*VoiceState, error) {
	if v.closed.Load() {
		return nil, ErrVoiceClosed
	}
	return &VoiceState{cond: v.cond.Clone(), fingerprint: v.fingerprint}, nil
}

// Close releases the voice state. Calling Close more than once is a no-op.
func (v *VoiceState) Close() error {
	v.closed.Store(true)
	return nil
}

// MarshalPrompt encodes v as a safetensors prompt file that
// VoiceStateFromPromptBytes accepts.
func (v *VoiceState) MarshalPrompt() ([]byte, error) {
	if v.closed.Load() {
		return nil, ErrVoiceClosed
	}
	if v.IsDefault() {
		return nil, fmt.Errorf("%w: the default voice has no embedding", ErrPromptFormat)
	}
	var buf bytes.Buffer
	if err := encodePrompt(&buf, v.cond, v.fingerprint); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// conditioning resolves the voice for generation. A nil voice is the
// default one.
func (m *Model) conditioning(v *VoiceState) (*acoustic.Conditioning, error) {
	if v == nil {
		return nil, nil
	}
	if v.closed.Load() {
		return nil, ErrVoiceClosed
	}
	if v.IsDefault() {
		return nil, nil
	}
	if v.fingerprint != m.fingerprint {
		return nil, fmt.Errorf("%w: voice from %s, model is %s", ErrVoiceMismatch, v.fingerprint, m.fingerprint)
	}
	return v.cond, nil
}

// VoiceStateFromPath builds a voice from a file. Files ending in
// .safetensors are read as prompts; anything else is decoded as audio.
// path may be s3://bucket/key when the model has an S3 client.
func (m *Model) VoiceStateFromPath(ctx context.Context, p string) (*VoiceState, error) {
	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()

	data, err := m.readPath(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrVoiceAudio, p, err)
	}
	if strings.EqualFold(path.Ext(p), ".safetensors") {
		return m.voiceFromPrompt(data)
	}
	return m.voiceFromAudio(ctx, data)
}

func (m *Model) readPath(ctx context.Context, p string) ([]byte, error) {
	loc, err := storage.ParseLocation(p)
	if err != nil {
		return nil, err
	}
	var dir, name string
	if loc.Scheme == "s3" {
		dir, name = path.Dir(loc.Path), path.Base(loc.Path)
		loc.Path = strings.TrimPrefix(dir, ".")
		dir = loc.String()
	} else {
		dir, name = filepath.Dir(loc.Path), filepath.Base(loc.Path)
	}
	store, err := storage.Open(dir, m.s3)
	if err != nil {
		return nil, err
	}
	return storage.ReadFile(ctx, store, name)
}

// VoiceStateFromAudioBytes encodes a WAV or MP3 recording. Identical bytes
// yield identical embeddings.
func (m *Model) VoiceStateFromAudioBytes(ctx context.Context, data []byte) (*VoiceState, error) {
	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()
	return m.voiceFromAudio(ctx, data)
}

func (m *Model) voiceFromAudio(ctx context.Context, data []byte) (*VoiceState, error) {
	digest := sha256.Sum256(data)
	if m.cache != nil {
		cond, ok, err := m.cache.Get(ctx, m.fingerprint, digest)
		if err != nil {
			m.logger.Warn("pockettts: voice cache get", "err", err)
		} else if ok {
			m.logger.Debug("pockettts: voice cache hit", "frames", cond.Frames)
			return &VoiceState{cond: cond, fingerprint: m.fingerprint}, nil
		}
	}

	clip, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVoiceAudio, err)
	}
	if clip.Frames() == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrVoiceAudio)
	}
	pcm, err := resampler.ToMono(clip.Samples, clip.Format(), m.info.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVoiceAudio, err)
	}
	cond, err := m.backend.EncodeVoice(ctx, pcm)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrVoiceAudio, err)
	}
	if err := cond.Validate(m.info.EmbeddingDim); err != nil {
		return nil, fmt.Errorf("pockettts: backend voice encoder: %w", err)
	}
	m.logger.Debug("pockettts: voice encoded",
		"duration", clip.Duration(),
		"sample_rate", clip.SampleRate,
		"channels", clip.Channels,
		"frames", cond.Frames,
	)

	if m.cache != nil {
		if err := m.cache.Put(ctx, m.fingerprint, digest, cond); err != nil {
			m.logger.Warn("pockettts: voice cache put", "err", err)
		}
	}
	return &VoiceState{cond: cond, fingerprint: m.fingerprint}, nil
}

// VoiceStateFromPromptBytes loads a precomputed embedding: a safetensors
// file holding one F32 tensor of shape [1, T, D] or [T, D], or raw
// little-endian float32 values whose count is a multiple of D.
func (m *Model) VoiceStateFromPromptBytes(data []byte) (*VoiceState, error) {
	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()
	return m.voiceFromPrompt(data)
}

func (m *Model) voiceFromPrompt(data []byte) (*VoiceState, error) {
	cond, err := decodePrompt(data, m.info.EmbeddingDim)
	if err != nil {
		return nil, err
	}
	return &VoiceState{cond: cond, fingerprint: m.fingerprint}, nil
}
