package pockettts

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/pockettts/pkg/acoustic"
	"github.com/haivivi/pockettts/pkg/kv"
)

// cacheRoot is the first key segment of voice cache entries.
const cacheRoot = "voice"

// VoiceCache stores encoded reference audio keyed by model fingerprint and
// the SHA-256 of the audio bytes. Entries are msgpack encoded.
type VoiceCache struct {
	store kv.Store
}

// NewVoiceCache creates a cache on top of store.
func NewVoiceCache(store kv.Store) *VoiceCache {
	return &VoiceCache{store: store}
}

type cachedVoice struct {
	Frames int       `msgpack:"t"`
	Dim    int       `msgpack:"d"`
	Data   []float32 `msgpack:"v"`
}

func cacheKey(fingerprint string, digest [32]byte) kv.Key {
	return kv.Key{cacheRoot, fingerprint, hex.EncodeToString(digest[:])}
}

// Get returns the cached conditioning, if any.
func (c *VoiceCache) Get(ctx context.Context, fingerprint string, digest [32]byte) (*acoustic.Conditioning, bool, error) {
	raw, err := c.store.Get(ctx, cacheKey(fingerprint, digest))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v cachedVoice
	if err := msgpack.Unmarshal(raw, &v); err != nil {
		return nil, false, fmt.Errorf("pockettts: decode cached voice: %w", err)
	}
	cond := &acoustic.Conditioning{Frames: v.Frames, Dim: v.Dim, Data: v.Data}
	if err := cond.Validate(0); err != nil {
		return nil, false, fmt.Errorf("pockettts: cached voice: %w", err)
	}
	return cond, true, nil
}

// Put stores a conditioning.
func (c *VoiceCache) Put(ctx context.Context, fingerprint string, digest [32]byte, cond *acoustic.Conditioning) error {
	raw, err := msgpack.Marshal(cachedVoice{Frames: cond.Frames, Dim: cond.Dim, Data: cond.Data})
	if err != nil {
		return fmt.Errorf("pockettts: encode cached voice: %w", err)
	}
	return c.store.Set(ctx, cacheKey(fingerprint, digest), raw)
}

// CacheEntry describes one cached voice.
type CacheEntry struct {
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Digest      string `json:"sha256" yaml:"sha256"`
	Frames      int    `json:"frames" yaml:"frames"`
	Bytes       int    `json:"bytes" yaml:"bytes"`
}

// List returns the cached voices, optionally restricted to one model
// fingerprint.
func (c *VoiceCache) List(ctx context.Context, fingerprint string) ([]CacheEntry, error) {
	prefix := kv.Key{cacheRoot}
	if fingerprint != "" {
		prefix = append(prefix, fingerprint)
	}
	var out []CacheEntry
	for e, err := range c.store.List(ctx, prefix) {
		if err != nil {
			return nil, err
		}
		if len(e.Key) != 3 {
			continue
		}
		var v cachedVoice
		if err := msgpack.Unmarshal(e.Value, &v); err != nil {
			continue
		}
		out = append(out, CacheEntry{Fingerprint: e.Key[1], Digest: e.Key[2], Frames: v.Frames, Bytes: len(e.Value)})
	}
	return out, nil
}

// Clear removes cached voices, optionally only those of one fingerprint,
// and returns how many were removed.
func (c *VoiceCache) Clear(ctx context.Context, fingerprint string) (int, error) {
	entries, err := c.List(ctx, fingerprint)
	if err != nil {
		return 0, err
	}
	keys := make([]kv.Key, len(entries))
	for i, e := range entries {
		keys[i] = kv.Key{cacheRoot, e.Fingerprint, e.Digest}
	}
	if err := c.store.BatchDelete(ctx, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}
