package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haivivi/pockettts/pkg/kv"
	"github.com/haivivi/pockettts/pkg/pockettts"
	"github.com/haivivi/pockettts/pkg/storage"
)

// Engine holds what a context opens for the synthesis engine: model
// options, the voice cache and its store.
type Engine struct {
	// Options apply to every model loaded through the engine.
	Options []pockettts.Option

	// Cache is nil when caching is disabled.
	Cache *pockettts.VoiceCache

	store kv.Store
}

// EngineOptions controls OpenEngine.
type EngineOptions struct {
	// CacheDir is the badger directory for encoded voices. Empty disables
	// the cache.
	CacheDir string

	Logger *slog.Logger
}

// OpenEngine prepares engine resources for ctx. Hyperparameter overrides
// in ctx become model options; S3 settings become the client used for
// s3:// locations.
func (ctx *Context) OpenEngine(opts EngineOptions) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{Options: []pockettts.Option{pockettts.WithLogger(logger)}}

	if ctx.Temperature != nil {
		e.Options = append(e.Options, pockettts.WithTemperature(*ctx.Temperature))
	}
	if ctx.DecodeSteps > 0 {
		e.Options = append(e.Options, pockettts.WithDecodeSteps(ctx.DecodeSteps))
	}
	if ctx.EOSThreshold > 0 {
		e.Options = append(e.Options, pockettts.WithEOSThreshold(ctx.EOSThreshold))
	}
	if ctx.Seed != 0 {
		e.Options = append(e.Options, pockettts.WithSeed(ctx.Seed))
	}
	if ctx.S3 != nil {
		e.Options = append(e.Options, pockettts.WithS3Client(storage.NewS3Client(ctx.S3.StorageConfig())))
	}

	if opts.CacheDir != "" {
		store, err := kv.NewBadger(kv.BadgerOptions{Dir: opts.CacheDir, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open voice cache: %w", err)
		}
		e.store = store
		e.Cache = pockettts.NewVoiceCache(store)
		e.Options = append(e.Options, pockettts.WithVoiceCache(e.Cache))
	}
	return e, nil
}

// LoadModel loads the model ctx names: ModelDir when set, otherwise the
// built-in Variant.
func (ctx *Context) LoadModel(c context.Context, e *Engine) (*pockettts.Model, error) {
	if ctx.ModelDir != "" {
		return pockettts.LoadFromDir(c, ctx.Variant, ctx.ModelDir, e.Options...)
	}
	return pockettts.Load(c, ctx.Variant, e.Options...)
}

// Close releases the cache store.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}
