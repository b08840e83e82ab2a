package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/haivivi/pockettts/pkg/pockettts"
)

func TestOpenEngine(t *testing.T) {
	temp := 0.5
	ctx := &Context{
		Name:        "test",
		Variant:     pockettts.DefaultVariant,
		Temperature: &temp,
		DecodeSteps: 2,
		Seed:        7,
	}
	e, err := ctx.OpenEngine(EngineOptions{CacheDir: filepath.Join(t.TempDir(), "cache")})
	if err != nil {
		t.Fatalf("OpenEngine: %v", err)
	}
	defer e.Close()
	if e.Cache == nil {
		t.Fatal("cache not opened")
	}

	m, err := ctx.LoadModel(context.Background(), e)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	defer m.Close()
	p := m.Params()
	if p.Temperature != 0.5 || p.DecodeSteps != 2 || p.Seed != 7 {
		t.Errorf("params = %+v", p)
	}
	if p.EOSThreshold != pockettts.DefaultEOSThreshold {
		t.Errorf("EOSThreshold = %v; want default", p.EOSThreshold)
	}

	entries, err := e.Cache.List(context.Background(), m.Fingerprint())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("fresh cache has %d entries", len(entries))
	}
}

func TestOpenEngineWithoutCache(t *testing.T) {
	e, err := (&Context{}).OpenEngine(EngineOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if e.Cache != nil {
		t.Error("cache opened without a directory")
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}

func TestLoadModelFromMissingDir(t *testing.T) {
	ctx := &Context{ModelDir: filepath.Join(t.TempDir(), "absent")}
	e, err := ctx.OpenEngine(EngineOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.LoadModel(context.Background(), e); !errors.Is(err, pockettts.ErrModelFiles) {
		t.Errorf("LoadModel = %v; want ErrModelFiles", err)
	}
}
