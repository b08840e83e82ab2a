package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPaths(t *testing.T) {
	home := t.TempDir()
	p := &Paths{AppName: "pockettts", HomeDir: home}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BaseDir", p.BaseDir(), filepath.Join(home, ".pockettts")},
		{"AppDir", p.AppDir(), filepath.Join(home, ".pockettts", "pockettts")},
		{"ConfigFile", p.ConfigFile(), filepath.Join(home, ".pockettts", "pockettts", "config.yaml")},
		{"CacheDir", p.CacheDir(), filepath.Join(home, ".pockettts", "pockettts", "cache")},
		{"ModelPath", p.ModelPath("b6369a24"), filepath.Join(home, ".pockettts", "pockettts", "models", "b6369a24")},
		{"CacheDirFor nil", p.CacheDirFor(nil), p.CacheDir()},
		{"CacheDirFor override", p.CacheDirFor(&Context{CacheDir: "/var/cache/voices"}), "/var/cache/voices"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}

	if err := p.EnsureCacheDir(); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(p.CacheDir()); err != nil || !info.IsDir() {
		t.Fatalf("cache dir not created: %v", err)
	}
}

func TestNewPaths(t *testing.T) {
	p, err := NewPaths("pockettts")
	if err != nil {
		t.Fatal(err)
	}
	if p.AppName != "pockettts" || p.HomeDir == "" {
		t.Errorf("NewPaths = %+v", p)
	}
}
