package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the per-app directory layout.
type Paths struct {
	AppName string
	HomeDir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: appName, HomeDir: home}, nil
}

// BaseDir returns ~/.pockettts.
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns ~/.pockettts/<app>.
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns ~/.pockettts/<app>/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// CacheDir returns the voice cache directory.
func (p *Paths) CacheDir() string {
	return filepath.Join(p.AppDir(), "cache")
}

// ModelsDir returns the directory searched for named model bundles.
func (p *Paths) ModelsDir() string {
	return filepath.Join(p.AppDir(), "models")
}

// EnsureCacheDir creates the cache directory if it doesn't exist
func (p *Paths) EnsureCacheDir() error {
	return os.MkdirAll(p.CacheDir(), 0o755)
}

// ModelPath returns a path within the models directory
func (p *Paths) ModelPath(name string) string {
	return filepath.Join(p.ModelsDir(), name)
}

// CacheDirFor returns the context's cache directory, falling back to the
// app default.
func (p *Paths) CacheDirFor(ctx *Context) string {
	if ctx != nil && ctx.CacheDir != "" {
		return ctx.CacheDir
	}
	return p.CacheDir()
}
