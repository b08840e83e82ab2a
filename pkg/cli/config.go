package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/pockettts/pkg/storage"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".pockettts"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Config represents the main configuration structure for a CLI app
type Config struct {
	// AppName is the application name
	AppName string `yaml:"-"`

	// CurrentContext is the name of the currently active context
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts is a map of context name to context configuration
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	configPath string
}

// Context is one named engine configuration.
type Context struct {
	Name string `yaml:"name"`

	// Variant is the model variant signature (e.g. "b6369a24").
	Variant string `yaml:"variant,omitempty"`

	// ModelDir is a local directory or s3://bucket/prefix holding a model
	// bundle. Empty selects the built-in weights for Variant.
	ModelDir string `yaml:"model_dir,omitempty"`

	// Temperature overrides the sampling temperature. Nil keeps the default.
	Temperature *float64 `yaml:"temperature,omitempty"`

	// DecodeSteps overrides the latent decode step count when positive.
	DecodeSteps int `yaml:"decode_steps,omitempty"`

	// EOSThreshold overrides the end-of-speech probability threshold when
	// positive.
	EOSThreshold float64 `yaml:"eos_threshold,omitempty"`

	// Seed overrides the sampling seed when non-zero.
	Seed uint64 `yaml:"seed,omitempty"`

	// Voice is the default voice file (.wav, .mp3 or .safetensors).
	Voice string `yaml:"voice,omitempty"`

	// CacheDir is the badger directory used to cache encoded voices.
	// Empty uses ~/.pockettts/<app>/cache.
	CacheDir string `yaml:"cache_dir,omitempty"`

	// S3 configures access to s3:// model locations.
	S3 *S3Settings `yaml:"s3,omitempty"`

	// Extra stores free-form settings.
	Extra map[string]string `yaml:"extra,omitempty"`
}

// S3Settings holds object store credentials for model bundles.
type S3Settings struct {
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	PathStyle       bool   `yaml:"path_style,omitempty"`
}

// StorageConfig converts the settings for storage.NewS3Client.
func (s *S3Settings) StorageConfig() storage.S3Config {
	if s == nil {
		return storage.S3Config{}
	}
	return storage.S3Config{
		Region:          s.Region,
		Endpoint:        s.Endpoint,
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		PathStyle:       s.PathStyle,
	}
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, DefaultBaseDir, appName, DefaultConfigFile)
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, ctx := range cfg.Contexts {
		if ctx == nil {
			cfg.Contexts[name] = &Context{Name: name}
			continue
		}
		ctx.Name = name
	}
	cfg.AppName = appName
	cfg.configPath = configPath
	return cfg, nil
}

// Save writes the configuration to disk, creating its directory.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// AddContext adds or replaces a context. The first context added becomes
// current.
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns a specific context
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// ResolveContext returns the named context. An empty name selects the
// current context, or an empty default context when none is configured.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name != "" {
		return c.GetContext(name)
	}
	if c.CurrentContext == "" {
		return &Context{Name: "default"}, nil
	}
	return c.GetContext(c.CurrentContext)
}

// ListContexts returns all context names in sorted order.
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Environment variables read by ApplyEnv.
const (
	EnvVariant      = "POCKET_TTS_VARIANT"
	EnvModelDir     = "POCKET_TTS_MODEL_DIR"
	EnvVoice        = "POCKET_TTS_VOICE"
	EnvTemperature  = "POCKET_TTS_TEMPERATURE"
	EnvDecodeSteps  = "POCKET_TTS_DECODE_STEPS"
	EnvEOSThreshold = "POCKET_TTS_EOS_THRESHOLD"
	EnvSeed         = "POCKET_TTS_SEED"
	EnvCacheDir     = "POCKET_TTS_CACHE_DIR"
	EnvS3Endpoint   = "POCKET_TTS_S3_ENDPOINT"
	EnvS3Region     = "AWS_REGION"
	EnvS3AccessKey  = "AWS_ACCESS_KEY_ID"
	EnvS3SecretKey  = "AWS_SECRET_ACCESS_KEY"
)

// ApplyEnv overrides context fields from environment variables. lookup is
// usually os.LookupEnv.
func (ctx *Context) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvVariant, &ctx.Variant)
	str(EnvModelDir, &ctx.ModelDir)
	str(EnvVoice, &ctx.Voice)
	str(EnvCacheDir, &ctx.CacheDir)

	if v, ok := lookup(EnvTemperature); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTemperature, err)
		}
		ctx.Temperature = &f
	}
	if v, ok := lookup(EnvDecodeSteps); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDecodeSteps, err)
		}
		ctx.DecodeSteps = n
	}
	if v, ok := lookup(EnvEOSThreshold); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvEOSThreshold, err)
		}
		ctx.EOSThreshold = f
	}
	if v, ok := lookup(EnvSeed); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSeed, err)
		}
		ctx.Seed = n
	}

	var s3 S3Settings
	if ctx.S3 != nil {
		s3 = *ctx.S3
	}
	before := s3
	str(EnvS3Endpoint, &s3.Endpoint)
	str(EnvS3Region, &s3.Region)
	str(EnvS3AccessKey, &s3.AccessKeyID)
	str(EnvS3SecretKey, &s3.SecretAccessKey)
	if s3 != before {
		ctx.S3 = &s3
	}
	return nil
}

// GetExtra returns an extra value for the context
func (ctx *Context) GetExtra(key string) string {
	if ctx.Extra == nil {
		return ""
	}
	return ctx.Extra[key]
}

// SetExtra sets an extra value for the context
func (ctx *Context) SetExtra(key, value string) {
	if ctx.Extra == nil {
		ctx.Extra = make(map[string]string)
	}
	ctx.Extra[key] = value
}

// MaskAPIKey masks a secret for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
