package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/haivivi/pockettts/pkg/cli"
	"github.com/haivivi/pockettts/pkg/pockettts"
)

const appName = "pockettts"

var (
	// Global flags
	cfgFile      string
	contextName  string
	outputFile   string
	inputFile    string
	formatOutput string
	verbose      bool
	noCache      bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pockettts",
	Short: "Local text-to-speech",
	Long: `pockettts - offline text-to-speech with voice cloning.

Synthesizes 24 kHz mono speech from text, optionally in the voice of a
short reference recording. Models are either built in (selected by variant)
or loaded from a model directory, local or s3://bucket/prefix.

Configuration is stored in ~/.pockettts/pockettts/ and supports multiple
contexts, similar to kubectl's context management. POCKET_TTS_* variables
and a .env file in the working directory override the active context.

Examples:
  # Say something with the default voice
  pockettts generate "Hello there." -o hello.wav

  # Clone a voice and keep its prompt for later
  pockettts voice export speaker.wav -o speaker.safetensors
  pockettts generate --voice speaker.safetensors -f job.yaml

  # Pipe raw PCM to a player
  pockettts stream "A longer paragraph." | play -t raw -r 24000 -e signed -b 16 -c 1 -
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		cfg, err := cli.LoadConfigWithPath(appName, cfgFile)
		if err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		globalConfig = cfg
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.pockettts/pockettts/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "input job file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&formatOutput, "format", "yaml", "result format: yaml, json or table")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "do not read or write the voice cache")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(voiceCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(cacheCmd)
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getContext returns the active context with environment overrides applied.
func getContext() (*cli.Context, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		return nil, err
	}
	resolved := *ctx
	if err := resolved.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &resolved, nil
}

// session is a loaded model plus the engine resources behind it.
type session struct {
	ctx    *cli.Context
	engine *cli.Engine
	model  *pockettts.Model
}

// openSession loads the active context's model.
func openSession(c context.Context) (*session, error) {
	ctx, err := getContext()
	if err != nil {
		return nil, err
	}
	var cacheDir string
	if !noCache {
		paths, err := cli.NewPaths(appName)
		if err != nil {
			return nil, err
		}
		cacheDir = paths.CacheDirFor(ctx)
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	eng, err := ctx.OpenEngine(cli.EngineOptions{CacheDir: cacheDir, Logger: slog.Default()})
	if err != nil {
		return nil, err
	}
	m, err := ctx.LoadModel(c, eng)
	if err != nil {
		eng.Close()
		return nil, err
	}
	printVerbose("Using context: %s", ctx.Name)
	printVerbose("Model: %s", m.Fingerprint())
	return &session{ctx: ctx, engine: eng, model: m}, nil
}

// voice loads path, or the context's default voice when path is empty. A
// nil result means the built-in neutral voice.
func (s *session) voice(c context.Context, path string) (*pockettts.VoiceState, error) {
	if path == "" {
		path = s.ctx.Voice
	}
	if path == "" {
		return nil, nil
	}
	printVerbose("Voice: %s", path)
	return s.model.VoiceStateFromPath(c, path)
}

func (s *session) Close() error {
	return errors.Join(s.model.Close(), s.engine.Close())
}

// outputResult writes a result in the --format format to stdout.
func outputResult(result any) error {
	format, err := cli.ParseOutputFormat(formatOutput)
	if err != nil {
		return err
	}
	return cli.Output(result, cli.OutputOptions{Format: format})
}

// printVerbose prints verbose output if enabled
func printVerbose(format string, args ...any) {
	if verbose {
		cli.PrintInfo(format, args...)
	}
}
