package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/pockettts/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

A context names a model (variant or model directory), sampling overrides,
a default voice and the voice cache location.

Configuration is stored in ~/.pockettts/pockettts/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

Example:
  pockettts config add-context local --variant b6369a24
  pockettts config add-context onnx --model-dir ~/models/pocket-tts --voice me.safetensors
  pockettts config add-context bucket --model-dir s3://models/pocket-tts --s3-endpoint http://localhost:9000 --s3-path-style`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		ctx := &cli.Context{}
		var err error
		if ctx.Variant, err = flags.GetString("variant"); err != nil {
			return err
		}
		if ctx.ModelDir, err = flags.GetString("model-dir"); err != nil {
			return err
		}
		if ctx.Voice, err = flags.GetString("voice"); err != nil {
			return err
		}
		if ctx.CacheDir, err = flags.GetString("cache-dir"); err != nil {
			return err
		}
		if flags.Changed("temperature") {
			t, err := flags.GetFloat64("temperature")
			if err != nil {
				return err
			}
			ctx.Temperature = &t
		}
		if ctx.DecodeSteps, err = flags.GetInt("decode-steps"); err != nil {
			return err
		}
		if ctx.EOSThreshold, err = flags.GetFloat64("eos-threshold"); err != nil {
			return err
		}
		if ctx.Seed, err = flags.GetUint64("seed"); err != nil {
			return err
		}

		var s3 cli.S3Settings
		if s3.Endpoint, err = flags.GetString("s3-endpoint"); err != nil {
			return err
		}
		if s3.Region, err = flags.GetString("s3-region"); err != nil {
			return err
		}
		if s3.PathStyle, err = flags.GetBool("s3-path-style"); err != nil {
			return err
		}
		if s3 != (cli.S3Settings{}) {
			ctx.S3 = &s3
		}

		if err := getConfig().AddContext(args[0], ctx); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q added successfully", args[0])
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getConfig().DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getConfig().UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context %q", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if cfg.CurrentContext == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No current context set")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		t := cli.Table{Header: []string{"CURRENT", "NAME", "MODEL", "VOICE"}}
		for _, name := range cfg.ListContexts() {
			ctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			model := ctx.ModelDir
			if model == "" {
				model = ctx.Variant
			}
			if model == "" {
				model = "(default)"
			}
			t.Rows = append(t.Rows, []string{current, name, model, ctx.Voice})
		}
		return outputResult(t)
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		view := map[string]any{
			"path":            cfg.Path(),
			"current_context": cfg.CurrentContext,
		}
		contexts := make(map[string]any, len(cfg.Contexts))
		for _, name := range cfg.ListContexts() {
			contexts[name] = describeContext(cfg.Contexts[name])
		}
		view["contexts"] = contexts
		return outputResult(view)
	},
}

// describeContext renders a context with secrets masked.
func describeContext(ctx *cli.Context) map[string]string {
	out := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("variant", ctx.Variant)
	set("model_dir", ctx.ModelDir)
	set("voice", ctx.Voice)
	set("cache_dir", ctx.CacheDir)
	if ctx.Temperature != nil {
		set("temperature", strconv.FormatFloat(*ctx.Temperature, 'g', -1, 64))
	}
	if ctx.DecodeSteps > 0 {
		set("decode_steps", strconv.Itoa(ctx.DecodeSteps))
	}
	if ctx.EOSThreshold > 0 {
		set("eos_threshold", strconv.FormatFloat(ctx.EOSThreshold, 'g', -1, 64))
	}
	if ctx.Seed != 0 {
		set("seed", strconv.FormatUint(ctx.Seed, 10))
	}
	if s3 := ctx.S3; s3 != nil {
		set("s3_endpoint", s3.Endpoint)
		set("s3_region", s3.Region)
		set("s3_access_key_id", cli.MaskAPIKey(s3.AccessKeyID))
		set("s3_secret_access_key", cli.MaskAPIKey(s3.SecretAccessKey))
	}
	return out
}

func init() {
	f := configAddContextCmd.Flags()
	f.String("variant", "", "built-in model variant")
	f.String("model-dir", "", "model directory or s3://bucket/prefix")
	f.String("voice", "", "default voice file (.wav, .mp3 or .safetensors)")
	f.String("cache-dir", "", "voice cache directory")
	f.Float64("temperature", 0, "sampling temperature")
	f.Int("decode-steps", 0, "latent decode steps")
	f.Float64("eos-threshold", 0, "end-of-speech probability threshold")
	f.Uint64("seed", 0, "sampling seed")
	f.String("s3-endpoint", "", "S3-compatible endpoint URL")
	f.String("s3-region", "", "S3 region")
	f.Bool("s3-path-style", false, "use path-style S3 addressing")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
