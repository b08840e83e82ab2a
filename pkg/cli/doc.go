// Package cli provides the configuration and output helpers shared by the
// pockettts command-line tool.
//
// Configuration lives in ~/.pockettts/<app>/config.yaml and holds named
// contexts, similar to kubectl. A context selects a model variant, a model
// bundle location (local directory or s3:// URI), sampling defaults and the
// voice cache directory. Values may be overridden from POCKET_TTS_*
// environment variables, which the command loads from a .env file first.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("pockettts")
//	ctx, err := cfg.ResolveContext("")
//	ctx.ApplyEnv(os.LookupEnv)
//	cli.Output(info, cli.OutputOptions{Format: cli.FormatJSON})
package cli
