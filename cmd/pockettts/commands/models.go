package commands

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/pockettts/pkg/cli"
	"github.com/haivivi/pockettts/pkg/pockettts"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available model variants and bundles",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in variants and bundles in the models directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := cli.Table{Header: []string{"NAME", "SOURCE", "BACKEND", "LOCATION"}}
		for _, name := range pockettts.Variants() {
			v, _ := pockettts.LookupVariant(name)
			t.Rows = append(t.Rows, []string{name, "builtin", v.Backend, ""})
		}

		paths, err := cli.NewPaths(appName)
		if err != nil {
			return err
		}
		entries, err := os.ReadDir(paths.ModelsDir())
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dir := paths.ModelPath(e.Name())
			data, err := os.ReadFile(filepath.Join(dir, pockettts.ManifestName))
			if err != nil {
				continue
			}
			man, err := pockettts.ParseManifest(data)
			if err != nil {
				printVerbose("Skipping %s: %v", dir, err)
				continue
			}
			t.Rows = append(t.Rows, []string{man.Variant, "dir", man.Backend, dir})
		}
		return outputResult(t)
	},
}

// ModelInfo describes the active context's model.
type ModelInfo struct {
	Fingerprint  string  `json:"fingerprint" yaml:"fingerprint"`
	Variant      string  `json:"variant" yaml:"variant"`
	Dir          string  `json:"dir,omitempty" yaml:"dir,omitempty"`
	Backend      string  `json:"backend" yaml:"backend"`
	SampleRate   int     `json:"sample_rate" yaml:"sample_rate"`
	FrameSize    int     `json:"frame_size" yaml:"frame_size"`
	LatentDim    int     `json:"latent_dim" yaml:"latent_dim"`
	EmbeddingDim int     `json:"embedding_dim" yaml:"embedding_dim"`
	Temperature  float64 `json:"temperature" yaml:"temperature"`
	DecodeSteps  int     `json:"decode_steps" yaml:"decode_steps"`
	EOSThreshold float64 `json:"eos_threshold" yaml:"eos_threshold"`
	Seed         string  `json:"seed" yaml:"seed"`
}

var modelsInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Load the active context's model and describe it",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(context.Background())
		if err != nil {
			return err
		}
		defer s.Close()
		info, p := s.model.Info(), s.model.Params()
		return outputResult(ModelInfo{
			Fingerprint:  s.model.Fingerprint(),
			Variant:      s.model.Variant(),
			Dir:          s.model.Dir(),
			Backend:      info.Name,
			SampleRate:   info.SampleRate,
			FrameSize:    info.FrameSize,
			LatentDim:    info.LatentDim,
			EmbeddingDim: info.EmbeddingDim,
			Temperature:  p.Temperature,
			DecodeSteps:  p.DecodeSteps,
			EOSThreshold: p.EOSThreshold,
			Seed:         strconv.FormatUint(p.Seed, 10),
		})
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsInfoCmd)
}
