package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/pockettts/pkg/cli"
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Export and inspect voice prompts",
	Long: `Voice prompts are the encoded form of a reference recording. Exporting
one saves the encoder pass on every later run; the prompt only works with
the model it was exported from.`,
}

var voiceExportCmd = &cobra.Command{
	Use:   "export <audio>",
	Short: "Encode a reference recording into a .safetensors prompt",
	Long: `Encode a WAV or MP3 recording into a voice prompt.

Examples:
  pockettts voice export speaker.wav
  pockettts voice export s3://voices/alice.mp3 -o alice.safetensors`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := context.Background()
		s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()

		v, err := s.model.VoiceStateFromPath(c, args[0])
		if err != nil {
			return err
		}
		defer v.Close()
		data, err := v.MarshalPrompt()
		if err != nil {
			return err
		}

		out := outputFile
		if out == "" {
			base := filepath.Base(args[0])
			out = strings.TrimSuffix(base, filepath.Ext(base)) + ".safetensors"
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("failed to write prompt: %w", err)
		}
		cli.PrintSuccess("Voice prompt saved to %s (%d frames, %s)", out, v.Frames(), cli.FormatBytes(int64(len(data))))
		return nil
	},
}

// VoiceInfo describes a loaded voice.
type VoiceInfo struct {
	Path        string `json:"path" yaml:"path"`
	Frames      int    `json:"frames" yaml:"frames"`
	Dim         int    `json:"dim" yaml:"dim"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
}

var voiceInfoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Load a voice and print its shape",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := context.Background()
		s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()

		v, err := s.model.VoiceStateFromPath(c, args[0])
		if err != nil {
			return err
		}
		defer v.Close()
		return outputResult(VoiceInfo{
			Path:        args[0],
			Frames:      v.Frames(),
			Dim:         v.Dim(),
			Fingerprint: v.Fingerprint(),
		})
	},
}

func init() {
	voiceCmd.AddCommand(voiceExportCmd)
	voiceCmd.AddCommand(voiceInfoCmd)
}
