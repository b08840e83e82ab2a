package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/pockettts/pkg/audio/codec/wav"
	"github.com/haivivi/pockettts/pkg/audio/pcm"
	"github.com/haivivi/pockettts/pkg/cli"
)

// Job is a synthesis request file.
type Job struct {
	Text   string `json:"text" yaml:"text"`
	Voice  string `json:"voice,omitempty" yaml:"voice,omitempty"`
	Pauses bool   `json:"pauses,omitempty" yaml:"pauses,omitempty"`
	Long   bool   `json:"long,omitempty" yaml:"long,omitempty"`
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// Result summarizes a synthesis run.
type Result struct {
	Output     string `json:"output" yaml:"output"`
	Model      string `json:"model" yaml:"model"`
	Samples    int    `json:"samples" yaml:"samples"`
	SampleRate int    `json:"sample_rate" yaml:"sample_rate"`
	Duration   string `json:"duration" yaml:"duration"`
	Elapsed    string `json:"elapsed" yaml:"elapsed"`
	RTF        string `json:"rtf" yaml:"rtf"`
	Chunks     int    `json:"chunks,omitempty" yaml:"chunks,omitempty"`
}

var (
	voicePath string
	pauses    bool
	longText  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [text]",
	Short: "Synthesize text to a WAV file",
	Long: `Synthesize text to a 16-bit mono WAV file.

Text comes from the arguments, from a job file (-f), or from stdin when
the only argument is "-".

Example job file (job.yaml):
  text: Hello there. This is a test.
  voice: speaker.wav
  pauses: true
  output: hello.wav

Examples:
  pockettts generate "Hello there." -o hello.wav
  pockettts generate --pauses --voice me.safetensors -f job.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := loadJob(args)
		if err != nil {
			return err
		}
		if job.Output == "" {
			job.Output = "output.wav"
		}

		c, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		v, err := s.voice(c, job.Voice)
		if err != nil {
			return err
		}

		start := time.Now()
		var samples []float32
		if job.Pauses {
			samples, err = s.model.GenerateWithPauses(c, job.Text, v)
		} else {
			samples, err = s.model.Generate(c, job.Text, v)
		}
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		elapsed := time.Since(start)

		f, err := os.Create(job.Output)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		if err := wav.Encode(f, samples, s.model.SampleRate()); err != nil {
			f.Close()
			return fmt.Errorf("failed to write WAV: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		printVerbose("Audio saved to: %s", job.Output)
		return outputResult(newResult(job.Output, s, len(samples), elapsed))
	},
}

func newResult(output string, s *session, n int, elapsed time.Duration) Result {
	rate := s.model.SampleRate()
	audio := pcm.SampleDuration(int64(n), rate)
	return Result{
		Output:     output,
		Model:      s.model.Fingerprint(),
		Samples:    n,
		SampleRate: rate,
		Duration:   cli.FormatDuration(audio),
		Elapsed:    cli.FormatDuration(elapsed),
		RTF:        cli.FormatRTF(elapsed, audio),
	}
}

// loadJob builds the job from -f, the arguments and the command flags.
// Flags override the job file.
func loadJob(args []string) (*Job, error) {
	var job Job
	if inputFile != "" {
		if err := cli.LoadRequest(inputFile, &job); err != nil {
			return nil, err
		}
	}
	switch {
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		job.Text = string(data)
	case len(args) > 0:
		job.Text = strings.Join(args, " ")
	}
	if strings.TrimSpace(job.Text) == "" {
		return nil, fmt.Errorf("no text given: pass it as an argument or use -f")
	}
	if voicePath != "" {
		job.Voice = voicePath
	}
	if outputFile != "" {
		job.Output = outputFile
	}
	job.Pauses = job.Pauses || pauses
	job.Long = job.Long || longText
	return &job, nil
}

func init() {
	generateCmd.Flags().StringVar(&voicePath, "voice", "", "voice file (.wav, .mp3 or .safetensors)")
	generateCmd.Flags().BoolVar(&pauses, "pauses", false, "insert pauses at sentence and clause boundaries")
}
