package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/pockettts/pkg/audio/pcm"
	"github.com/haivivi/pockettts/pkg/pockettts"
)

var streamCmd = &cobra.Command{
	Use:   "stream [text]",
	Short: "Synthesize text as raw 16-bit PCM chunks",
	Long: `Synthesize text incrementally and write raw little-endian 16-bit mono
PCM to the output file, or stdout when -o is not given. Each chunk is
written as soon as it is decoded.

Long mode (--long) uses larger text segments and larger chunks.

Examples:
  pockettts stream "Hello there." -o hello.pcm
  pockettts stream --long -f chapter.yaml | play -t raw -r 24000 -e signed -b 16 -c 1 -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := loadJob(args)
		if err != nil {
			return err
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

		var w io.Writer = cmd.OutOrStdout()
		if job.Output != "" {
			f, err := os.Create(job.Output)
			if err != nil {
				return fmt.Errorf("failed to create output: %w", err)
			}
			defer f.Close()
			w = f
		}

		format, err := pcm.FormatForRate(s.model.SampleRate())
		if err != nil {
			return err
		}
		cw := pcm.ChunkWriter(w)
		printVerbose("Format: %s", format)

		st, err := s.model.OpenStream(c, job.Text, v, job.Long)
		if err != nil {
			return fmt.Errorf("stream: %w", err)
		}
		defer st.Close()

		start := time.Now()
		var total, chunks int
		for chunk, err := range pockettts.Iter(c, st) {
			if err != nil {
				return fmt.Errorf("stream: %w", err)
			}
			if chunks == 0 {
				printVerbose("First chunk after %v", time.Since(start))
			}
			if err := cw.Write(format.FloatChunk(chunk)); err != nil {
				return fmt.Errorf("failed to write audio: %w", err)
			}
			chunks++
			total += len(chunk)
		}

		if job.Output == "" {
			// stdout carries audio
			return nil
		}
		res := newResult(job.Output, s, total, time.Since(start))
		res.Chunks = chunks
		return outputResult(res)
	},
}

func init() {
	streamCmd.Flags().StringVar(&voicePath, "voice", "", "voice file (.wav, .mp3 or .safetensors)")
	streamCmd.Flags().BoolVar(&longText, "long", false, "use long-text segmentation")
}
