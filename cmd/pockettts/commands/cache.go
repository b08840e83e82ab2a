package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/pockettts/pkg/cli"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the voice cache",
	Long: `Encoded reference recordings are cached per model, keyed by the audio's
SHA-256. Entries for other models are not touched.`,
}

// openCache opens a session that must have the cache enabled.
func openCache(c context.Context) (*session, error) {
	if noCache {
		return nil, fmt.Errorf("--no-cache disables the cache commands")
	}
	return openSession(c)
}

var cacheAll bool

// cacheScope is the fingerprint the cache commands act on; empty means
// every model.
func cacheScope(s *session) string {
	if cacheAll {
		return ""
	}
	return s.model.Fingerprint()
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached voices",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := context.Background()
		s, err := openCache(c)
		if err != nil {
			return err
		}
		defer s.Close()

		entries, err := s.engine.Cache.List(c, cacheScope(s))
		if err != nil {
			return err
		}
		t := cli.Table{Header: []string{"MODEL", "DIGEST", "FRAMES", "SIZE"}}
		for _, e := range entries {
			t.Rows = append(t.Rows, []string{e.Fingerprint, e.Digest, strconv.Itoa(e.Frames), cli.FormatBytes(int64(e.Bytes))})
		}
		return outputResult(t)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached voices",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := context.Background()
		s, err := openCache(c)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.engine.Cache.Clear(c, cacheScope(s))
		if err != nil {
			return err
		}
		cli.PrintSuccess("Removed %d cached voices", n)
		return nil
	},
}

func init() {
	cacheCmd.PersistentFlags().BoolVar(&cacheAll, "all", false, "act on every model, not only the active one")
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
