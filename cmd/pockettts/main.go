// Command pockettts synthesizes speech on the local machine.
//
// Usage:
//
//	pockettts [flags] <command> [args]
//
// Commands:
//
//	generate - Synthesize text to a WAV file
//	stream   - Synthesize text as raw 16-bit PCM chunks
//	voice    - Export and inspect voice prompts
//	models   - List available model variants and bundles
//	cache    - Inspect and clear the voice cache
//	config   - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.pockettts/pockettts/
//	Use 'pockettts config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/pockettts/cmd/pockettts/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
