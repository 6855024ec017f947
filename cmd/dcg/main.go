// Command dcg is the destructive command guard CLI and Claude Code
// PreToolUse hook entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/dicklesworthstone/dcg/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dcg: %v\n", err)
		os.Exit(1)
	}
}
