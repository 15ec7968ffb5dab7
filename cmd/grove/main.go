package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/grovelabs/grove/cmd/grove/commands"
	"github.com/grovelabs/grove/internal/cli/prompt"
)

func main() {
	if err := commands.Execute(); err != nil {
		// User-initiated aborts are not errors worth printing
		if errors.Is(err, prompt.ErrAborted) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
