package main

import (
	"os"

	"github.com/clemens-mw/agentic-typer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
