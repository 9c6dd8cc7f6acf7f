package main

import (
	"os"

	"github.com/clinscout/backend/cmd/clinscout/commands"
)

// main is the entry point for the ClinScout CLI.
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
