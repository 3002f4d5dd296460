// Package main provides the entry point for the rlmfs CLI.
package main

import (
	"os"

	"github.com/rlmfs/rlm/cmd/rlmfs/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
