package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var configDir string

func wallClock() int64 { return time.Now().Unix() }

// NewRootCmd builds the rlmfs root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rlmfs",
		Short: "Persistent corpus store and hybrid retrieval engine",
		Long: `rlmfs buffers text, chunks it, optionally embeds it, and serves
hybrid (BM25 + semantic) search over the result — with a virtual
filesystem projection of the store for tools that prefer to read it
as files.`,
	}

	root.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory to load rlm.yaml from")

	root.AddCommand(newIngestCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newServeCmd())

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
