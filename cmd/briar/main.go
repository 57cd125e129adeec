package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "briar",
		Short:   "Briar resolves scraped real-estate records into canonical entities",
		Version: version,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newGraphBackfillCmd())

	return root
}
