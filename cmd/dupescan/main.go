package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "dupescan",
		Short:   "Find duplicate files and folders",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newScanCmd())

	if err := root.Execute(); err != nil {
		if exitCode, ok := exitCodeFor(err); ok {
			return exitCode
		}
		return 1
	}
	return 0
}
