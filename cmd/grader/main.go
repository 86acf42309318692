package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "grader",
		Short:        "Batch grader for programming assignments",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, evaluateCmd(), referenceCmd())

	// Bare `grader` serves the HTTP API.
	root.RunE = serve.RunE

	return root
}
