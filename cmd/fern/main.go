package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "fern",
		Short:         "Resolve regulatory records to canonical organizations",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "optional .env file to load before the environment")

	root.AddCommand(
		newServeCommand(&envFile),
		newResolveCommand(&envFile),
		newReconcileCommand(&envFile),
	)
	return root
}
