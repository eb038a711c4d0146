package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	// Running the binary without a subcommand starts the HTTP server.
	root := &cobra.Command{
		Use:           "navegantes-payments",
		Short:         "Membership payment gateway for Navegantes",
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSignCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
