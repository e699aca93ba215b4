package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ispadmin",
		Short: "ISP administration backend",
		Long:  "Branch, customer, ticket and subscription management for an ISP, with the daily subscription lifecycle job.",
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newReconcileCommand(),
		newSeedCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
