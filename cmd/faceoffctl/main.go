// Command faceoffctl holds operator tooling for the donation ledger.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "faceoffctl",
		Short:   "Operator tools for the charity faceoff ledger",
		Version: Version,
	}
	rootCmd.AddCommand(hashpwCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(rosterCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
