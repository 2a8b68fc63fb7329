package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nimble.viom.tech/site/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "nimble-site",
	Short: "NIMBLE website backend",
	Long:  "Serves the NIMBLE marketing site, Stripe checkout, license checks and the contact and newsletter forms.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nimble-site %s\n", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pricesCmd)
	rootCmd.AddCommand(stripeCmd)
}

func main() {
	version.Version = version.Resolve(".")
	rootCmd.Version = version.Version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
