// Amri is a policy-guarded command execution gateway for MCP clients.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "amri",
	Short: "Amri, a policy-guarded command execution gateway.",
	Long: `Amri exposes controlled command execution to MCP clients. Every command
is validated against a configurable security policy (blocklists, chain
inspection, working-directory allow-list) before a subprocess spawns, and
every execution is recorded in a bounded dual-tier log store with
truncated, retrievable output.`,
	RunE:          runServe, // Default to serve mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
