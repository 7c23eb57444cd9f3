package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "crossvenue-arb",
		Short: "Cross-venue binary-outcome arbitrage engine",
		Long: `Cross-venue arbitrage engine for binary-outcome markets.

Tracks human-verified market pairs across two venues, detects combined
prices under 1.0 after fees and slippage, and executes hedged order pairs
with a bounded two-phase protocol. Paper trading by default.`,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	// Missing .env is fine; config falls back to defaults and real env vars.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
}
