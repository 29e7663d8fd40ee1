package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"PlanSentry/pkg/config"
)

var configPath string

// rootCmd is the base command for the PlanSentry CLI.
var rootCmd = &cobra.Command{
	Use:   "plansentry",
	Short: "PlanSentry conditional trade plan monitor",
	Long: `PlanSentry watches pending trade plans, refreshes bar windows for their
symbols, analyses market structure and executes a plan once its declared
conditions and the calibrated confluence threshold are met.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd, thresholdCmd, analyzeCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
