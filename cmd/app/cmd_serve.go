package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"PlanSentry/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring engine and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("app initialization failed: %w", err)
		}
		// Blocks until SIGINT or SIGTERM.
		return app.Run()
	},
}
