package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"PlanSentry/internal/di"
	"PlanSentry/internal/usecase"
	applogger "PlanSentry/pkg/logger"
	"PlanSentry/pkg/util"
)

var (
	thresholdSymbol string
	thresholdVR     float64
	thresholdAt     string
	thresholdFormat string
)

var thresholdCmd = &cobra.Command{
	Use:   "threshold",
	Short: "Compute a threshold breakdown from the profile document",
	Long: `Compute the calibrated activation threshold for a symbol offline, using
only the asset profiles and session-bias matrix.

Example usage:
  plansentry threshold --symbol XAUUSD --vr 1.3
  plansentry threshold --symbol BTCUSD --at 2026-03-04T13:00:00Z --format=json`,
	RunE: runThreshold,
}

func init() {
	thresholdCmd.Flags().StringVar(&thresholdSymbol, "symbol", "", "symbol to calibrate")
	thresholdCmd.Flags().Float64Var(&thresholdVR, "vr", 1, "volatility ratio")
	thresholdCmd.Flags().StringVar(&thresholdAt, "at", "", "RFC3339 instant used for session classification (default now)")
	thresholdCmd.Flags().StringVar(&thresholdFormat, "format", "table", "output format: table, json")
	_ = thresholdCmd.MarkFlagRequired("symbol")
}

func runThreshold(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	at := time.Now().UTC()
	if thresholdAt != "" {
		if at, err = time.Parse(time.RFC3339, thresholdAt); err != nil {
			return fmt.Errorf("--at: %w", err)
		}
	}
	profiles, err := di.ProvideProfileStore(cfg)
	if err != nil {
		return err
	}
	sessions := di.ProvideSessionClassifier(profiles, cfg)
	resolver := usecase.NewThresholdResolver(di.ProvideCalibrator(profiles, sessions, cfg), cfg.Engine.FallbackThreshold, applogger.Nop())

	symbol := util.NormalizeSymbol(thresholdSymbol)
	info := sessions.Classify(symbol, at)
	calc := resolver.Resolve(context.Background(), symbol, info.Session, thresholdVR)

	if thresholdFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"session": info, "threshold": calc})
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "symbol\t%s\n", calc.Symbol)
	fmt.Fprintf(w, "session\t%s (%s liquidity, applicable=%t)\n", info.Session, info.Liquidity, info.Applicable)
	fmt.Fprintf(w, "base\t%.2f\n", calc.BaseConfidence)
	fmt.Fprintf(w, "volatility\tratio %.3f weight %.2f -> %.2f\n", calc.VolatilityRatio, calc.VolatilityWeight, calc.VolAdjusted)
	fmt.Fprintf(w, "session bias\t%.3f ^ %.2f\n", calc.SessionBias, calc.SessionWeight)
	fmt.Fprintf(w, "raw\t%.2f\n", calc.Raw)
	fmt.Fprintf(w, "threshold\t%.2f [%.0f, %.0f]\n", calc.Threshold, calc.Floor, calc.Ceiling)
	fmt.Fprintf(w, "source\t%s\n", calc.Source)
	return w.Flush()
}
