package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"PlanSentry/internal/di"
	"PlanSentry/internal/domain/models"
	"PlanSentry/internal/services/structure"
	"PlanSentry/internal/usecase"
	"PlanSentry/pkg/util"
)

var (
	analyzeFile   string
	analyzeSymbol string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the structure analyzer on a JSON bar file",
	Long: `Load a JSON array of bars, analyse the window and print the structural
snapshot. The analysis clock is pinned to the newest bar so saved windows are
never reported stale.

Example usage:
  plansentry analyze --file bars.json --symbol XAUUSD`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "JSON file with an array of bars")
	analyzeCmd.Flags().StringVar(&analyzeSymbol, "symbol", "", "symbol override for bars without one")
	_ = analyzeCmd.MarkFlagRequired("file")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := os.ReadFile(analyzeFile)
	if err != nil {
		return fmt.Errorf("read bars: %w", err)
	}
	var bars []models.Bar
	if err := json.Unmarshal(b, &bars); err != nil {
		return fmt.Errorf("decode bars: %w", err)
	}
	if len(bars) == 0 {
		return fmt.Errorf("%s holds no bars", analyzeFile)
	}

	symbol := util.NormalizeSymbol(analyzeSymbol)
	if symbol == "" {
		symbol = util.NormalizeSymbol(bars[0].Symbol)
	}
	for i := range bars {
		bars[i].Symbol = symbol
	}

	profiles, err := di.ProvideProfileStore(cfg)
	if err != nil {
		return err
	}
	cache := di.ProvideBarCache(cfg)
	cache.UpsertMany(symbol, bars)
	latest, ok := cache.Latest(symbol)
	if !ok {
		return fmt.Errorf("no valid bars for %s", symbol)
	}
	clock := func() time.Time { return latest.Timestamp }

	analyzer := di.ProvideAnalyzer(cfg)
	service := usecase.NewAnalysisService(cache, structure.New(structure.WithParams(analyzer.Params()), structure.WithClock(clock)), profiles, 0, clock)
	snap, err := service.Snapshot(context.Background(), symbol)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
