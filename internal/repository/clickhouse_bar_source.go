package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	pkgch "PlanSentry/pkg/clickhouse"
	applogger "PlanSentry/pkg/logger"
	"PlanSentry/pkg/util"
)

// BarSchema returns the DDL for a bar table keyed by (symbol, ts). Rows for
// the same bucket are collapsed so late corrections overwrite earlier ones.
func BarSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ts     DateTime64(3, 'UTC'),
            symbol LowCardinality(String),
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            volume Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, ts)`, table),
	}
}

// CHBarSource reads bars that another process writes into ClickHouse.
type CHBarSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.BarSource = (*CHBarSource)(nil)

func NewCHBarSource(ch *pkgch.Client, table string, l *applogger.Logger) *CHBarSource {
	return &CHBarSource{db: ch.DB(), table: table, l: l.With(applogger.String("component", "ch_bar_source"))}
}

// FetchBars selects the newest count bars and returns them oldest first.
// Rows that fail validation are skipped.
func (s *CHBarSource) FetchBars(ctx context.Context, symbol string, count int) ([]models.Bar, error) {
	start := time.Now()
	symbol = util.NormalizeSymbol(symbol)
	const qtpl = `
        SELECT ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), symbol, count)
	if err != nil {
		s.l.Error("clickhouse latest_bars query error",
			applogger.String("symbol", symbol),
			applogger.Int("limit", count),
			applogger.Error(err),
		)
		return nil, models.NewDataError(models.ErrTransientFetch, symbol, "query: %v", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, count)
	skipped := 0
	for rows.Next() {
		b := models.Bar{Symbol: symbol}
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.l.Error("clickhouse latest_bars scan error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		if b.Validate() != nil {
			skipped++
			continue
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewDataError(models.ErrTransientFetch, symbol, "rows: %v", err)
	}
	reverseBars(out)

	s.l.Debug("clickhouse latest_bars ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Int("skipped", skipped),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHBarSource) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func reverseBars(b []models.Bar) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
