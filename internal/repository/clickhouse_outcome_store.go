package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	pkgch "PlanSentry/pkg/clickhouse"
)

// OutcomeSchema returns the DDL for the append-only outcome log.
func OutcomeSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            recorded_at  DateTime64(3, 'UTC'),
            plan_id      String,
            symbol       LowCardinality(String),
            session      LowCardinality(String),
            confluence   Float64,
            result       LowCardinality(String),
            risk_reward  Float64,
            latency_ms   Int64
        ) ENGINE = MergeTree
        ORDER BY (symbol, recorded_at)`, table),
	}
}

// ClickHouseOutcomeStore appends SignalOutcome rows. Rows are never updated.
type ClickHouseOutcomeStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
}

var _ domrepo.OutcomeStore = (*ClickHouseOutcomeStore)(nil)

func NewClickHouseOutcomeStore(ch *pkgch.Client, table string) *ClickHouseOutcomeStore {
	return &ClickHouseOutcomeStore{ch: ch, db: ch.DB(), table: table}
}

func (s *ClickHouseOutcomeStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, OutcomeSchema(s.table))
}

func (s *ClickHouseOutcomeStore) Append(ctx context.Context, o models.SignalOutcome) error {
	q := fmt.Sprintf(`INSERT INTO %s (recorded_at, plan_id, symbol, session, confluence, result, risk_reward, latency_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err := s.db.ExecContext(ctx, q,
		o.RecordedAt.UTC(),
		o.PlanID,
		o.Symbol,
		string(o.Session),
		o.ConfluenceAtSignal,
		string(o.Result),
		o.RiskReward,
		o.Latency.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("append outcome %s: %w", o.PlanID, err)
	}
	return nil
}

// Recent returns the newest outcomes for symbol, newest first.
func (s *ClickHouseOutcomeStore) Recent(ctx context.Context, symbol string, limit int) ([]models.SignalOutcome, error) {
	q := fmt.Sprintf(`SELECT recorded_at, plan_id, symbol, session, confluence, result, risk_reward, latency_ms
        FROM %s WHERE symbol = ? ORDER BY recorded_at DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []models.SignalOutcome
	for rows.Next() {
		var (
			o         models.SignalOutcome
			session   string
			result    string
			latencyMs int64
		)
		if err := rows.Scan(&o.RecordedAt, &o.PlanID, &o.Symbol, &session, &o.ConfluenceAtSignal, &result, &o.RiskReward, &latencyMs); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Session = models.Session(session)
		o.Result = models.OutcomeResult(result)
		o.Latency = time.Duration(latencyMs) * time.Millisecond
		out = append(out, o)
	}
	return out, rows.Err()
}

// Close is a no-op; the pool belongs to pkg/clickhouse.
func (s *ClickHouseOutcomeStore) Close() error {
	return nil
}
