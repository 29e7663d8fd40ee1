package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	domsvc "PlanSentry/internal/domain/service"
	applogger "PlanSentry/pkg/logger"
)

const (
	DecisionExecuted   = "executed"
	DecisionNotReady   = "not_ready"
	DecisionEmitFailed = "emit_failed"
)

type EngineConfig struct {
	CycleInterval time.Duration
	// EventMargin is added to the threshold in force for event-sensitive
	// symbols during high-liquidity sessions.
	EventMargin float64
	// StaleAfter bounds the snapshot age at evaluation time.
	StaleAfter time.Duration
	// AlwaysOpenStaleX widens StaleAfter for always-open symbols.
	AlwaysOpenStaleX float64
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CycleInterval:    30 * time.Second,
		EventMargin:      5,
		StaleAfter:       180 * time.Second,
		AlwaysOpenStaleX: 2,
	}
}

// CycleReport summarises one monitoring cycle.
type CycleReport struct {
	Started     time.Time
	Duration    time.Duration
	Applied     []AppliedCommand
	Expired     []string
	Evaluated   int
	Executed    []string
	Unavailable map[string]error
}

// ConditionEngine is the monitoring loop. It is the only writer of plan
// status after creation.
type ConditionEngine struct {
	registry   *PlanRegistry
	refresher  domsvc.Refresher
	snapshots  domsvc.SnapshotProvider
	sessions   domsvc.SessionProvider
	profiles   domsvc.ProfileProvider
	thresholds *ThresholdResolver
	emitter    domrepo.ExecutionEmitter
	metrics    domrepo.Metrics
	log        *applogger.Logger
	cfg        EngineConfig
	now        func() time.Time
}

func NewConditionEngine(
	registry *PlanRegistry,
	refresher domsvc.Refresher,
	snapshots domsvc.SnapshotProvider,
	sessions domsvc.SessionProvider,
	profiles domsvc.ProfileProvider,
	thresholds *ThresholdResolver,
	emitter domrepo.ExecutionEmitter,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	cfg EngineConfig,
	now func() time.Time,
) *ConditionEngine {
	if now == nil {
		now = time.Now
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 30 * time.Second
	}
	if cfg.AlwaysOpenStaleX < 1 {
		cfg.AlwaysOpenStaleX = 1
	}
	return &ConditionEngine{
		registry:   registry,
		refresher:  refresher,
		snapshots:  snapshots,
		sessions:   sessions,
		profiles:   profiles,
		thresholds: thresholds,
		emitter:    emitter,
		metrics:    metrics,
		log:        log.With(applogger.String("component", "condition_engine")),
		cfg:        cfg,
		now:        now,
	}
}

// Run executes a cycle immediately and then on every tick until ctx is
// cancelled. A cycle in progress always completes.
func (e *ConditionEngine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.CycleInterval)
	defer ticker.Stop()
	e.log.Info("monitoring loop started", applogger.Duration("interval", e.cfg.CycleInterval))
	for {
		e.RunCycle(context.WithoutCancel(ctx))
		select {
		case <-ctx.Done():
			e.log.Info("monitoring loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// WatchedSymbols returns configured plus the symbols of pending plans,
// including creations still waiting in the command queue.
func (e *ConditionEngine) WatchedSymbols(configured []string) []string {
	out := append([]string(nil), configured...)
	for _, p := range e.registry.ListWithQueued(models.PlanPending, "") {
		out = append(out, p.Symbol)
	}
	return dedupe(out)
}

// RunCycle applies queued commands, expires due plans, refreshes data for
// symbols with pending plans and evaluates every pending plan.
func (e *ConditionEngine) RunCycle(ctx context.Context) CycleReport {
	rep := CycleReport{Started: e.now()}
	defer func() {
		rep.Duration = e.now().Sub(rep.Started)
		e.metrics.RecordLatency("cycle", rep.Duration.Seconds())
	}()

	rep.Applied = e.registry.Apply(rep.Started)
	for _, a := range rep.Applied {
		if a.Err != nil {
			e.log.Warn("plan command rejected",
				applogger.String("kind", string(a.Kind)),
				applogger.String("plan_id", a.PlanID),
				applogger.Error(a.Err),
			)
			continue
		}
		switch a.Kind {
		case CommandCancel:
			e.metrics.RecordPlanTransition(string(models.PlanCancelled))
		case CommandExpire:
			e.metrics.RecordPlanTransition(string(models.PlanExpired))
		}
	}
	rep.Expired = e.registry.ExpireDue(rep.Started)
	for range rep.Expired {
		e.metrics.RecordPlanTransition(string(models.PlanExpired))
	}

	bySymbol := groupBySymbol(e.registry.Pending())
	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	e.refresher.MarkActive(symbols)
	// every refresh of this cycle completes before any plan is evaluated
	rep.Unavailable = e.refresher.RefreshStale(ctx, symbols)

	for _, sym := range symbols {
		plans := bySymbol[sym]
		rep.Evaluated += len(plans)
		executed := e.evaluateSymbol(ctx, sym, plans, rep.Unavailable[sym])
		rep.Executed = append(rep.Executed, executed...)
	}
	return rep
}

func groupBySymbol(plans []*models.Plan) map[string][]*models.Plan {
	out := make(map[string][]*models.Plan)
	for _, p := range plans {
		out[p.Symbol] = append(out[p.Symbol], p)
	}
	return out
}

// evaluateSymbol evaluates all pending plans of one symbol. A panic or error
// here never reaches other symbols.
func (e *ConditionEngine) evaluateSymbol(ctx context.Context, symbol string, plans []*models.Plan, refreshErr error) (executed []string) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.RecordError("panic")
			e.log.Error("symbol evaluation panicked",
				applogger.String("symbol", symbol),
				applogger.Any("panic", r),
			)
		}
	}()

	now := e.now()
	info := e.sessions.Classify(symbol, now)
	if refreshErr != nil {
		e.skipAll(plans, now, "data_unavailable: "+refreshErr.Error(), e.neutralThreshold(ctx, symbol, info))
		return nil
	}
	snap, err := e.snapshots.Snapshot(ctx, symbol)
	if err != nil {
		e.metrics.RecordError(models.ErrorKind(err))
		e.skipAll(plans, now, "snapshot_unavailable: "+err.Error(), e.neutralThreshold(ctx, symbol, info))
		return nil
	}

	profile, hasProfile := e.profiles.Get(symbol)
	calc := e.thresholds.Resolve(ctx, symbol, info.Session, snap.Volatility.RangeRatio)
	e.metrics.RecordEvaluation(symbol, snap.Confluence.Total, calc.Threshold)

	g := guards{
		staleAfter: e.cfg.StaleAfter,
	}
	if hasProfile {
		if profile.AlwaysOpen {
			g.staleAfter = time.Duration(float64(e.cfg.StaleAfter) * e.cfg.AlwaysOpenStaleX)
		}
		g.lowVolume = profile.LowVolume && info.Liquidity == models.LiquidityLow
		if profile.EventSensitive && (info.Liquidity == models.LiquidityHigh || info.Liquidity == models.LiquidityVeryHigh) {
			g.margin = e.cfg.EventMargin
		}
	}

	for _, p := range plans {
		if e.evaluatePlan(ctx, p, snap, info, calc, g, now) {
			executed = append(executed, p.ID)
		}
	}
	return executed
}

type guards struct {
	staleAfter time.Duration
	margin     float64
	lowVolume  bool
}

// verdict is the outcome of checking one plan against one snapshot.
type verdict struct {
	Required float64
	Failed   []string
}

func (v verdict) Ready() bool { return len(v.Failed) == 0 }

// check evaluates every declared condition, the confluence requirement and
// the symbol guards. All checks run so the verdict lists every failure.
func check(p *models.Plan, snap *models.StructuralSnapshot, calc models.ThresholdCalculation, g guards, now time.Time) verdict {
	var v verdict
	if g.staleAfter > 0 {
		if age := now.Sub(snap.AsOf); age > g.staleAfter {
			v.Failed = append(v.Failed, fmt.Sprintf("stale_data: age %s exceeds %s", age.Truncate(time.Second), g.staleAfter))
		}
	}
	if g.lowVolume {
		v.Failed = append(v.Failed, "low_volume_session: execution suppressed in low-liquidity session")
	}

	v.Required = calc.Threshold
	explicit := false
	for _, c := range p.Conditions {
		if m, ok := c.(models.ConfluenceMinCondition); ok {
			if !explicit || m.Min > v.Required {
				v.Required = m.Min
			}
			explicit = true
			continue
		}
		if ok, detail := evaluateCondition(c, snap); !ok {
			v.Failed = append(v.Failed, fmt.Sprintf("%s: %s", c, detail))
		}
	}
	v.Required += g.margin
	if snap.Confluence.Total < v.Required {
		label := "confluence_below_threshold"
		if explicit {
			label = "confluence_below_minimum"
		}
		v.Failed = append(v.Failed, fmt.Sprintf("%s: %.2f < %.2f (threshold %.2f %s, margin %.2f)",
			label, snap.Confluence.Total, v.Required, calc.Threshold, calc.Source, g.margin))
	}
	return v
}

// evaluateCondition is an exhaustive match over the condition variants.
func evaluateCondition(c models.Condition, snap *models.StructuralSnapshot) (bool, string) {
	switch c := c.(type) {
	case models.StructuralFlagCondition:
		return flagHolds(c, snap)
	case models.PriceBandCondition:
		if c.Contains(snap.Close) {
			return true, ""
		}
		return false, fmt.Sprintf("close %g outside band", snap.Close)
	case models.StateMatchCondition:
		got := stateValue(c.Field, snap)
		if got == c.Value {
			return true, ""
		}
		return false, fmt.Sprintf("have %s", orNone(got))
	case models.StrategyMatchCondition:
		if snap.Strategy.Kind == c.Strategy {
			return true, ""
		}
		return false, fmt.Sprintf("have %s", orNone(string(snap.Strategy.Kind)))
	case models.ConfluenceMinCondition:
		if snap.Confluence.Total >= c.Min {
			return true, ""
		}
		return false, fmt.Sprintf("have %.2f", snap.Confluence.Total)
	default:
		return false, models.ErrUnknownCondition.Error()
	}
}

func flagHolds(c models.StructuralFlagCondition, snap *models.StructuralSnapshot) (bool, string) {
	dirOK := func(d models.Direction) bool {
		return c.Direction == models.DirectionNone || d == c.Direction
	}
	confirmed := func(b models.BreakSignal) bool { return b.Confirmed && dirOK(b.Direction) }

	var ok bool
	switch c.Flag {
	case models.FlagCHOCH:
		ok = confirmed(snap.Breaks.CHOCH)
	case models.FlagBOS:
		ok = confirmed(snap.Breaks.BOS)
	case models.FlagCHOCHBOS:
		ok = snap.Breaks.Combined && confirmed(snap.Breaks.CHOCH) && confirmed(snap.Breaks.BOS)
	case models.FlagRejection:
		for _, w := range snap.Wicks {
			if dirOK(w.Direction) {
				ok = true
				break
			}
		}
	case models.FlagOrderBlock:
		for _, ob := range snap.OrderBlocks {
			if dirOK(ob.Direction) {
				ok = true
				break
			}
		}
	default:
		return false, models.ErrUnknownCondition.Error()
	}
	if ok {
		return true, ""
	}
	return false, "not confirmed"
}

func stateValue(f models.StateField, snap *models.StructuralSnapshot) string {
	switch f {
	case models.FieldVolatilityRegime:
		return string(snap.Volatility.Regime)
	case models.FieldLiquidityProximity:
		return string(snap.Liquidity.Proximity)
	case models.FieldMomentumQuality:
		return string(snap.Momentum.Quality)
	case models.FieldStructure:
		return string(snap.Structure.Kind)
	case models.FieldTrendAlignment:
		return string(snap.Trend.Alignment)
	case models.FieldVWAPBand:
		return string(snap.VWAP.Band)
	}
	return ""
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func (e *ConditionEngine) evaluatePlan(
	ctx context.Context,
	p *models.Plan,
	snap *models.StructuralSnapshot,
	info models.SessionInfo,
	calc models.ThresholdCalculation,
	g guards,
	now time.Time,
) bool {
	v := check(p, snap, calc, g, now)
	ev := models.PlanEvaluation{
		PlanID:       p.ID,
		Symbol:       p.Symbol,
		At:           now,
		Decision:     DecisionNotReady,
		FailedChecks: v.Failed,
		Threshold:    &calc,
		Confluence:   &snap.Confluence,
		Strategy:     snap.Strategy.Kind,
	}

	executed := false
	if v.Ready() {
		if err := e.execute(ctx, p, snap, info, calc, now); err != nil {
			ev.Decision = DecisionEmitFailed
			ev.FailedChecks = []string{"emit: " + err.Error()}
		} else {
			ev.Decision = DecisionExecuted
			executed = true
		}
	}
	e.registry.SetEvaluation(ev)
	e.audit(p, snap, info, calc, v, ev.Decision, ev.FailedChecks)
	return executed
}

// execute emits the event first; the plan stays pending when the emitter
// fails and is retried next cycle.
func (e *ConditionEngine) execute(ctx context.Context, p *models.Plan, snap *models.StructuralSnapshot, info models.SessionInfo, calc models.ThresholdCalculation, now time.Time) error {
	ev := models.ExecutionEvent{
		PlanID:     p.ID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		Entry:      p.Entry,
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
		Volume:     p.Volume,
		Session:    info.Session,
		Confluence: snap.Confluence.Total,
		Threshold:  calc.Threshold,
		Strategy:   snap.Strategy.Kind,
		SignalAt:   snap.AsOf,
		EmittedAt:  now,
		LatencyMs:  now.Sub(snap.AsOf).Milliseconds(),
	}
	if err := e.emitter.Emit(ctx, ev); err != nil {
		e.metrics.RecordError("emit")
		return err
	}
	if err := e.registry.Transition(p.ID, models.PlanExecuted, now, "conditions met"); err != nil {
		if errors.Is(err, models.ErrPlanTerminal) {
			e.log.Warn("plan closed during evaluation", applogger.String("plan_id", p.ID), applogger.Error(err))
		}
		return err
	}
	e.metrics.RecordPlanTransition(string(models.PlanExecuted))
	return nil
}

// audit writes the per-plan cycle record with the full threshold and
// confluence breakdown.
func (e *ConditionEngine) audit(p *models.Plan, snap *models.StructuralSnapshot, info models.SessionInfo, calc models.ThresholdCalculation, v verdict, decision string, failed []string) {
	fields := []applogger.Field{
		applogger.String("plan_id", p.ID),
		applogger.String("symbol", p.Symbol),
		applogger.String("side", string(p.Side)),
		applogger.String("decision", decision),
		applogger.String("session", string(info.Session)),
		applogger.String("liquidity", string(info.Liquidity)),
		applogger.Float64("base_confidence", calc.BaseConfidence),
		applogger.Float64("volatility_ratio", calc.VolatilityRatio),
		applogger.Float64("volatility_weight", calc.VolatilityWeight),
		applogger.Float64("vol_adjusted", calc.VolAdjusted),
		applogger.Float64("session_bias", calc.SessionBias),
		applogger.Float64("session_weight", calc.SessionWeight),
		applogger.Float64("raw_threshold", calc.Raw),
		applogger.Float64("advisory_shift", calc.AdvisoryShift),
		applogger.Float64("threshold", calc.Threshold),
		applogger.String("threshold_source", string(calc.Source)),
		applogger.Float64("required", v.Required),
		applogger.Float64("confluence", snap.Confluence.Total),
		applogger.Float64("score_trend", snap.Confluence.Trend),
		applogger.Float64("score_momentum", snap.Confluence.Momentum),
		applogger.Float64("score_structure", snap.Confluence.Structure),
		applogger.Float64("score_volatility", snap.Confluence.Volatility),
		applogger.Float64("score_liquidity", snap.Confluence.Liquidity),
		applogger.String("strategy", string(snap.Strategy.Kind)),
	}
	if len(failed) > 0 {
		fields = append(fields, applogger.Strings("failed", failed))
	}
	e.log.Info("plan evaluated", fields...)
}

// neutralThreshold is the threshold at volatility ratio 1, reported when no
// snapshot exists to measure the real ratio.
func (e *ConditionEngine) neutralThreshold(ctx context.Context, symbol string, info models.SessionInfo) models.ThresholdCalculation {
	return e.thresholds.Resolve(ctx, symbol, info.Session, 1)
}

func (e *ConditionEngine) skipAll(plans []*models.Plan, now time.Time, reason string, calc models.ThresholdCalculation) {
	for _, p := range plans {
		th := calc
		e.registry.SetEvaluation(models.PlanEvaluation{
			PlanID:       p.ID,
			Symbol:       p.Symbol,
			At:           now,
			Decision:     DecisionNotReady,
			FailedChecks: []string{reason},
			Threshold:    &th,
		})
		e.log.Info("plan skipped",
			applogger.String("plan_id", p.ID),
			applogger.String("symbol", p.Symbol),
			applogger.String("decision", DecisionNotReady),
			applogger.String("reason", reason),
			applogger.String("session", string(calc.Session)),
			applogger.Float64("base_confidence", calc.BaseConfidence),
			applogger.Float64("session_bias", calc.SessionBias),
			applogger.Float64("threshold", calc.Threshold),
			applogger.String("threshold_source", string(calc.Source)),
		)
	}
}
