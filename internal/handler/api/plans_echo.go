package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	domsvc "PlanSentry/internal/domain/service"
	"PlanSentry/internal/services/threshold"
	"PlanSentry/internal/usecase"
	xhttp "PlanSentry/pkg/http"
	"PlanSentry/pkg/http/middleware"
	applogger "PlanSentry/pkg/logger"
	"PlanSentry/pkg/util"
)

// ProfileReloader re-reads asset profiles from their source.
type ProfileReloader interface {
	Reload() error
	Symbols() []string
}

// PlanHandler exposes plans, snapshots, thresholds and outcomes over Echo.
type PlanHandler struct {
	plans      *usecase.PlanService
	refresher  domsvc.Refresher
	snapshots  domsvc.SnapshotProvider
	sessions   domsvc.SessionProvider
	thresholds *usecase.ThresholdResolver
	outcomes   *usecase.OutcomeRecorder
	profiles   ProfileReloader
	bars       *usecase.BarsUseCase
	limiter    middleware.KeyedLimiter
	now        func() time.Time
	l          *applogger.Logger
}

type HandlerOption func(*PlanHandler)

// WithRateLimiter throttles every /api route per client.
func WithRateLimiter(lim middleware.KeyedLimiter) HandlerOption {
	return func(h *PlanHandler) { h.limiter = lim }
}

// WithBars exposes cached bar windows under /api/bars.
func WithBars(uc *usecase.BarsUseCase) HandlerOption {
	return func(h *PlanHandler) { h.bars = uc }
}

func WithClock(now func() time.Time) HandlerOption {
	return func(h *PlanHandler) { h.now = now }
}

func NewPlanHandler(
	plans *usecase.PlanService,
	refresher domsvc.Refresher,
	snapshots domsvc.SnapshotProvider,
	sessions domsvc.SessionProvider,
	thresholds *usecase.ThresholdResolver,
	outcomes *usecase.OutcomeRecorder,
	profiles ProfileReloader,
	log *applogger.Logger,
	opts ...HandlerOption,
) *PlanHandler {
	h := &PlanHandler{
		plans:      plans,
		refresher:  refresher,
		snapshots:  snapshots,
		sessions:   sessions,
		thresholds: thresholds,
		outcomes:   outcomes,
		profiles:   profiles,
		now:        time.Now,
		l:          log.With(applogger.String("component", "api")),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// RegisterRoutes registers the /api routes on e.
func (h *PlanHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	if h.limiter != nil {
		g.Use(middleware.RateLimit(h.limiter, h.l))
	}

	g.POST("/plans", h.CreatePlan)
	g.GET("/plans", h.ListPlans)
	g.GET("/plans/:id", h.GetPlan)
	g.DELETE("/plans/:id", h.CancelPlan)

	g.GET("/snapshots/:symbol", h.Snapshot)
	g.GET("/threshold", h.Threshold)
	if h.bars != nil {
		g.GET("/bars/:symbol", h.Bars)
	}

	g.POST("/outcomes", h.RecordOutcome)
	g.GET("/outcomes", h.ListOutcomes)

	g.POST("/profiles/reload", h.ReloadProfiles)
}

// PlanView is the JSON form of a plan.
type PlanView struct {
	ID          string                 `json:"id"`
	Symbol      string                 `json:"symbol"`
	Side        models.Side            `json:"side"`
	Entry       float64                `json:"entry"`
	StopLoss    float64                `json:"stop_loss"`
	TakeProfit  float64                `json:"take_profit"`
	Volume      float64                `json:"volume"`
	RiskReward  float64                `json:"risk_reward"`
	Conditions  []models.ConditionSpec `json:"conditions"`
	Status      models.PlanStatus      `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	CreatedBy   string                 `json:"created_by,omitempty"`
	ExpiresAt   *time.Time             `json:"expires_at,omitempty"`
	Notes       string                 `json:"notes,omitempty"`
	ClosedAt    *time.Time             `json:"closed_at,omitempty"`
	CloseReason string                 `json:"close_reason,omitempty"`
	Evaluation  *models.PlanEvaluation `json:"last_evaluation,omitempty"`
}

func toPlanView(p *models.Plan) PlanView {
	v := PlanView{
		ID:          p.ID,
		Symbol:      p.Symbol,
		Side:        p.Side,
		Entry:       p.Entry,
		StopLoss:    p.StopLoss,
		TakeProfit:  p.TakeProfit,
		Volume:      p.Volume,
		RiskReward:  p.RiskReward(),
		Conditions:  make([]models.ConditionSpec, 0, len(p.Conditions)),
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		CreatedBy:   p.CreatedBy,
		Notes:       p.Notes,
		CloseReason: p.CloseReason,
	}
	for _, c := range p.Conditions {
		v.Conditions = append(v.Conditions, c.Spec())
	}
	if !p.ExpiresAt.IsZero() {
		t := p.ExpiresAt
		v.ExpiresAt = &t
	}
	if !p.ClosedAt.IsZero() {
		t := p.ClosedAt
		v.ClosedAt = &t
	}
	return v
}

func (h *PlanHandler) CreatePlan(c echo.Context) error {
	req := new(models.CreatePlanRequest)
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.l.Warn("plans.create invalid_request")
		return xhttp.BadRequestResponse(c, verr)
	}
	createdBy := c.Request().Header.Get("X-Requested-By")
	if createdBy == "" {
		createdBy = "api"
	}
	p, err := h.plans.Create(*req, createdBy)
	if err != nil {
		h.l.Warn("plans.create rejected", applogger.String("symbol", req.Symbol), applogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	h.l.Info("plans.create queued",
		applogger.String("plan_id", p.ID),
		applogger.String("symbol", p.Symbol),
		applogger.String("side", string(p.Side)),
		applogger.Int("conditions", len(p.Conditions)),
	)
	return xhttp.CreatedResponse(c, toPlanView(p))
}

func (h *PlanHandler) ListPlans(c echo.Context) error {
	req := new(models.PlanListRequest)
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	plans := h.plans.List(models.PlanStatus(req.Status), req.Symbol)
	rows := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, toPlanView(p))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PlanHandler) GetPlan(c echo.Context) error {
	p, err := h.plans.Get(c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	v := toPlanView(p)
	if ev, ok := h.plans.Evaluation(p.ID); ok {
		v.Evaluation = &ev
	}
	return xhttp.SuccessResponse(c, v)
}

// CancelPlan queues the cancellation; the engine applies it at the start of
// its next cycle.
func (h *PlanHandler) CancelPlan(c echo.Context) error {
	id := c.Param("id")
	reason := c.QueryParam("reason")
	if reason == "" {
		reason = "cancelled via api"
	}
	if err := h.plans.Cancel(id, reason); err != nil {
		h.l.Warn("plans.cancel rejected", applogger.String("plan_id", id), applogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	h.l.Info("plans.cancel queued", applogger.String("plan_id", id))
	return xhttp.AcceptedResponse(c, map[string]string{"id": id, "status": "cancel_queued"})
}

// Snapshot refreshes the symbol if its window is behind, then returns the
// current structural snapshot.
func (h *PlanHandler) Snapshot(c echo.Context) error {
	symbol := util.NormalizeSymbol(c.Param("symbol"))
	ctx := c.Request().Context()
	if h.refresher != nil {
		if errs := h.refresher.RefreshStale(ctx, []string{symbol}); errs[symbol] != nil {
			h.l.Warn("snapshots.refresh failed", applogger.String("symbol", symbol), applogger.Error(errs[symbol]))
		}
	}
	snap, err := h.snapshots.Snapshot(ctx, symbol)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, snap)
}

// ThresholdView bundles the session classification with the threshold.
type ThresholdView struct {
	Session   models.SessionInfo          `json:"session"`
	Threshold models.ThresholdCalculation `json:"threshold"`
	Summary   string                      `json:"summary"`
}

func (h *PlanHandler) Threshold(c echo.Context) error {
	req := new(models.ThresholdRequest)
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := util.NormalizeSymbol(req.Symbol)
	at := h.now().UTC()
	if req.At != "" {
		t, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("at must be RFC3339").WithError(err))
		}
		at = t.UTC()
	}
	ctx := c.Request().Context()
	vr := req.VolatilityRatio
	if vr == 0 {
		vr = 1
		if snap, err := h.snapshots.Snapshot(ctx, symbol); err == nil && snap.Volatility.RangeRatio > 0 {
			vr = snap.Volatility.RangeRatio
		}
	}
	info := h.sessions.Classify(symbol, at)
	calc := h.thresholds.Resolve(ctx, symbol, info.Session, vr)
	return xhttp.SuccessResponse(c, ThresholdView{Session: info, Threshold: calc, Summary: threshold.String(calc)})
}

// Bars returns the cached window for a symbol.
// Query: tf (1m|5m|15m|1h), limit, from, to.
func (h *PlanHandler) Bars(c echo.Context) error {
	p := usecase.GetBarsParams{
		Symbol:    c.Param("symbol"),
		Timeframe: domrepo.Timeframe(c.QueryParam("tf")),
		Limit:     xhttp.ParseIntDefault(c.QueryParam("limit"), 0),
	}
	var err error
	if p.From, err = xhttp.QueryTime(c, "from"); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if p.To, err = xhttp.QueryTime(c, "to"); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	res, err := h.bars.GetBars(c.Request().Context(), p)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PlanHandler) RecordOutcome(c echo.Context) error {
	req := new(models.OutcomeRequest)
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	o := h.outcomes.FromRequest(*req)
	if o.Session == "" {
		o.Session = h.sessions.Classify(o.Symbol, o.RecordedAt).Session
	}
	if err := h.outcomes.Record(c.Request().Context(), o); err != nil {
		h.l.Error("outcomes.record failed", applogger.String("plan_id", o.PlanID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("outcome store unavailable").WithError(err))
	}
	return xhttp.CreatedResponse(c, o)
}

func (h *PlanHandler) ListOutcomes(c echo.Context) error {
	symbol := util.NormalizeSymbol(c.QueryParam("symbol"))
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 50)
	rows, err := h.outcomes.Recent(c.Request().Context(), symbol, limit)
	if err != nil {
		h.l.Error("outcomes.list failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("outcome store unavailable").WithError(err))
	}
	if rows == nil {
		rows = []models.SignalOutcome{}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PlanHandler) ReloadProfiles(c echo.Context) error {
	if err := h.profiles.Reload(); err != nil {
		h.l.Error("profiles.reload failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnprocessableError("profile reload failed").WithError(err))
	}
	symbols := h.profiles.Symbols()
	h.l.Info("profiles.reload ok", applogger.Strings("symbols", symbols))
	return xhttp.SuccessResponse(c, map[string]interface{}{"symbols": symbols})
}

// toAppError maps domain failures onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrPlanNotFound):
		appErr = xhttp.NotFoundError("plan not found")
	case errors.Is(err, models.ErrPlanTerminal), errors.Is(err, usecase.ErrPlanExists):
		appErr = xhttp.ConflictError(err.Error())
	case errors.Is(err, models.ErrInsufficientData), errors.Is(err, models.ErrStaleData):
		appErr = xhttp.UnprocessableError(err.Error())
	case errors.Is(err, models.ErrDataUnavailable), errors.Is(err, models.ErrTransientFetch),
		errors.Is(err, usecase.ErrCommandQueueFull):
		appErr = xhttp.UnavailableError(err.Error())
	case errors.Is(err, models.ErrUnknownCondition), errors.Is(err, usecase.ErrInvalidPlan),
		errors.Is(err, usecase.ErrInvalidBarQuery):
		appErr = xhttp.BadRequestError(err.Error())
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
	return appErr.WithError(err)
}
