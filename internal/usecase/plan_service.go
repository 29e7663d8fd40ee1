package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"PlanSentry/internal/domain/models"
	"PlanSentry/pkg/util"
)

// ErrInvalidPlan wraps request validation failures from BuildPlan.
var ErrInvalidPlan = errors.New("invalid plan")

// PlanService turns creation requests into plans and queues commands on the
// registry. It is shared by the HTTP API and the Kafka command handler.
type PlanService struct {
	registry *PlanRegistry
	now      func() time.Time
	newID    func() string
}

func NewPlanService(registry *PlanRegistry, now func() time.Time) *PlanService {
	if now == nil {
		now = time.Now
	}
	return &PlanService{registry: registry, now: now, newID: uuid.NewString}
}

// Create validates the request and queues the plan. The returned plan is
// pending and becomes evaluable on the next cycle.
func (s *PlanService) Create(req models.CreatePlanRequest, createdBy string) (*models.Plan, error) {
	return s.CreateWithID(s.newID(), req, createdBy)
}

// CreateWithID is Create with a caller-chosen id, used by producers that
// replay commands and need idempotent creation.
func (s *PlanService) CreateWithID(id string, req models.CreatePlanRequest, createdBy string) (*models.Plan, error) {
	if id == "" {
		id = s.newID()
	}
	p, err := BuildPlan(req, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	p.ID = id
	p.CreatedBy = createdBy
	if err := s.registry.SubmitCreate(p); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

func (s *PlanService) Cancel(id, reason string) error {
	return s.registry.SubmitCancel(id, reason)
}

func (s *PlanService) Expire(id, reason string) error {
	return s.registry.SubmitExpire(id, reason)
}

func (s *PlanService) Get(id string) (*models.Plan, error) {
	return s.registry.Get(id)
}

func (s *PlanService) Evaluation(id string) (models.PlanEvaluation, bool) {
	return s.registry.Evaluation(id)
}

func (s *PlanService) List(status models.PlanStatus, symbol string) []*models.Plan {
	if symbol != "" {
		symbol = util.NormalizeSymbol(symbol)
	}
	return s.registry.ListWithQueued(status, symbol)
}

// BuildPlan validates price geometry and parses declared conditions. Typed
// condition specs and the flat map form may be combined.
func BuildPlan(req models.CreatePlanRequest, now time.Time) (*models.Plan, error) {
	symbol := util.NormalizeSymbol(req.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	side := models.Side(strings.ToLower(req.Side))
	if side != models.SideBuy && side != models.SideSell {
		return nil, fmt.Errorf("side %q must be buy or sell", req.Side)
	}
	if req.Entry <= 0 || req.StopLoss <= 0 || req.TakeProfit <= 0 {
		return nil, fmt.Errorf("entry, stop_loss and take_profit must be positive")
	}
	switch side {
	case models.SideBuy:
		if !(req.StopLoss < req.Entry && req.Entry < req.TakeProfit) {
			return nil, fmt.Errorf("buy plan needs stop_loss < entry < take_profit")
		}
	case models.SideSell:
		if !(req.TakeProfit < req.Entry && req.Entry < req.StopLoss) {
			return nil, fmt.Errorf("sell plan needs take_profit < entry < stop_loss")
		}
	}
	volume := req.Volume
	if volume <= 0 {
		volume = 0.01
	}

	conds, err := models.ParseConditions(req.Conditions)
	if err != nil {
		return nil, err
	}
	if len(req.ConditionsMap) > 0 {
		more, err := models.ConditionsFromMap(req.ConditionsMap)
		if err != nil {
			return nil, err
		}
		conds = append(conds, more...)
	}

	p := &models.Plan{
		Symbol:     symbol,
		Side:       side,
		Entry:      req.Entry,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Volume:     volume,
		Conditions: conds,
		Status:     models.PlanPending,
		CreatedAt:  now,
		Notes:      req.Notes,
	}
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("expires_in %q is not a positive duration", req.ExpiresIn)
		}
		p.ExpiresAt = now.Add(d)
	}
	return p, nil
}
