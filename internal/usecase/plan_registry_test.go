package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PlanSentry/internal/domain/models"
)

func newPlan(id, symbol string, created time.Time) *models.Plan {
	return &models.Plan{ID: id, Symbol: symbol, Side: models.SideBuy, Status: models.PlanPending, CreatedAt: created}
}

func TestRegistryQueuesUntilApply(t *testing.T) {
	r := NewPlanRegistry(8)
	require.NoError(t, r.SubmitCreate(newPlan("a", "BTCUSD", testNow)))

	assert.Empty(t, r.Pending(), "not evaluable before the cycle applies it")
	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, models.PlanPending, got.Status)
	assert.Len(t, r.ListWithQueued(models.PlanPending, ""), 1)
	assert.Equal(t, 1, r.Counts()[models.PlanPending])

	applied := r.Apply(testNow)
	require.Len(t, applied, 1)
	assert.NoError(t, applied[0].Err)
	assert.Len(t, r.Pending(), 1)
	assert.Equal(t, 1, r.Counts()[models.PlanPending])
	assert.Empty(t, r.Apply(testNow))
}

func TestRegistryRejectsDuplicatesAndUnknown(t *testing.T) {
	r := NewPlanRegistry(8)
	require.NoError(t, r.SubmitCreate(newPlan("a", "BTCUSD", testNow)))
	assert.Error(t, r.SubmitCreate(newPlan("a", "BTCUSD", testNow)))
	r.Apply(testNow)
	assert.Error(t, r.SubmitCreate(newPlan("a", "BTCUSD", testNow)))

	assert.ErrorIs(t, r.SubmitCancel("missing", ""), models.ErrPlanNotFound)
	_, err := r.Get("missing")
	assert.ErrorIs(t, err, models.ErrPlanNotFound)
}

func TestRegistryCancelOfQueuedPlanAppliesInOrder(t *testing.T) {
	r := NewPlanRegistry(8)
	require.NoError(t, r.SubmitCreate(newPlan("a", "BTCUSD", testNow)))
	require.NoError(t, r.SubmitCancel("a", "changed my mind"))

	applied := r.Apply(testNow)
	require.Len(t, applied, 2)
	assert.Equal(t, CommandCreate, applied[0].Kind)
	assert.Equal(t, CommandCancel, applied[1].Kind)
	p, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, models.PlanCancelled, p.Status)
	assert.Equal(t, "changed my mind", p.CloseReason)

	assert.ErrorIs(t, r.SubmitCancel("a", ""), models.ErrPlanTerminal)
	assert.ErrorIs(t, r.SubmitExpire("a", ""), models.ErrPlanTerminal)
}

func TestRegistryTerminalIsFinal(t *testing.T) {
	r := NewPlanRegistry(8)
	require.NoError(t, r.SubmitCreate(newPlan("a", "BTCUSD", testNow)))
	r.Apply(testNow)

	require.NoError(t, r.Transition("a", models.PlanExecuted, testNow, "conditions met"))
	assert.ErrorIs(t, r.Transition("a", models.PlanCancelled, testNow, ""), models.ErrPlanTerminal)
	assert.ErrorIs(t, r.Transition("a", models.PlanExecuted, testNow, ""), models.ErrPlanTerminal)
	p, _ := r.Get("a")
	assert.Equal(t, models.PlanExecuted, p.Status)
	assert.Equal(t, testNow, p.ClosedAt)
}

func TestRegistryQueueFull(t *testing.T) {
	r := NewPlanRegistry(1)
	require.NoError(t, r.SubmitCreate(newPlan("a", "BTCUSD", testNow)))
	assert.ErrorIs(t, r.SubmitCreate(newPlan("b", "BTCUSD", testNow)), ErrCommandQueueFull)
	_, err := r.Get("b")
	assert.ErrorIs(t, err, models.ErrPlanNotFound)
}

func TestRegistryExpireDueAndList(t *testing.T) {
	r := NewPlanRegistry(8)
	old := newPlan("old", "XAUUSD", testNow.Add(-time.Hour))
	old.ExpiresAt = testNow.Add(-time.Minute)
	require.NoError(t, r.SubmitCreate(old))
	require.NoError(t, r.SubmitCreate(newPlan("new", "BTCUSD", testNow)))
	r.Apply(testNow)

	assert.Equal(t, []string{"old"}, r.ExpireDue(testNow))
	assert.Empty(t, r.ExpireDue(testNow))

	all := r.List("", "")
	require.Len(t, all, 2)
	assert.Equal(t, "old", all[0].ID)
	assert.Len(t, r.List(models.PlanExpired, ""), 1)
	assert.Len(t, r.List("", "BTCUSD"), 1)

	all[1].Status = models.PlanCancelled
	p, _ := r.Get("new")
	assert.Equal(t, models.PlanPending, p.Status, "List returns copies")
}

func TestBuildPlan(t *testing.T) {
	min72 := 72.0
	tests := []struct {
		name    string
		req     models.CreatePlanRequest
		wantErr bool
		conds   int
	}{
		{
			name:  "buy with typed and map conditions",
			req:   models.CreatePlanRequest{Symbol: " xauusdc ", Side: "BUY", Entry: 2650, StopLoss: 2640, TakeProfit: 2680, Conditions: []models.ConditionSpec{{Kind: models.KindConfluenceMin, Min: &min72}}, ConditionsMap: map[string]interface{}{"choch_bull": true, "price_near": 2650.0, "tolerance": 5.0}},
			conds: 3,
		},
		{
			name: "sell geometry",
			req:  models.CreatePlanRequest{Symbol: "BTCUSD", Side: "sell", Entry: 100, StopLoss: 105, TakeProfit: 90},
		},
		{
			name:    "buy with inverted stops",
			req:     models.CreatePlanRequest{Symbol: "BTCUSD", Side: "buy", Entry: 100, StopLoss: 105, TakeProfit: 90},
			wantErr: true,
		},
		{
			name:    "unknown side",
			req:     models.CreatePlanRequest{Symbol: "BTCUSD", Side: "hold", Entry: 100, StopLoss: 95, TakeProfit: 110},
			wantErr: true,
		},
		{
			name:    "unknown map condition",
			req:     models.CreatePlanRequest{Symbol: "BTCUSD", Side: "buy", Entry: 100, StopLoss: 95, TakeProfit: 110, ConditionsMap: map[string]interface{}{"moon_phase": "full"}},
			wantErr: true,
		},
		{
			name:    "bad expiry",
			req:     models.CreatePlanRequest{Symbol: "BTCUSD", Side: "buy", Entry: 100, StopLoss: 95, TakeProfit: 110, ExpiresIn: "soon"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := BuildPlan(tt.req, testNow)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.PlanPending, p.Status)
			assert.Len(t, p.Conditions, tt.conds)
			assert.InDelta(t, 0.01, p.Volume, 1e-12)
		})
	}

	p, err := BuildPlan(models.CreatePlanRequest{Symbol: "xauusd.m", Side: "buy", Entry: 100, StopLoss: 95, TakeProfit: 110, ExpiresIn: "4h"}, testNow)
	require.NoError(t, err)
	assert.Equal(t, "XAUUSD", p.Symbol)
	assert.Equal(t, testNow.Add(4*time.Hour), p.ExpiresAt)
}

func TestPlanServiceCreateAndCancel(t *testing.T) {
	r := NewPlanRegistry(8)
	svc := NewPlanService(r, fixedClock(testNow))
	p, err := svc.Create(models.CreatePlanRequest{Symbol: "BTCUSD", Side: "buy", Entry: 100, StopLoss: 95, TakeProfit: 110}, "api")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "api", p.CreatedBy)

	require.NoError(t, svc.Cancel(p.ID, "operator"))
	r.Apply(testNow)
	got, err := svc.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanCancelled, got.Status)
	assert.Len(t, svc.List(models.PlanCancelled, "btcusd"), 1)
}
