package usecase

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"PlanSentry/internal/domain/models"
)

// ErrCommandQueueFull is returned when external commands arrive faster than
// cycles drain them.
var ErrCommandQueueFull = errors.New("plan command queue full")

// ErrPlanExists is returned when a plan id is submitted twice.
var ErrPlanExists = errors.New("plan already exists")

type CommandKind string

const (
	CommandCreate CommandKind = "create"
	CommandCancel CommandKind = "cancel"
	CommandExpire CommandKind = "expire"
)

type planCommand struct {
	kind   CommandKind
	plan   *models.Plan
	id     string
	reason string
}

// AppliedCommand describes one command applied at the start of a cycle.
type AppliedCommand struct {
	Kind   CommandKind
	PlanID string
	Err    error
}

// PlanRegistry owns every plan. Status changes happen only on the engine
// goroutine through Apply, ExpireDue and Transition; external callers
// enqueue commands. The mutex lets readers take consistent copies.
type PlanRegistry struct {
	mu     sync.RWMutex
	plans  map[string]*models.Plan
	queued map[string]*models.Plan
	evals  map[string]models.PlanEvaluation

	commands chan planCommand
}

func NewPlanRegistry(queueSize int) *PlanRegistry {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &PlanRegistry{
		plans:    make(map[string]*models.Plan),
		queued:   make(map[string]*models.Plan),
		evals:    make(map[string]models.PlanEvaluation),
		commands: make(chan planCommand, queueSize),
	}
}

// SubmitCreate queues a new plan. It is visible to readers as pending
// immediately and becomes eligible for evaluation on the next cycle.
func (r *PlanRegistry) SubmitCreate(p *models.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[p.ID]; ok {
		return fmt.Errorf("plan %s: %w", p.ID, ErrPlanExists)
	}
	if _, ok := r.queued[p.ID]; ok {
		return fmt.Errorf("plan %s queued: %w", p.ID, ErrPlanExists)
	}
	select {
	case r.commands <- planCommand{kind: CommandCreate, plan: p.Clone(), id: p.ID}:
		r.queued[p.ID] = p.Clone()
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// SubmitCancel queues a cancellation. Unknown and already terminal plans
// are rejected up front.
func (r *PlanRegistry) SubmitCancel(id, reason string) error {
	return r.submitClose(CommandCancel, id, reason)
}

// SubmitExpire queues an explicit expiry.
func (r *PlanRegistry) SubmitExpire(id, reason string) error {
	return r.submitClose(CommandExpire, id, reason)
}

func (r *PlanRegistry) submitClose(kind CommandKind, id, reason string) error {
	r.mu.RLock()
	p, ok := r.plans[id]
	if !ok {
		p, ok = r.queued[id]
	}
	var status models.PlanStatus
	if ok {
		status = p.Status
	}
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("plan %s: %w", id, models.ErrPlanNotFound)
	}
	if status.Terminal() {
		return fmt.Errorf("plan %s is %s: %w", id, status, models.ErrPlanTerminal)
	}
	select {
	case r.commands <- planCommand{kind: kind, id: id, reason: reason}:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Apply drains queued commands in arrival order.
func (r *PlanRegistry) Apply(now time.Time) []AppliedCommand {
	var out []AppliedCommand
	for {
		select {
		case cmd := <-r.commands:
			out = append(out, r.apply(cmd, now))
		default:
			return out
		}
	}
}

func (r *PlanRegistry) apply(cmd planCommand, now time.Time) AppliedCommand {
	res := AppliedCommand{Kind: cmd.kind, PlanID: cmd.id}
	switch cmd.kind {
	case CommandCreate:
		r.mu.Lock()
		r.plans[cmd.id] = cmd.plan
		delete(r.queued, cmd.id)
		r.mu.Unlock()
	case CommandCancel:
		res.Err = r.Transition(cmd.id, models.PlanCancelled, now, reasonOr(cmd.reason, "cancelled"))
	case CommandExpire:
		res.Err = r.Transition(cmd.id, models.PlanExpired, now, reasonOr(cmd.reason, "expired"))
	}
	return res
}

func reasonOr(reason, def string) string {
	if reason == "" {
		return def
	}
	return reason
}

// ExpireDue expires pending plans whose expiry has passed and returns
// their ids.
func (r *PlanRegistry) ExpireDue(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, p := range r.plans {
		if p.Status == models.PlanPending && p.Expired(now) {
			if err := p.Transition(models.PlanExpired, now, "expires_at reached"); err == nil {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// Transition moves a plan to a terminal status exactly once.
func (r *PlanRegistry) Transition(id string, to models.PlanStatus, at time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return fmt.Errorf("plan %s: %w", id, models.ErrPlanNotFound)
	}
	return p.Transition(to, at, reason)
}

// Pending returns copies of pending plans, oldest first.
func (r *PlanRegistry) Pending() []*models.Plan {
	return r.List(models.PlanPending, "")
}

// List returns copies of applied plans filtered by status and symbol, oldest
// first, followed by queued creations when pending plans are requested.
func (r *PlanRegistry) List(status models.PlanStatus, symbol string) []*models.Plan {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Plan
	for _, p := range r.plans {
		if (status == "" || p.Status == status) && (symbol == "" || p.Symbol == symbol) {
			out = append(out, p.Clone())
		}
	}
	sortPlans(out)
	return out
}

// ListWithQueued is List plus plans still waiting in the command queue.
func (r *PlanRegistry) ListWithQueued(status models.PlanStatus, symbol string) []*models.Plan {
	out := r.List(status, symbol)
	if status != "" && status != models.PlanPending {
		return out
	}
	r.mu.RLock()
	var queued []*models.Plan
	for _, p := range r.queued {
		if symbol == "" || p.Symbol == symbol {
			queued = append(queued, p.Clone())
		}
	}
	r.mu.RUnlock()
	sortPlans(queued)
	return append(out, queued...)
}

func sortPlans(ps []*models.Plan) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}

// Get returns a copy of the plan, including queued ones.
func (r *PlanRegistry) Get(id string) (*models.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.plans[id]; ok {
		return p.Clone(), nil
	}
	if p, ok := r.queued[id]; ok {
		return p.Clone(), nil
	}
	return nil, fmt.Errorf("plan %s: %w", id, models.ErrPlanNotFound)
}

func (r *PlanRegistry) SetEvaluation(ev models.PlanEvaluation) {
	r.mu.Lock()
	r.evals[ev.PlanID] = ev
	r.mu.Unlock()
}

// Evaluation returns the last engine decision for a plan.
func (r *PlanRegistry) Evaluation(id string) (models.PlanEvaluation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.evals[id]
	return ev, ok
}

// Counts returns the number of plans per status.
func (r *PlanRegistry) Counts() map[models.PlanStatus]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[models.PlanStatus]int)
	for _, p := range r.plans {
		out[p.Status]++
	}
	out[models.PlanPending] += len(r.queued)
	return out
}
