package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	xhttp "PlanSentry/pkg/http"
	pkgkafka "PlanSentry/pkg/kafka"
	applogger "PlanSentry/pkg/logger"
)

// PlanCommand is the message schema of the plan command topic:
//
//	{"op":"create","plan_id":"...","plan":{...},"source":"chat"}
//	{"op":"cancel","plan_id":"...","reason":"..."}
//	{"op":"expire","plan_id":"..."}
type PlanCommand struct {
	Op     string                    `json:"op" validate:"required,oneof=create cancel expire"`
	PlanID string                    `json:"plan_id"`
	Plan   *models.CreatePlanRequest `json:"plan" validate:"-"`
	Reason string                    `json:"reason"`
	Source string                    `json:"source" default:"kafka"`
}

// PlanCommandHandler queues plan commands received from Kafka. Commands for
// unknown, duplicate or already closed plans are acknowledged and logged so
// replays stay idempotent.
type PlanCommandHandler struct {
	topic   string
	plans   *PlanService
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewPlanCommandHandler(topic string, plans *PlanService, metrics domrepo.Metrics, log *applogger.Logger) *PlanCommandHandler {
	return &PlanCommandHandler{
		topic:   topic,
		plans:   plans,
		metrics: metrics,
		log:     log.With(applogger.String("component", "plan_command_handler")),
	}
}

func (h *PlanCommandHandler) Topic() string { return h.topic }

func (h *PlanCommandHandler) Handle(ctx context.Context, b []byte) error {
	var cmd PlanCommand
	if err := json.Unmarshal(b, &cmd); err != nil {
		h.metrics.RecordError("command_unmarshal")
		return fmt.Errorf("decode plan command: %w", err)
	}
	if err := xhttp.ValidateStruct(&cmd); err != nil {
		h.metrics.RecordError("command_invalid")
		return fmt.Errorf("invalid plan command: %w", err)
	}

	fields := []applogger.Field{
		applogger.String("op", cmd.Op),
		applogger.String("plan_id", cmd.PlanID),
		applogger.String("trace_id", pkgkafka.TraceID(ctx)),
	}
	var err error
	switch cmd.Op {
	case "create":
		if cmd.Plan == nil {
			return errors.New("create command without plan")
		}
		if err = xhttp.ValidateStruct(cmd.Plan); err != nil {
			h.metrics.RecordError("command_invalid")
			return fmt.Errorf("invalid plan: %w", err)
		}
		var p *models.Plan
		p, err = h.plans.CreateWithID(cmd.PlanID, *cmd.Plan, cmd.Source)
		if err == nil {
			fields = append(fields, applogger.String("symbol", p.Symbol))
			fields[1] = applogger.String("plan_id", p.ID)
		}
	case "cancel":
		err = h.plans.Cancel(cmd.PlanID, cmd.Reason)
	case "expire":
		err = h.plans.Expire(cmd.PlanID, cmd.Reason)
	}

	switch {
	case err == nil:
		h.log.Info("plan command queued", fields...)
		return nil
	case errors.Is(err, models.ErrPlanNotFound), errors.Is(err, models.ErrPlanTerminal), errors.Is(err, ErrPlanExists):
		h.log.Warn("plan command ignored", append(fields, applogger.Error(err))...)
		return nil
	default:
		h.metrics.RecordError("command_" + cmd.Op)
		return err
	}
}

var _ pkgkafka.MessageHandler = (*PlanCommandHandler)(nil)
