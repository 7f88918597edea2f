package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/monitor"
	"github.com/spec-kit/sla-engine/internal/observability"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// ComplianceHandler exposes the administrative compliance operations:
// triggering a pass out of schedule and escalating a single ticket.
type ComplianceHandler struct {
	monitor *monitor.Monitor
	metrics *observability.Metrics
}

// NewComplianceHandler returns a new handler instance.
func NewComplianceHandler(m *monitor.Monitor, metrics *observability.Metrics) *ComplianceHandler {
	return &ComplianceHandler{monitor: m, metrics: metrics}
}

// RunPass triggers a compliance pass immediately. A pass already in flight
// makes this a no-op, same as an overlapping scheduled tick.
func (h *ComplianceHandler) RunPass(c *fiber.Ctx) error {
	if err := h.monitor.RunOnce(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":  "completed",
		"metrics": h.metrics.ComplianceSnapshot(),
	})
}

type manualEscalateRequest struct {
	InitiatorID string `json:"initiator_id"`
}

// ManualEscalate escalates one ticket on demand.
func (h *ComplianceHandler) ManualEscalate(c *fiber.Ctx) error {
	var req manualEscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.InitiatorID == "" {
		return apperrors.NewValidationError("initiator_id is required", nil)
	}

	ticket, err := h.monitor.ManualEscalate(c.UserContext(), c.Params("id"), req.InitiatorID)
	if err != nil {
		return err
	}
	return c.JSON(ticketResponse(ticket))
}
