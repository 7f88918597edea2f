package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// TicketsHandler exposes the intake and workflow operations.
type TicketsHandler struct {
	intake *service.IntakeService
}

// NewTicketsHandler returns a new handler instance.
func NewTicketsHandler(intake *service.IntakeService) *TicketsHandler {
	return &TicketsHandler{intake: intake}
}

type createTicketRequest struct {
	RequesterID string `json:"requester_id"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	SLALevel    string `json:"sla_level"`
	AutoAssign  bool   `json:"auto_assign"`
}

// Create registers a new ticket.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req createTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	ticket, err := h.intake.CreateTicket(c.UserContext(), service.TicketCreateInput{
		RequesterID: req.RequesterID,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.TicketPriority(req.Priority),
		SLALevel:    domain.SLALevel(req.SLALevel),
		AutoAssign:  req.AutoAssign,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(ticketResponse(ticket))
}

type updateStatusRequest struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution"`
}

// UpdateStatus applies a status transition.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	ticket, err := h.intake.UpdateStatus(c.UserContext(), c.Params("id"),
		domain.TicketStatus(req.Status), req.Resolution)
	if err != nil {
		return err
	}
	return c.JSON(ticketResponse(ticket))
}

func ticketResponse(ticket *domain.Ticket) fiber.Map {
	resp := fiber.Map{
		"id":           ticket.ID,
		"external_key": ticket.ExternalKey,
		"requester_id": ticket.RequesterID,
		"category":     ticket.Category,
		"subcategory":  ticket.Subcategory,
		"title":        ticket.Title,
		"status":       ticket.Status,
		"priority":     ticket.Priority,
		"sla_level":    ticket.SLALevel,
		"created_at":   ticket.CreatedAt,
		"updated_at":   ticket.UpdatedAt,
	}
	if ticket.AssigneeID != nil {
		resp["assignee_id"] = *ticket.AssigneeID
	}
	if ticket.DueDate != nil {
		resp["due_date"] = *ticket.DueDate
	}
	if ticket.ClosedAt != nil {
		resp["closed_at"] = *ticket.ClosedAt
	}
	if ticket.Resolution != "" {
		resp["resolution"] = ticket.Resolution
	}
	return resp
}
