package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mc-fdc-dev/modmail/internal/api/dto"
	"github.com/mc-fdc-dev/modmail/internal/config"
	"github.com/mc-fdc-dev/modmail/internal/service"
	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

// AdminHandler serves the staff-facing operational endpoints.
type AdminHandler struct {
	auth    *service.AuthService
	tickets *service.TicketLookup
	audit   *service.AuditService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(authService *service.AuthService, tickets *service.TicketLookup, audit *service.AuditService) *AdminHandler {
	return &AdminHandler{auth: authService, tickets: tickets, audit: audit}
}

// Login POST /auth/admin/login.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Password) == "" {
		return apperrors.NewValidationError("password required", nil)
	}

	token, signed, err := h.auth.LoginAdmin(c.UserContext(), req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   token.ExpiresAt,
	}})
}

// ListTickets GET /admin/tickets.
func (h *AdminHandler) ListTickets(c *fiber.Ctx) error {
	tickets := h.tickets.ListTickets()
	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, ticket := range tickets {
		items = append(items, dto.NewTicketSummary(ticket))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListTicketEvents GET /admin/tickets/:userID/events.
func (h *AdminHandler) ListTicketEvents(c *fiber.Ctx) error {
	userID := c.Params("userID")
	if !config.IsSnowflake(userID) {
		return apperrors.NewValidationError("invalid user id", map[string]any{"user_id": userID})
	}

	history, err := h.audit.History(c.UserContext(), userID, c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	items := make([]dto.TicketEventResponse, 0, len(history))
	for _, event := range history {
		items = append(items, dto.NewTicketEventResponse(event))
	}
	return c.JSON(fiber.Map{"data": items})
}
