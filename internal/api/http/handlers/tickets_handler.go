package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bridge/internal/api/dto"
	"github.com/spec-kit/ticket-bridge/internal/domain"
	"github.com/spec-kit/ticket-bridge/internal/events"
	"github.com/spec-kit/ticket-bridge/internal/service"
	apperrors "github.com/spec-kit/ticket-bridge/pkg/util"
)

// TicketsHandler serves the agent dashboard JSON API. All lifecycle
// mutations go through the same routing engine as the webhook and the
// terminal.
type TicketsHandler struct {
	engine  *service.Engine
	tempDir string
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(engine *service.Engine, tempDir string) *TicketsHandler {
	return &TicketsHandler{engine: engine, tempDir: tempDir}
}

// ListTickets GET /dashboard/tickets?status=open|closed.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	var filter domain.TicketStatus
	switch c.Query("status") {
	case "open":
		filter = domain.TicketStatusOpen
	case "closed":
		filter = domain.TicketStatusClosed
	case "":
	default:
		return apperrors.NewValidationError("status must be open or closed", nil)
	}

	summaries, stats := h.engine.ListTickets(filter)
	return c.JSON(fiber.Map{"data": dto.TicketListResponse{
		Stats:   stats,
		Tickets: summaries,
	}})
}

// GetTicket GET /dashboard/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.engine.GetTicket(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// Reply POST /dashboard/tickets/:id/reply.
func (h *TicketsHandler) Reply(c *fiber.Ctx) error {
	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Message) == "" {
		return apperrors.NewValidationError("message cannot be empty", nil)
	}

	msg, err := h.engine.Reply(c.UserContext(), events.OriginWeb, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"author":    msg.Author,
		"body":      msg.Body,
		"timestamp": msg.Timestamp,
	}})
}

// SendFile POST /dashboard/tickets/:id/files (multipart). The upload is
// staged to the temp dir and handed to the engine, which normalizes
// audio and performs the send.
func (h *TicketsHandler) SendFile(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("no file uploaded", nil)
	}
	if fileHeader.Filename == "" {
		return apperrors.NewValidationError("no file selected", nil)
	}
	caption := c.FormValue("caption")

	stagedPath := filepath.Join(h.tempDir, filepath.Base(fileHeader.Filename))
	if err := c.SaveFile(fileHeader, stagedPath); err != nil {
		return apperrors.NewInternalError(err)
	}
	defer os.Remove(stagedPath)

	msg, err := h.engine.SendFile(c.UserContext(), events.OriginWeb, c.Params("id"), stagedPath, caption)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"kind":      msg.Kind,
		"file_name": msg.Media.FileName,
		"file_url":  msg.Media.URL,
		"timestamp": msg.Timestamp,
	}})
}

// CloseTicket POST /dashboard/tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	if err := h.engine.Close(c.UserContext(), events.OriginWeb, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "closed"}})
}
