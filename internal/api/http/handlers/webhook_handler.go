package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/ingest"
	"github.com/spec-kit/ticket-bridge/internal/service"
)

// WebhookHandler receives Green API push notifications.
type WebhookHandler struct {
	classifier *ingest.Classifier
	deduper    *ingest.ReceiptDeduper
	engine     *service.Engine
	logger     *zap.Logger
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(classifier *ingest.Classifier, deduper *ingest.ReceiptDeduper, engine *service.Engine, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		classifier: classifier,
		deduper:    deduper,
		engine:     engine,
		logger:     logger,
	}
}

// Receive POST /webhook. Always acknowledges recognized deliveries with
// 200 so the platform does not retry; discards are acknowledged too.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	raw := c.Body()

	if receiptID := ingest.ReceiptID(raw); receiptID != "" {
		if h.deduper.Seen(c.UserContext(), receiptID) {
			h.logger.Info("duplicate webhook delivery ignored", zap.String("receipt_id", receiptID))
			return c.JSON(fiber.Map{"status": "duplicate"})
		}
	}

	event, err := h.classifier.Classify(c.UserContext(), raw)
	if err != nil {
		return err
	}
	if event == nil {
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	if err := h.engine.HandleInbound(c.UserContext(), *event); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
