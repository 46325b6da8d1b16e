package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/domain"
	"github.com/spec-kit/ticket-bridge/internal/events"
	"github.com/spec-kit/ticket-bridge/internal/media"
	"github.com/spec-kit/ticket-bridge/internal/observability"
	"github.com/spec-kit/ticket-bridge/internal/registry"
	apperrors "github.com/spec-kit/ticket-bridge/pkg/util"
)

// closeToken is the reserved sender command that closes the open ticket.
const closeToken = "!close"

// Sender delivers outbound intents through the chat platform.
type Sender interface {
	SendText(ctx context.Context, target, body string) error
	SendFile(ctx context.Context, target, filePath, fileName, caption string) (string, error)
}

// Engine is the single decision point for ticket lifecycle transitions.
// Webhook, dashboard and terminal all route through it, so open/closed
// rules live in exactly one place. Registry mutations are write-through:
// each one is followed by a Synchronizer.Save for that ticket.
type Engine struct {
	registry   *registry.Registry
	sync       *Synchronizer
	sender     Sender
	transcoder *media.Transcoder
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// EngineDependencies bundles collaborators for the engine.
type EngineDependencies struct {
	Registry   *registry.Registry
	Sync       *Synchronizer
	Sender     Sender
	Transcoder *media.Transcoder
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewEngine constructs the routing engine.
func NewEngine(deps EngineDependencies) *Engine {
	return &Engine{
		registry:   deps.Registry,
		sync:       deps.Sync,
		sender:     deps.Sender,
		transcoder: deps.Transcoder,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// HandleInbound routes one normalized inbound event: the close command,
// an append to the sender's open ticket, or the creation of a new one.
// The inbound message is recorded before any reply attempt, so a failed
// acknowledgement never loses the customer's message.
func (e *Engine) HandleInbound(ctx context.Context, ev domain.InboundEvent) error {
	if ev.Message.Kind == domain.KindText && isCloseCommand(ev.Message.Body) {
		return e.handleCloseCommand(ctx, ev)
	}

	ticket, created := e.registry.AppendOrCreate(ev.SenderID, ev.SenderName, ev.Message)
	e.sync.Save(ctx, ticket)
	e.publish(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Origin:   events.OriginWebhook,
		Payload: events.TicketMessageAddedPayload{
			Author:      ev.Message.Author,
			Kind:        ev.Message.Kind,
			BodyPreview: preview(ev.Message.Body, 120),
		},
	})

	if !created {
		e.logger.Info("message appended to open ticket",
			zap.String("ticket_id", ticket.ID),
			zap.String("sender", ev.SenderID),
			zap.String("kind", string(ev.Message.Kind)))
		return nil
	}

	e.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("sender", ev.SenderID))
	e.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Origin:   events.OriginWebhook,
		Payload: events.TicketCreatedPayload{
			SenderID:   ev.SenderID,
			SenderName: ev.SenderName,
			FirstKind:  ev.Message.Kind,
		},
	})

	welcome := fmt.Sprintf("Thank you for contacting us! Your ticket ID is #%s. An agent will be with you shortly.", ticket.ID)
	if err := e.sendSystemNotice(ctx, ev.SenderID, ticket.ID, welcome); err != nil {
		e.logger.Warn("welcome notice not delivered",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return nil
}

// handleCloseCommand implements the sender-facing "!close" grammar. No
// ticket is ever created by this command.
func (e *Engine) handleCloseCommand(ctx context.Context, ev domain.InboundEvent) error {
	ticket, ok := e.registry.FindOpenTicket(ev.SenderID)
	if !ok {
		e.logger.Info("close command with no open ticket", zap.String("sender", ev.SenderID))
		if err := e.sender.SendText(ctx, ev.SenderID, "You do not have any open tickets to close."); err != nil {
			e.logger.Warn("notice not delivered", zap.Error(err))
		}
		return nil
	}

	if _, err := e.registry.CloseTicket(ticket.ID); err != nil {
		return err
	}
	e.sync.Save(ctx, mustGet(e.registry, ticket.ID))
	e.logger.Info("ticket closed by sender command",
		zap.String("ticket_id", ticket.ID), zap.String("sender", ev.SenderID))
	e.publish(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticket.ID,
		Origin:   events.OriginWebhook,
		Payload:  events.TicketClosedPayload{SenderID: ev.SenderID, ClosedBy: "sender"},
	})

	notice := fmt.Sprintf("Ticket %s has been closed. Thank you!", ticket.ID)
	if err := e.sendSystemNotice(ctx, ev.SenderID, ticket.ID, notice); err != nil {
		e.logger.Warn("closing notice not delivered",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return nil
}

// Reply sends an agent text to the ticket's sender and records it in the
// history after a successful send.
func (e *Engine) Reply(ctx context.Context, origin events.Origin, ticketID, text string) (*domain.Message, error) {
	msg, err := domain.NewTextMessage(domain.AuthorAgent, text)
	if err != nil {
		return nil, err
	}
	ticket, err := e.registry.Get(ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsOpen() {
		return nil, apperrors.NewTicketClosed(ticketID)
	}

	// send outside the registry lock; log to history only on success
	if err := e.sender.SendText(ctx, ticket.SenderID, text); err != nil {
		e.metrics.RecordEvent("send_failure")
		return nil, err
	}
	e.metrics.RecordEvent("send_ok")

	if err := e.registry.AppendMessage(ticketID, msg); err != nil {
		return nil, err
	}
	e.sync.Save(ctx, mustGet(e.registry, ticketID))
	e.publish(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticketID,
		Origin:   origin,
		Payload: events.TicketMessageAddedPayload{
			Author:      msg.Author,
			Kind:        msg.Kind,
			BodyPreview: preview(msg.Body, 120),
		},
	})
	return &msg, nil
}

// SendFile uploads a local file to the ticket's sender. Audio uploads
// are normalized to mp3 first, best-effort: on conversion failure the
// original file is sent.
func (e *Engine) SendFile(ctx context.Context, origin events.Origin, ticketID, filePath, caption string) (*domain.Message, error) {
	ticket, err := e.registry.Get(ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsOpen() {
		return nil, apperrors.NewTicketClosed(ticketID)
	}
	if _, err := os.Stat(filePath); err != nil {
		return nil, apperrors.NewValidationError("file not found", map[string]any{"path": filePath})
	}

	fileName := filepath.Base(filePath)
	if e.transcoder != nil && media.NeedsNormalization(fileName) {
		converted := filepath.Join(filepath.Dir(filePath), media.MP3Name(fileName))
		if err := e.transcoder.NormalizeAudio(ctx, filePath, converted); err != nil {
			e.logger.Warn("audio normalization failed; sending original",
				zap.String("file", fileName), zap.Error(err))
		} else {
			defer os.Remove(converted)
			filePath = converted
			fileName = media.MP3Name(fileName)
		}
	}

	remoteURL, err := e.sender.SendFile(ctx, ticket.SenderID, filePath, fileName, caption)
	if err != nil {
		e.metrics.RecordEvent("send_failure")
		return nil, err
	}
	e.metrics.RecordEvent("send_ok")

	kind := kindForFileName(fileName)
	body := caption
	if body == "" {
		body = fmt.Sprintf("Sent %s: %s", kind, fileName)
	}
	var size int64
	if info, err := os.Stat(filePath); err == nil {
		size = info.Size()
	}
	msg, err := domain.NewMediaMessage(domain.AuthorAgent, kind, body, &domain.MediaRef{
		URL:       remoteURL,
		FileName:  fileName,
		SizeBytes: size,
		MimeType:  string(kind) + "/*",
	})
	if err != nil {
		return nil, err
	}

	if err := e.registry.AppendMessage(ticketID, msg); err != nil {
		return nil, err
	}
	e.sync.Save(ctx, mustGet(e.registry, ticketID))
	e.publish(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticketID,
		Origin:   origin,
		Payload: events.TicketMessageAddedPayload{
			Author:      msg.Author,
			Kind:        msg.Kind,
			BodyPreview: preview(msg.Body, 120),
		},
	})
	return &msg, nil
}

// Close closes the ticket on behalf of an agent and notifies the sender.
func (e *Engine) Close(ctx context.Context, origin events.Origin, ticketID string) error {
	senderID, err := e.registry.CloseTicket(ticketID)
	if err != nil {
		return err
	}
	e.sync.Save(ctx, mustGet(e.registry, ticketID))
	e.logger.Info("ticket closed by agent",
		zap.String("ticket_id", ticketID), zap.String("origin", string(origin)))
	e.publish(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticketID,
		Origin:   origin,
		Payload:  events.TicketClosedPayload{SenderID: senderID, ClosedBy: "agent"},
	})

	notice := fmt.Sprintf("Your ticket #%s has been closed by our support team. Thank you for contacting us!", ticketID)
	if err := e.sendSystemNotice(ctx, senderID, ticketID, notice); err != nil {
		e.logger.Warn("closing notice not delivered",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}
	return nil
}

// GetTicket returns a copy of a ticket with its full history.
func (e *Engine) GetTicket(ticketID string) (*domain.Ticket, error) {
	return e.registry.Get(ticketID)
}

// sendSystemNotice sends a text and, on success, appends it to the
// ticket history as a System message.
func (e *Engine) sendSystemNotice(ctx context.Context, senderID, ticketID, text string) error {
	if err := e.sender.SendText(ctx, senderID, text); err != nil {
		e.metrics.RecordEvent("send_failure")
		return err
	}
	e.metrics.RecordEvent("send_ok")

	msg, err := domain.NewTextMessage(domain.AuthorSystem, text)
	if err != nil {
		return err
	}
	if err := e.registry.AppendMessage(ticketID, msg); err != nil {
		return err
	}
	e.sync.Save(ctx, mustGet(e.registry, ticketID))
	return nil
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = e.dispatcher.Publish(ctx, event)
}

func isCloseCommand(body string) bool {
	return strings.EqualFold(strings.TrimSpace(body), closeToken)
}

func kindForFileName(fileName string) domain.MessageKind {
	switch strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".") {
	case "jpg", "jpeg", "png", "gif", "webp":
		return domain.KindImage
	case "mp4", "avi", "mov", "mkv", "webm":
		return domain.KindVideo
	case "mp3", "wav", "ogg", "aac", "m4a":
		return domain.KindAudio
	default:
		return domain.KindDocument
	}
}

func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// mustGet re-reads a ticket known to exist for write-through saves.
func mustGet(r *registry.Registry, ticketID string) *domain.Ticket {
	ticket, err := r.Get(ticketID)
	if err != nil {
		return nil
	}
	return ticket
}
