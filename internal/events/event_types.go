package events

import (
	"time"

	"github.com/spec-kit/ticket-bridge/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketMessageAdded EventType = "ticket_message_added"
	EventTicketClosed       EventType = "ticket_closed"
)

// Origin identifies which front end triggered a transition.
type Origin string

const (
	OriginWebhook  Origin = "webhook"
	OriginWeb      Origin = "web"
	OriginTerminal Origin = "terminal"
)

// Event represents a domain event emitted by the routing engine.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Origin    Origin    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	SenderID   string             `json:"sender_id"`
	SenderName string             `json:"sender_name"`
	FirstKind  domain.MessageKind `json:"first_kind"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	Author      string             `json:"author"`
	Kind        domain.MessageKind `json:"kind"`
	BodyPreview string             `json:"body_preview"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	SenderID string `json:"sender_id"`
	ClosedBy string `json:"closed_by"`
}
