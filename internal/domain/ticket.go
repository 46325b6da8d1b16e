package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// Ticket is one support conversation tied to a single WhatsApp sender.
// Messages are owned by the ticket and kept in chronological order.
type Ticket struct {
	ID         string       `json:"id"`
	SenderID   string       `json:"sender_id"`
	SenderName string       `json:"sender_name"`
	Status     TicketStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	Messages   []Message    `json:"messages"`
}

// IsOpen reports whether the ticket still accepts messages.
func (t *Ticket) IsOpen() bool {
	return t.Status == TicketStatusOpen
}

// LastMessage returns the newest message, or nil when the ticket is empty.
func (t *Ticket) LastMessage() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}

// HasKind reports whether any message carries the given content kind.
func (t *Ticket) HasKind(kinds ...MessageKind) bool {
	for _, msg := range t.Messages {
		for _, kind := range kinds {
			if msg.Kind == kind {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy so callers can never mutate registry state.
func (t *Ticket) Clone() *Ticket {
	cp := *t
	cp.Messages = make([]Message, len(t.Messages))
	copy(cp.Messages, t.Messages)
	return &cp
}
