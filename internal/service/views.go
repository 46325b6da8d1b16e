package service

import (
	"time"

	"github.com/spec-kit/ticket-bridge/internal/domain"
)

// TicketSummary is the derived listing row for the dashboard and the
// terminal. It is a pure function of registry state.
type TicketSummary struct {
	ID            string              `json:"id"`
	SenderID      string              `json:"sender_id"`
	SenderName    string              `json:"sender_name"`
	Status        domain.TicketStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	MessageCount  int                 `json:"message_count"`
	LastMessage   string              `json:"last_message"`
	LastMessageAt *time.Time          `json:"last_message_at,omitempty"`
	HasVoice      bool                `json:"has_voice"`
	HasMedia      bool                `json:"has_media"`
}

// TicketStats aggregates counts for the dashboard header.
type TicketStats struct {
	Total  int `json:"total"`
	Open   int `json:"open"`
	Closed int `json:"closed"`
	Today  int `json:"today"`
}

// ListTickets returns summaries newest first, optionally filtered by
// status, together with the aggregate stats over ALL tickets.
func (e *Engine) ListTickets(statusFilter domain.TicketStatus) ([]TicketSummary, TicketStats) {
	tickets := e.registry.List()

	stats := TicketStats{}
	today := time.Now().Truncate(24 * time.Hour)
	summaries := make([]TicketSummary, 0, len(tickets))
	for _, ticket := range tickets {
		stats.Total++
		if ticket.Status == domain.TicketStatusOpen {
			stats.Open++
		} else {
			stats.Closed++
		}
		if !ticket.CreatedAt.Before(today) {
			stats.Today++
		}
		if statusFilter != "" && ticket.Status != statusFilter {
			continue
		}
		summaries = append(summaries, summarize(ticket))
	}
	return summaries, stats
}

func summarize(ticket *domain.Ticket) TicketSummary {
	summary := TicketSummary{
		ID:           ticket.ID,
		SenderID:     ticket.SenderID,
		SenderName:   ticket.SenderName,
		Status:       ticket.Status,
		CreatedAt:    ticket.CreatedAt,
		MessageCount: len(ticket.Messages),
		LastMessage:  "No messages",
		HasVoice:     ticket.HasKind(domain.KindAudio),
		HasMedia:     ticket.HasKind(domain.KindImage, domain.KindVideo, domain.KindDocument),
	}
	if last := ticket.LastMessage(); last != nil {
		text := last.Body
		if text == "" {
			text = "[" + string(last.Kind) + "]"
		}
		summary.LastMessage = preview(text, 50)
		at := last.Timestamp
		summary.LastMessageAt = &at
	}
	return summary
}
