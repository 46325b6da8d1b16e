package dto

import (
	"time"

	"github.com/spec-kit/ticket-bridge/internal/domain"
	"github.com/spec-kit/ticket-bridge/internal/service"
)

// ReplyRequest payload for dashboard replies.
type ReplyRequest struct {
	Message string `json:"message"`
}

// TicketListResponse bundles the filtered rows with aggregate stats.
type TicketListResponse struct {
	Stats   service.TicketStats     `json:"stats"`
	Tickets []service.TicketSummary `json:"tickets"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID         string              `json:"id"`
	SenderID   string              `json:"sender_id"`
	SenderName string              `json:"sender_name"`
	Status     domain.TicketStatus `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	Messages   []MessageResponse   `json:"messages"`
}

// MessageResponse represents one thread message.
type MessageResponse struct {
	Author      string             `json:"author"`
	Kind        domain.MessageKind `json:"kind"`
	Body        string             `json:"body,omitempty"`
	FileURL     string             `json:"file_url,omitempty"`
	FileName    string             `json:"file_name,omitempty"`
	FileSize    int64              `json:"file_size,omitempty"`
	DurationSec int                `json:"duration_sec,omitempty"`
	MimeType    string             `json:"mime_type,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// FromTicket maps a domain ticket onto the detail response.
func FromTicket(ticket *domain.Ticket) TicketDetailResponse {
	resp := TicketDetailResponse{
		ID:         ticket.ID,
		SenderID:   ticket.SenderID,
		SenderName: ticket.SenderName,
		Status:     ticket.Status,
		CreatedAt:  ticket.CreatedAt,
		Messages:   make([]MessageResponse, 0, len(ticket.Messages)),
	}
	for _, msg := range ticket.Messages {
		item := MessageResponse{
			Author:    msg.Author,
			Kind:      msg.Kind,
			Body:      msg.Body,
			Timestamp: msg.Timestamp,
		}
		if msg.Media != nil {
			item.FileURL = msg.Media.URL
			item.FileName = msg.Media.FileName
			item.FileSize = msg.Media.SizeBytes
			item.DurationSec = msg.Media.DurationSec
			item.MimeType = msg.Media.MimeType
		}
		resp.Messages = append(resp.Messages, item)
	}
	return resp
}
