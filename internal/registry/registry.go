// Package registry holds the in-memory authoritative view of all tickets
// and the open-ticket index. All mutation goes through its methods under a
// single lock; raw maps are never handed to callers.
package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/ticket-bridge/internal/domain"
	apperrors "github.com/spec-kit/ticket-bridge/pkg/util"
)

// State is the full registry contents, used for persistence snapshots
// and startup restore.
type State struct {
	Tickets      map[string]*domain.Ticket `json:"tickets"`
	OpenBySender map[string]string         `json:"open_tickets_by_sender"`
	NextID       int                       `json:"next_ticket_id"`
}

// Registry is the shared-state ticket store. It is safe for concurrent
// use; every operation takes the one lock, so a find-then-create sequence
// exposed as a single method cannot race.
type Registry struct {
	mu           sync.Mutex
	tickets      map[string]*domain.Ticket
	openBySender map[string]string
	nextID       int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tickets:      make(map[string]*domain.Ticket),
		openBySender: make(map[string]string),
		nextID:       1,
	}
}

// FindOpenTicket returns a copy of the sender's open ticket, if any.
func (r *Registry) FindOpenTicket(senderID string) (*domain.Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.openBySender[senderID]
	if !ok {
		return nil, false
	}
	return r.tickets[id].Clone(), true
}

// Get returns a copy of the ticket with the given id.
func (r *Registry) Get(ticketID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket.Clone(), nil
}

// List returns copies of all tickets, newest first.
func (r *Registry) List() []*domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		out = append(out, ticket.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return numericSuffix(out[i].ID) > numericSuffix(out[j].ID)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// CreateTicket allocates the next identifier, opens a ticket for the
// sender and seeds it with the first message.
func (r *Registry) CreateTicket(senderID, senderName string, first domain.Message) *domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(senderID, senderName, first)
}

// AppendMessage appends to an existing ticket preserving chronological order.
func (r *Registry) AppendMessage(ticketID string, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	appendLocked(ticket, msg)
	return nil
}

// AppendOrCreate routes an inbound message: append to the sender's open
// ticket when one exists, otherwise create a new ticket seeded with the
// message. The lookup and the mutation are one critical section, so two
// concurrent first messages from the same sender cannot produce two
// tickets. The sender display name is refreshed with the last-seen value.
func (r *Registry) AppendOrCreate(senderID, senderName string, msg domain.Message) (ticket *domain.Ticket, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.openBySender[senderID]; ok {
		existing := r.tickets[id]
		if senderName != "" && senderName != "Unknown" {
			existing.SenderName = senderName
		}
		appendLocked(existing, msg)
		return existing.Clone(), false
	}
	return r.createLocked(senderID, senderName, msg), true
}

// CloseTicket flips status to closed, drops the sender from the open
// index and returns the sender id for notification purposes.
func (r *Registry) CloseTicket(ticketID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		return "", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.Status == domain.TicketStatusClosed {
		return "", apperrors.NewAlreadyClosed(ticketID)
	}
	ticket.Status = domain.TicketStatusClosed
	delete(r.openBySender, ticket.SenderID)
	return ticket.SenderID, nil
}

// State returns a deep copy of the registry contents.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := State{
		Tickets:      make(map[string]*domain.Ticket, len(r.tickets)),
		OpenBySender: make(map[string]string, len(r.openBySender)),
		NextID:       r.nextID,
	}
	for id, ticket := range r.tickets {
		state.Tickets[id] = ticket.Clone()
	}
	for sender, id := range r.openBySender {
		state.OpenBySender[sender] = id
	}
	return state
}

// Restore replaces the registry contents. The open index is rebuilt from
// ticket status rather than trusted from the input, and the next id is
// the larger of the supplied counter and max(numeric suffix)+1.
func (r *Registry) Restore(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tickets = make(map[string]*domain.Ticket, len(state.Tickets))
	r.openBySender = make(map[string]string)
	maxID := 0
	for id, ticket := range state.Tickets {
		cp := ticket.Clone()
		r.tickets[id] = cp
		if cp.Status == domain.TicketStatusOpen {
			r.openBySender[cp.SenderID] = id
		}
		if n := numericSuffix(id); n > maxID {
			maxID = n
		}
	}
	r.nextID = maxID + 1
	if state.NextID > r.nextID {
		r.nextID = state.NextID
	}
}

func (r *Registry) createLocked(senderID, senderName string, first domain.Message) *domain.Ticket {
	id := fmt.Sprintf("T%d", r.nextID)
	r.nextID++
	ticket := &domain.Ticket{
		ID:         id,
		SenderID:   senderID,
		SenderName: senderName,
		Status:     domain.TicketStatusOpen,
		CreatedAt:  time.Now(),
	}
	appendLocked(ticket, first)
	r.tickets[id] = ticket
	r.openBySender[senderID] = id
	return ticket.Clone()
}

// appendLocked keeps timestamps strictly increasing within a ticket so
// the (ticket id, timestamp) dedup key stays unique.
func appendLocked(ticket *domain.Ticket, msg domain.Message) {
	if last := ticket.LastMessage(); last != nil && !msg.Timestamp.After(last.Timestamp) {
		msg.Timestamp = last.Timestamp.Add(time.Microsecond)
	}
	ticket.Messages = append(ticket.Messages, msg)
}

func numericSuffix(ticketID string) int {
	if !strings.HasPrefix(ticketID, "T") {
		return 0
	}
	n, err := strconv.Atoi(ticketID[1:])
	if err != nil {
		return 0
	}
	return n
}
