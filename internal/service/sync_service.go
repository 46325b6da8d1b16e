package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/domain"
	"github.com/spec-kit/ticket-bridge/internal/observability"
	"github.com/spec-kit/ticket-bridge/internal/persistence"
	"github.com/spec-kit/ticket-bridge/internal/registry"
	"github.com/spec-kit/ticket-bridge/internal/repository"
)

// Synchronizer keeps the durable store in step with the registry.
// Writes are write-through but never block or roll back the in-memory
// transition: a store failure is logged and absorbed, with the local
// snapshot file as secondary backup.
type Synchronizer struct {
	tickets  repository.TicketRepository
	messages repository.MessageRepository
	snapshot *persistence.SnapshotStore
	registry *registry.Registry
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// SyncDependencies bundles collaborators for the synchronizer.
// TicketRepo and MessageRepo may be nil when no durable store is
// configured; the snapshot file then carries all persistence.
type SyncDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	Snapshot    *persistence.SnapshotStore
	Registry    *registry.Registry
	Timeout     time.Duration
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewSynchronizer constructs the synchronizer.
func NewSynchronizer(deps SyncDependencies) *Synchronizer {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Synchronizer{
		tickets:  deps.TicketRepo,
		messages: deps.MessageRepo,
		snapshot: deps.Snapshot,
		registry: deps.Registry,
		timeout:  timeout,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}
}

// Save durably records a ticket and its full message sequence. The
// message insert is keyed on (ticket id, timestamp), so replaying an
// unchanged ticket inserts nothing. Errors never propagate to the
// caller's response path.
func (s *Synchronizer) Save(ctx context.Context, ticket *domain.Ticket) {
	if ticket == nil {
		return
	}
	if s.tickets != nil && s.messages != nil {
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		if err := s.saveToStore(storeCtx, ticket); err != nil {
			s.metrics.RecordEvent("store_failure")
			s.logger.Error("failed to save ticket to store",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		} else {
			s.logger.Debug("ticket saved", zap.String("ticket_id", ticket.ID))
		}
	}
	s.writeSnapshot()
}

func (s *Synchronizer) saveToStore(ctx context.Context, ticket *domain.Ticket) error {
	if err := s.tickets.Upsert(ctx, ticket); err != nil {
		return err
	}
	for i := range ticket.Messages {
		if err := s.messages.InsertIfAbsent(ctx, ticket.ID, &ticket.Messages[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) writeSnapshot() {
	if s.snapshot == nil {
		return
	}
	if err := s.snapshot.Write(s.registry.State()); err != nil {
		s.logger.Error("failed to write snapshot backup", zap.Error(err))
	}
}

// LoadAll rebuilds the registry at startup: durable store first, local
// snapshot on store failure, empty registry when both are unavailable.
func (s *Synchronizer) LoadAll(ctx context.Context) {
	if s.tickets != nil && s.messages != nil {
		storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		state, err := s.loadFromStore(storeCtx)
		if err == nil {
			s.registry.Restore(*state)
			s.logger.Info("registry loaded from store",
				zap.Int("tickets", len(state.Tickets)))
			return
		}
		s.metrics.RecordEvent("store_failure")
		s.logger.Error("failed to load tickets from store; trying snapshot", zap.Error(err))
	}

	if s.snapshot != nil {
		state, err := s.snapshot.Read()
		if err != nil {
			s.logger.Error("snapshot unreadable; starting empty", zap.Error(err))
			return
		}
		if state != nil {
			s.registry.Restore(*state)
			s.logger.Info("registry loaded from snapshot",
				zap.Int("tickets", len(state.Tickets)))
			return
		}
	}
	s.logger.Info("no persisted tickets found; starting empty")
}

func (s *Synchronizer) loadFromStore(ctx context.Context) (*registry.State, error) {
	tickets, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := s.messages.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	state := registry.State{
		Tickets:      make(map[string]*domain.Ticket, len(tickets)),
		OpenBySender: make(map[string]string),
	}
	for i := range tickets {
		ticket := tickets[i]
		state.Tickets[ticket.ID] = &ticket
	}
	// messages arrive ordered by timestamp, so appends stay chronological
	for _, msg := range stored {
		ticket, ok := state.Tickets[msg.TicketID]
		if !ok {
			continue
		}
		ticket.Messages = append(ticket.Messages, msg.Message)
	}
	return &state, nil
}
