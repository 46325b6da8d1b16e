package command

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/domain"
	"github.com/spec-kit/ticket-bridge/internal/events"
	"github.com/spec-kit/ticket-bridge/internal/observability"
	"github.com/spec-kit/ticket-bridge/internal/registry"
	"github.com/spec-kit/ticket-bridge/internal/service"
	apperrors "github.com/spec-kit/ticket-bridge/pkg/util"
)

type nopSender struct{}

func (nopSender) SendText(context.Context, string, string) error { return nil }
func (nopSender) SendFile(context.Context, string, string, string, string) (string, error) {
	return "https://files.example/upload", nil
}

func newTestInterpreter(t *testing.T) (*Interpreter, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	engine := service.NewEngine(service.EngineDependencies{
		Registry: reg,
		Sync: service.NewSynchronizer(service.SyncDependencies{
			Registry: reg,
			Logger:   logger,
			Metrics:  metrics,
		}),
		Sender:  nopSender{},
		Logger:  logger,
		Metrics: metrics,
	})
	return NewInterpreter(engine, events.OriginTerminal), reg
}

func seedOpenTicket(t *testing.T, reg *registry.Registry) string {
	t.Helper()
	msg, err := domain.NewTextMessage("Alice", "Hello")
	if err != nil {
		t.Fatalf("NewTextMessage: %v", err)
	}
	ticket := reg.CreateTicket("+1000", "Alice", msg)
	return ticket.ID
}

func TestParseGrammar(t *testing.T) {
	cases := []struct {
		line string
		want Command
	}{
		{"tickets", Command{Name: NameListTickets}},
		{"  TICKETS  ", Command{Name: NameListTickets}},
		{"exit", Command{Name: NameExit}},
		{"reply T1 hello there", Command{Name: NameReply, TicketID: "T1", Text: "hello there"}},
		{"close T1", Command{Name: NameClose, TicketID: "T1"}},
		{"sendfile T1 /tmp/a.pdf", Command{Name: NameSendFile, TicketID: "T1", FilePath: "/tmp/a.pdf"}},
		{"sendfile T1 /tmp/a.pdf invoice copy", Command{Name: NameSendFile, TicketID: "T1", FilePath: "/tmp/a.pdf", Caption: "invoice copy"}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.line)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.line, err)
		}
		if *got != tc.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.line, got, tc.want)
		}
	}
}

func TestParseMalformedInput(t *testing.T) {
	for _, line := range []string{"", "   ", "reply", "reply T1", "close", "close T1 extra", "sendfile T1", "frobnicate"} {
		_, err := Parse(line)
		if !apperrors.HasCode(err, "VALIDATION_FAILED") {
			t.Fatalf("Parse(%q) error = %v, want VALIDATION_FAILED", line, err)
		}
		de := apperrors.ToDomainError(err)
		if usage, _ := de.Details["usage"].(string); usage != Usage {
			t.Fatalf("Parse(%q) missing usage detail: %+v", line, de.Details)
		}
	}
}

func TestRunTicketsEmpty(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	out, err := interp.Run(context.Background(), &Command{Name: NameListTickets})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "No tickets found." {
		t.Fatalf("output = %q", out)
	}
}

func TestRunReplyAppendsToHistory(t *testing.T) {
	interp, reg := newTestInterpreter(t)
	id := seedOpenTicket(t, reg)

	out, err := interp.Run(context.Background(), &Command{Name: NameReply, TicketID: id, Text: "On it"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "Reply sent to "+id) {
		t.Fatalf("output = %q", out)
	}

	ticket, _ := reg.Get(id)
	last := ticket.LastMessage()
	if last == nil || last.Author != domain.AuthorAgent || last.Body != "On it" {
		t.Fatalf("last message = %+v", last)
	}
}

func TestRunCloseThenListShowsClosed(t *testing.T) {
	interp, reg := newTestInterpreter(t)
	id := seedOpenTicket(t, reg)

	ctx := context.Background()
	if _, err := interp.Run(ctx, &Command{Name: NameClose, TicketID: id}); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, err := interp.Run(ctx, &Command{Name: NameListTickets})
	if err != nil {
		t.Fatalf("tickets: %v", err)
	}
	if !strings.Contains(out, "0 open, 1 closed") {
		t.Fatalf("listing = %q", out)
	}
}

func TestRunCloseUnknownTicket(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	_, err := interp.Run(context.Background(), &Command{Name: NameClose, TicketID: "T9"})
	if !apperrors.HasCode(err, "NOT_FOUND") {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}
}

func TestRunReplyClosedTicket(t *testing.T) {
	interp, reg := newTestInterpreter(t)
	id := seedOpenTicket(t, reg)
	if _, err := reg.CloseTicket(id); err != nil {
		t.Fatalf("CloseTicket: %v", err)
	}

	_, err := interp.Run(context.Background(), &Command{Name: NameReply, TicketID: id, Text: "too late"})
	if !apperrors.HasCode(err, "TICKET_CLOSED") {
		t.Fatalf("error = %v, want TICKET_CLOSED", err)
	}
}
