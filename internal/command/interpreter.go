// Package command parses agent input into routing engine calls. The
// terminal REPL and the dashboard handlers share this one surface so
// lifecycle rules are never duplicated per front end.
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-bridge/internal/events"
	"github.com/spec-kit/ticket-bridge/internal/service"
	apperrors "github.com/spec-kit/ticket-bridge/pkg/util"
)

// Usage is shown for unknown or malformed commands.
const Usage = "Commands: 'tickets', 'reply <TICKET-ID> <message>', 'close <TICKET-ID>', 'sendfile <TICKET-ID> <path> [caption]', 'exit'"

// Name enumerates the supported agent commands.
type Name string

const (
	NameListTickets Name = "tickets"
	NameReply       Name = "reply"
	NameClose       Name = "close"
	NameSendFile    Name = "sendfile"
	NameExit        Name = "exit"
)

// Command is one parsed agent instruction.
type Command struct {
	Name     Name
	TicketID string
	Text     string
	FilePath string
	Caption  string
}

// Parse turns one input line into a Command. Malformed input yields a
// VALIDATION_FAILED error carrying a usage message; no state changes.
func Parse(line string) (*Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil, usageError("empty command")
	}

	switch Name(strings.ToLower(parts[0])) {
	case NameListTickets:
		return &Command{Name: NameListTickets}, nil
	case NameExit:
		return &Command{Name: NameExit}, nil
	case NameReply:
		if len(parts) < 3 {
			return nil, usageError("usage: reply <TICKET-ID> <message>")
		}
		return &Command{
			Name:     NameReply,
			TicketID: parts[1],
			Text:     strings.Join(parts[2:], " "),
		}, nil
	case NameClose:
		if len(parts) != 2 {
			return nil, usageError("usage: close <TICKET-ID>")
		}
		return &Command{Name: NameClose, TicketID: parts[1]}, nil
	case NameSendFile:
		if len(parts) < 3 {
			return nil, usageError("usage: sendfile <TICKET-ID> <path> [caption]")
		}
		return &Command{
			Name:     NameSendFile,
			TicketID: parts[1],
			FilePath: parts[2],
			Caption:  strings.Join(parts[3:], " "),
		}, nil
	default:
		return nil, usageError(fmt.Sprintf("unknown command: %q", parts[0]))
	}
}

// Interpreter executes parsed commands against the routing engine.
type Interpreter struct {
	engine *service.Engine
	origin events.Origin
}

// NewInterpreter binds the interpreter to an engine and an origin label.
func NewInterpreter(engine *service.Engine, origin events.Origin) *Interpreter {
	return &Interpreter{engine: engine, origin: origin}
}

// Run executes one command and returns a human-readable result line.
func (i *Interpreter) Run(ctx context.Context, cmd *Command) (string, error) {
	switch cmd.Name {
	case NameListTickets:
		summaries, stats := i.engine.ListTickets("")
		return formatTicketList(summaries, stats), nil
	case NameReply:
		if _, err := i.engine.Reply(ctx, i.origin, cmd.TicketID, cmd.Text); err != nil {
			return "", err
		}
		return fmt.Sprintf("Reply sent to %s and saved to history.", cmd.TicketID), nil
	case NameClose:
		if err := i.engine.Close(ctx, i.origin, cmd.TicketID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Ticket %s has been closed and user notified.", cmd.TicketID), nil
	case NameSendFile:
		if _, err := i.engine.SendFile(ctx, i.origin, cmd.TicketID, cmd.FilePath, cmd.Caption); err != nil {
			return "", err
		}
		return fmt.Sprintf("File sent to %s and saved to history.", cmd.TicketID), nil
	case NameExit:
		return "", nil
	default:
		return "", usageError(fmt.Sprintf("unknown command: %q", cmd.Name))
	}
}

func formatTicketList(summaries []service.TicketSummary, stats service.TicketStats) string {
	if len(summaries) == 0 {
		return "No tickets found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "--- All Tickets (%d total, %d open, %d closed) ---\n",
		stats.Total, stats.Open, stats.Closed)
	for _, s := range summaries {
		fmt.Fprintf(&b, "  - ID: %s, Sender: %s (%s), Status: %s, Messages: %d, Last: %s\n",
			s.ID, s.SenderName, s.SenderID, s.Status, s.MessageCount, s.LastMessage)
	}
	b.WriteString("-------------------")
	return b.String()
}

func usageError(reason string) error {
	return apperrors.NewValidationError(reason, map[string]any{"usage": Usage})
}
