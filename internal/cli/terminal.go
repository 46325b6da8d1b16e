// Package cli provides the interactive agent terminal, a thin front end
// over the shared command interpreter.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/command"
	apperrors "github.com/spec-kit/ticket-bridge/pkg/util"
)

// Terminal reads agent commands line by line and prints results.
type Terminal struct {
	interpreter *command.Interpreter
	in          io.Reader
	out         io.Writer
	logger      *zap.Logger
}

// NewTerminal constructs the REPL over the given streams.
func NewTerminal(interpreter *command.Interpreter, in io.Reader, out io.Writer, logger *zap.Logger) *Terminal {
	return &Terminal{
		interpreter: interpreter,
		in:          in,
		out:         out,
		logger:      logger,
	}
}

// Run blocks reading commands until `exit`, EOF or context cancellation.
func (t *Terminal) Run(ctx context.Context) {
	fmt.Fprintln(t.out, "--- Agent Terminal Interface Ready ---")
	fmt.Fprintln(t.out, command.Usage)

	scanner := bufio.NewScanner(t.in)
	for {
		fmt.Fprint(t.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(t.out, "\nExiting terminal interface...")
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		cmd, err := command.Parse(line)
		if err != nil {
			fmt.Fprintln(t.out, errorLine(err))
			continue
		}
		if cmd.Name == command.NameExit {
			fmt.Fprintln(t.out, "Exiting terminal interface...")
			return
		}

		result, err := t.interpreter.Run(ctx, cmd)
		if err != nil {
			fmt.Fprintln(t.out, errorLine(err))
			continue
		}
		if result != "" {
			fmt.Fprintln(t.out, result)
		}
	}
}

func errorLine(err error) string {
	de := apperrors.ToDomainError(err)
	if usage, ok := de.Details["usage"].(string); ok {
		return fmt.Sprintf("Error: %s\n%s", de.Message, usage)
	}
	return "Error: " + de.Message
}
