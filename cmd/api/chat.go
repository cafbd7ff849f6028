package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sparkforge/spark-os/backend/internal/service/orchestrator"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the personas from the terminal",
	Long: `Starts a local session against the same orchestrator the server uses.

Commands:
  /switch <persona>  switch persona explicitly
  /status            show the session summary
  /reset             start a new session
  /quit              exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		return runREPL(cmd.Context(), a.orch, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runREPL(ctx context.Context, orch *orchestrator.Orchestrator, in io.Reader, out io.Writer) error {
	key := uuid.NewString()
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "spark os chat (/quit to exit)")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/reset":
			orch.Reset(ctx, key)
			fmt.Fprintln(out, "[session reset]")
		case line == "/status":
			status, err := orch.Status(ctx, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "[session %s persona=%s turns=%d alerts=%d]\n",
				status.SessionID, status.ActivePersonaID, status.ConversationLength, len(status.Escalations))
		case strings.HasPrefix(line, "/switch"):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/switch"))
			p, err := orch.SwitchPersona(ctx, key, id)
			if err != nil {
				fmt.Fprintf(out, "[error] %v\n", err)
				continue
			}
			fmt.Fprintf(out, "[now talking to %s]\n", p.Name)
		default:
			outcome, err := orch.SubmitTurn(ctx, key, line)
			if err != nil {
				fmt.Fprintf(out, "[error] %v\n", err)
				continue
			}
			if outcome.Routed {
				fmt.Fprintf(out, "[%s]\n", outcome.RoutingNotice)
			}
			fmt.Fprintf(out, "%s: %s\n", outcome.PersonaName, outcome.Reply)
		}
	}
}
