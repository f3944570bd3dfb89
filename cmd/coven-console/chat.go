// ABOUTME: Chat commands: a one-shot streamed message and server-side session management
// ABOUTME: Sessions can be exported as standalone HTML transcripts

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/coven-console/internal/render"
	"github.com/2389/coven-console/internal/stream"
)

func chatCmd(a *app) *cobra.Command {
	var (
		sessionID string
		styled    bool
	)
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message and stream the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := a.console.NewChat()
			defer s.Close()

			if sessionID != "" {
				if err := s.Load(ctx, sessionID); err != nil {
					return err
				}
			}

			// Raw chunks stream as they arrive; styled output waits for the full reply
			printed := 0
			onUpdate := func(snap stream.Snapshot) {
				if styled || len(snap.Messages) == 0 {
					return
				}
				last := snap.Messages[len(snap.Messages)-1]
				if last.Role != stream.RoleAssistant || len(last.Content) <= printed {
					return
				}
				fmt.Print(last.Content[printed:])
				printed = len(last.Content)
			}

			reply, err := s.Send(ctx, strings.Join(args, " "), onUpdate)
			if printed > 0 {
				fmt.Println()
			}
			if err != nil {
				return err
			}

			if styled {
				fmt.Print(render.Terminal(reply.Content, terminalWidth()))
			}
			if len(reply.ToolsUsed) > 0 {
				gray.Printf("tools: %s\n", strings.Join(reply.ToolsUsed, ", "))
			}
			gray.Printf("session: %s\n", s.SessionID())
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	cmd.Flags().BoolVar(&styled, "render", false, "render the reply as styled markdown")
	return cmd
}

func sessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your chat sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := a.client().ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			if a.emit(sessions) {
				return nil
			}
			if len(sessions) == 0 {
				yellow.Println("No sessions yet.")
				return nil
			}

			w := newTable()
			fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Title, s.MessageCount, formatTime(s.UpdatedAt))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := a.client().GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.emit(detail) {
				return nil
			}

			cyan.Println(detail.Session.Title)
			styled := stdoutIsTerminal()
			for _, m := range detail.Messages {
				fmt.Println()
				if m.Role == stream.RoleUser {
					green.Print("you")
				} else {
					cyan.Print("assistant")
				}
				gray.Printf("  %s\n", formatTime(m.CreatedAt))

				if styled && m.Role == stream.RoleAssistant {
					fmt.Print(render.Terminal(m.Content, terminalWidth()))
				} else {
					fmt.Println(m.Content)
				}
				if len(m.ToolsUsed) > 0 {
					gray.Printf("tools: %s\n", strings.Join(m.ToolsUsed, ", "))
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.client().DeleteSession(ctx, args[0]); err != nil {
				return err
			}
			if err := a.console.Store.DeleteChatSession(ctx, args[0]); err != nil {
				a.logger.Debug("no local mirror to delete", "session_id", args[0], "error", err)
			}
			green.Println("✓ Session deleted")
			return nil
		},
	})

	var output string
	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a session as an HTML page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := a.client().GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			msgs := make([]stream.Message, 0, len(detail.Messages))
			for _, m := range detail.Messages {
				msgs = append(msgs, stream.Message{Role: m.Role, Content: m.Content, ToolsUsed: m.ToolsUsed, CreatedAt: m.CreatedAt})
			}
			page, err := render.TranscriptHTML(detail.Session.Title, msgs)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				fmt.Print(page)
				return nil
			}
			if err := os.WriteFile(output, []byte(page), 0o644); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			green.Print("✓ ")
			fmt.Printf("Exported to %s\n", output)
			return nil
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.AddCommand(export)

	return cmd
}
