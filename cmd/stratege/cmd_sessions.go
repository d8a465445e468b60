// Package main implements session management CLI commands for stratege.
// Sessions are the chat transcripts archived by the interactive mode.
package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stratege/internal/logging"
	"stratege/internal/store"
	"stratege/internal/transcript"
)

// =============================================================================
// SESSION MANAGEMENT COMMANDS
// =============================================================================

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse archived chat sessions",
	Long: `List and replay archived chat sessions.

Subcommands:
  list   - List the most recent sessions
  show   - Print the transcript of a session
  delete - Remove a session from the archive`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the transcript of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Remove a session from the archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var sessionsLimit int

func init() {
	sessionsListCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Maximum number of sessions")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
}

func openArchive() (*store.Archive, error) {
	if !cfg.Store.Enabled {
		return nil, errors.New("session archive is disabled (store.enabled: false)")
	}
	return store.Open(cfg.Store.DatabasePath, logs.Get(logging.CategoryStore))
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	a, err := openArchive()
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.ListSessions(commandContext(cmd), sessionsLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No saved sessions found.")
		return nil
	}
	t := newTable("SESSION", "LIBELLÉ", "SCÉNARIO", "TOURS", "DERNIÈRE ACTIVITÉ")
	for _, s := range sessions {
		scenario := "-"
		if s.ScenarioID != 0 {
			scenario = "#" + strconv.FormatInt(s.ScenarioID, 10)
		}
		t.Row(s.ID, s.Label, scenario, strconv.Itoa(s.Turns), s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(out, t.Render())
	fmt.Fprintf(out, "Total: %d sessions\n", len(sessions))
	fmt.Fprintln(out, "\nUse: stratege sessions show <session-id>")
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	a, err := openArchive()
	if err != nil {
		return err
	}
	defer a.Close()

	turns, err := a.Turns(commandContext(cmd), args[0])
	if errors.Is(err, store.ErrSessionNotFound) {
		return fmt.Errorf("session '%s' not found. Use 'stratege sessions list' to see available sessions", args[0])
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, t := range turns {
		fmt.Fprintln(out, formatTurn(t))
	}
	return nil
}

// formatTurn prints one archived entry on a line: widgets by name, text
// with its author.
func formatTurn(t store.Turn) string {
	stamp := t.CreatedAt.Local().Format("15:04:05")
	if t.Kind == transcript.KindWidget {
		return fmt.Sprintf("[%s] · widget %s", stamp, t.Widget)
	}
	return fmt.Sprintf("[%s] %s: %s", stamp, t.Author, strings.TrimSpace(t.Text))
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	a, err := openArchive()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.DeleteSession(commandContext(cmd), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}
