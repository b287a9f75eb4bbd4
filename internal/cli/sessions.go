package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harun/veda/internal/config"
	"github.com/harun/veda/pkg/history"
	"github.com/harun/veda/pkg/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage persisted sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted sessions, most recent first",
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
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var sessionsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all persisted sessions",
	RunE:  runSessionsPurge,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsPurgeCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openStore() (*session.Store, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	store, err := session.NewStore(session.Config{
		Dir:         cfg.Session.Dir,
		MaxSessions: cfg.Session.MaxSessions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return store, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	entries, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLAST ACTIVITY\tMESSAGES\tFIRST MESSAGE")
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			entry.ID,
			entry.LastActivityAt.Local().Format("2006-01-02 15:04:05"),
			entry.Metadata.MessageCount,
			entry.Metadata.FirstMessage,
		)
	}
	return w.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	stored, err := store.Resume(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s (created %s, %d messages)\n\n",
		stored.ID,
		stored.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		len(stored.Messages),
	)

	for _, msg := range stored.Messages {
		switch msg.Role {
		case history.RoleTool:
			fmt.Fprintf(out, "[tool %s]\n%s\n\n", msg.ToolCallID, msg.Content)
		case history.RoleAssistant:
			fmt.Fprintf(out, "[assistant]\n%s\n", msg.Content)
			for _, call := range msg.ToolCalls {
				fmt.Fprintf(out, "  -> %s(%s)\n", call.Name, summarizeParams(call.Parameters))
			}
			fmt.Fprintln(out)
		default:
			fmt.Fprintf(out, "[%s]\n%s\n\n", msg.Role, msg.Content)
		}
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}

func runSessionsPurge(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	count, err := store.Purge(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to purge sessions: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d session(s)\n", count)
	return nil
}
