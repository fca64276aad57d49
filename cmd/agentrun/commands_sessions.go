package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/coreforge/agentrun/internal/config"
	"github.com/coreforge/agentrun/internal/sessions"
	"github.com/spf13/cobra"
)

func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored conversation sessions",
	}
	cmd.AddCommand(buildSessionsListCmd())
	return cmd
}

func buildSessionsListCmd() *cobra.Command {
	var agentID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions for an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			store, err := buildSessionStore(cfg)
			if err != nil {
				return fmt.Errorf("build session store: %w", err)
			}
			list, err := store.List(cmd.Context(), agentID, sessions.ListOptions{Limit: limit})
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAGENT\tCHANNEL\tTITLE\tUPDATED")
			for _, s := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.AgentID, s.Channel, s.Title, s.UpdatedAt.Format("2006-01-02T15:04:05"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "Agent ID to filter by")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of sessions to list")
	return cmd
}
