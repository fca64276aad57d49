package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/coreforge/agentrun/internal/config"
	"github.com/coreforge/agentrun/internal/mcp"
	"github.com/spf13/cobra"
)

func buildMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Inspect configured MCP servers",
	}
	cmd.AddCommand(buildMCPListCmd())
	return cmd
}

func buildMCPListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Connect to auto-start MCP servers and list their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			manager := mcp.NewManager(&cfg.MCP, nil)
			if err := manager.Start(cmd.Context()); err != nil {
				return fmt.Errorf("start mcp servers: %w", err)
			}
			defer manager.Stop()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCONNECTED\tTOOLS\tRESOURCES")
			for _, status := range manager.Status() {
				fmt.Fprintf(w, "%s\t%s\t%v\t%d\t%d\n", status.ID, status.Name, status.Connected, status.Tools, status.Resources)
			}
			return w.Flush()
		},
	}
}
