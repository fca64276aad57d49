package main

import (
	"fmt"

	"github.com/coreforge/agentrun/internal/channels"
	"github.com/coreforge/agentrun/internal/config"
	"github.com/spf13/cobra"
)

func buildStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print a summary of the current configuration and runtime activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			fmt.Printf("config:            %s\n", cfgPath)
			fmt.Printf("default provider:  %s\n", cfg.LLM.DefaultProvider)
			fmt.Printf("workspace:         %s (enabled=%v)\n", cfg.Workspace.Path, cfg.Workspace.Enabled)
			fmt.Printf("review mode:       %v\n", cfg.Policy.ReviewMode)
			fmt.Printf("database:          %v\n", cfg.Database.URL != "")

			stats := channels.GetActivityStats()
			fmt.Printf("\nactivity:\n")
			fmt.Printf("  channels:        %d\n", stats.TotalChannels)
			fmt.Printf("  inbound total:   %d (recent %d)\n", stats.TotalInbound, stats.RecentInbound)
			fmt.Printf("  outbound total:  %d (recent %d)\n", stats.TotalOutbound, stats.RecentOutbound)
			return nil
		},
	}
}
