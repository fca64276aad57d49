package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/coreforge/agentrun/internal/config"
	"github.com/coreforge/agentrun/internal/plugins"
	"github.com/spf13/cobra"
)

func buildPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect loaded runtime plugins",
	}
	cmd.AddCommand(buildPluginsListCmd())
	return cmd
}

func buildPluginsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Load configured plugins and list their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			registry := plugins.NewRegistry(nil)
			pluginCfg := pluginConfigFromSettings(cfg.Plugins)
			if err := registry.Load(cmd.Context(), pluginCfg); err != nil {
				return fmt.Errorf("load plugins: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS")
			for _, rec := range registry.Plugins() {
				fmt.Fprintf(w, "%s\t%s\n", rec.ID, rec.Status)
			}
			for _, diag := range registry.Diagnostics() {
				fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", diag.Level, diag.PluginID, diag.Message)
			}
			return w.Flush()
		},
	}
}

func pluginConfigFromSettings(cfg config.PluginsConfig) *plugins.PluginConfig {
	entries := make(map[string]plugins.PluginEntryConfig, len(cfg.Entries))
	for id, entry := range cfg.Entries {
		enabled := entry.Enabled
		entries[id] = plugins.PluginEntryConfig{
			Enabled: &enabled,
			Config:  entry.Config,
		}
	}
	return &plugins.PluginConfig{
		Enabled: true,
		Paths:   cfg.Load.Paths,
		Entries: entries,
	}
}
