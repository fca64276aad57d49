package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/coreforge/agentrun/internal/config"
	"github.com/coreforge/agentrun/internal/skills"
	"github.com/spf13/cobra"
)

func buildSkillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Inspect discovered agent skills",
	}
	cmd.AddCommand(buildSkillsListCmd())
	return cmd
}

func buildSkillsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Discover and list available skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			manager, err := skills.NewManager(&cfg.Skills, cfg.Workspace.Path, nil)
			if err != nil {
				return fmt.Errorf("build skills manager: %w", err)
			}
			if err := manager.Discover(cmd.Context()); err != nil {
				return fmt.Errorf("discover skills: %w", err)
			}
			defer manager.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSOURCE\tELIGIBLE\tDESCRIPTION")
			for _, entry := range manager.ListAll() {
				_, eligible := manager.GetEligible(entry.Name)
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", entry.Name, entry.Path, eligible, entry.Description)
			}
			return w.Flush()
		},
	}
}
