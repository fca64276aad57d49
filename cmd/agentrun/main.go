// Package main provides the CLI entry point for the agentrun coding-assistant
// runtime.
//
// agentrun drives an agentic tool-use loop against an LLM provider, executing
// tools against a sandboxed workspace and persisting conversation state to a
// session store.
//
// # Basic usage
//
//	agentrun serve --config agentrun.yaml
//	agentrun sessions list
//	agentrun mcp list
//	agentrun version
//
// # Environment variables
//
//   - AGENTRUN_CONFIG: path to the configuration file (default: agentrun.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the root command and its subcommand tree. Kept
// separate from main so tests can exercise command wiring without calling
// os.Exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentrun",
		Short: "agentrun - interactive coding-assistant agent runtime",
		Long: `agentrun drives an agentic tool-use loop against an LLM provider.

It executes file, shell, patch, and search tools against a sandboxed
workspace, checkpoints state before destructive operations, and persists
conversation history to a session store.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "agentrun.yaml", "Path to YAML configuration file")

	rootCmd.AddCommand(
		buildServeCmd(),
		buildSessionsCmd(),
		buildMCPCmd(),
		buildSkillsCmd(),
		buildPluginsCmd(),
		buildStatusCmd(),
	)

	return rootCmd
}

func resolveConfigPath() string {
	if envPath := os.Getenv("AGENTRUN_CONFIG"); envPath != "" && configPath == "agentrun.yaml" {
		return envPath
	}
	return configPath
}

func newLogger(format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
