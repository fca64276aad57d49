package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/coreforge/agentrun/internal/agent"
	"github.com/coreforge/agentrun/internal/agent/providers"
	"github.com/coreforge/agentrun/internal/agentlevel"
	"github.com/coreforge/agentrun/internal/checkpoint"
	"github.com/coreforge/agentrun/internal/config"
	"github.com/coreforge/agentrun/internal/events"
	"github.com/coreforge/agentrun/internal/guard"
	"github.com/coreforge/agentrun/internal/jobs"
	"github.com/coreforge/agentrun/internal/sessions"
	"github.com/coreforge/agentrun/internal/skills"
	"github.com/coreforge/agentrun/internal/tools/browser"
	"github.com/coreforge/agentrun/internal/tools/exec"
	"github.com/coreforge/agentrun/internal/tools/files"
	"github.com/coreforge/agentrun/internal/tools/git"
	jobtools "github.com/coreforge/agentrun/internal/tools/jobs"
	"github.com/coreforge/agentrun/internal/tools/notebook"
	"github.com/coreforge/agentrun/internal/tools/websearch"
	"github.com/coreforge/agentrun/pkg/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func buildServeCmd() *cobra.Command {
	var sessionKey string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an interactive agent loop against stdin/stdout",
		Long: `serve starts a single-session read-eval-print loop: each line of
stdin is sent to the configured LLM provider as a user turn, tool calls the
model requests are executed against the local workspace in strict call
order, and the streamed response (text, tool events, tool results) is
printed to stdout as it arrives.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(), sessionKey)
		},
	}
	cmd.Flags().StringVar(&sessionKey, "session", "cli-default", "Session key to resume or create")
	return cmd
}

func runServe(ctx context.Context, cfgPath, sessionKey string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Logging.Format, cfg.Logging.Level)

	provider, err := buildLLMProvider(cfg)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	store, err := buildSessionStore(cfg)
	if err != nil {
		return fmt.Errorf("build session store: %w", err)
	}
	registry := agent.NewToolRegistry()
	agentTools, err := registerWorkspaceTools(registry, cfg)
	if err != nil {
		return fmt.Errorf("register workspace tools: %w", err)
	}

	loopCfg := agent.DefaultLoopConfig()
	loopCfg.ReviewMode = cfg.Policy.ReviewMode
	loopCfg.AgentTools = agentTools
	loopCfg.Guard = guard.Config{Enabled: cfg.Guard.Enabled, MaxNudgesPerTurn: cfg.Guard.MaxNudgesPerTurn}
	if cfg.Guard.Enabled {
		loopCfg.GuardDetector = guard.NewDetector(workspacePath(cfg))
	}
	loop := agent.NewAgenticLoop(provider, registry, store, loopCfg)
	if model := cfg.LLM.Providers[cfg.LLM.DefaultProvider].DefaultModel; model != "" {
		loop.SetDefaultModel(model)
	}

	eventDir := filepath.Join(cfg.Checkpoint.Directory, "..", "events")
	if eventStore, err := events.NewStore(eventDir); err != nil {
		logger.Warn("event store unavailable, run history will not be recorded", "error", err)
	} else {
		loop.SetEventStore(eventStore)
	}

	if cfg.LLM.Bedrock.Enabled {
		discoverBedrockModels(ctx, cfg, logger)
	}

	session, err := store.GetOrCreate(ctx, sessionKey, "cli", models.ChannelCLI, sessionKey)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("agentrun serve ready", "session", session.ID)
	fmt.Fprintln(os.Stdout, "agentrun ready. Type a message and press enter; Ctrl-D to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := runTurn(sigCtx, loop, session, line); err != nil {
			if sigCtx.Err() != nil {
				break
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func runTurn(ctx context.Context, loop *agent.AgenticLoop, session *models.Session, content string) error {
	msg := &models.Message{
		SessionID: session.ID,
		Channel:   models.ChannelCLI,
		Direction: models.DirectionInbound,
		Role:      models.RoleUser,
		Content:   content,
	}
	chunks, err := loop.Run(ctx, session, msg)
	if err != nil {
		return err
	}
	for chunk := range chunks {
		switch {
		case chunk.Error != nil:
			fmt.Fprintf(os.Stderr, "error: %v\n", chunk.Error)
		case chunk.ToolEvent != nil:
			fmt.Fprintf(os.Stdout, "[tool %s: %s]\n", chunk.ToolEvent.ToolName, chunk.ToolEvent.Stage)
		case chunk.ToolResult != nil:
			fmt.Fprintf(os.Stdout, "[result] %s\n", chunk.ToolResult.Content)
		case chunk.Text != "":
			fmt.Fprint(os.Stdout, chunk.Text)
		}
	}
	fmt.Fprintln(os.Stdout)
	return nil
}

func buildLLMProvider(cfg *config.Config) (agent.LLMProvider, error) {
	name := cfg.LLM.DefaultProvider
	if name == "" {
		name = "anthropic"
	}
	providerCfg := cfg.LLM.Providers[name]
	apiKey := providerCfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		apiKey = promptAPIKey(name)
	}
	return providers.NewAnthropicProvider(providers.AnthropicConfig{
		APIKey:       apiKey,
		BaseURL:      providerCfg.BaseURL,
		DefaultModel: providerCfg.DefaultModel,
	})
}

// promptAPIKey asks for a provider API key on stdin, masking the input
// when stdin is an interactive terminal and falling back to a plain read
// (e.g. piped input in a script) otherwise.
func promptAPIKey(provider string) string {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return ""
	}
	fmt.Printf("%s API key: ", provider)
	key, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(key))
}

// discoverBedrockModels lists the AWS Bedrock foundation models available
// to the configured region/credentials and keeps the list refreshed in the
// background. Discovery failures are logged, not fatal: Bedrock model
// auto-discovery augments the configured Anthropic/OpenAI providers, it
// doesn't replace them.
func discoverBedrockModels(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	refreshInterval := time.Hour
	if cfg.LLM.Bedrock.RefreshInterval != "" {
		if d, err := time.ParseDuration(cfg.LLM.Bedrock.RefreshInterval); err == nil {
			refreshInterval = d
		}
	}

	catalog, err := providers.NewBedrockModelCatalog(ctx, providers.BedrockDiscoveryConfig{
		Region:               cfg.LLM.Bedrock.Region,
		ProviderFilter:       cfg.LLM.Bedrock.ProviderFilter,
		DefaultContextWindow: cfg.LLM.Bedrock.DefaultContextWindow,
		DefaultMaxTokens:     cfg.LLM.Bedrock.DefaultMaxTokens,
	})
	if err != nil {
		logger.Warn("bedrock model discovery unavailable", "error", err)
		return
	}

	go catalog.RefreshLoop(ctx, refreshInterval, func(err error) {
		logger.Warn("bedrock model discovery refresh failed", "error", err)
	})
	logger.Info("bedrock model discovery enabled", "region", cfg.LLM.Bedrock.Region, "refresh_interval", refreshInterval)
}

func buildSessionStore(cfg *config.Config) (sessions.Store, error) {
	if cfg.Database.URL == "" {
		return sessions.NewMemoryStore(), nil
	}
	return sessions.NewCockroachStoreFromDSN(cfg.Database.URL, nil)
}

// workspacePath resolves the configured workspace root, falling back to the
// process's current directory when unset.
func workspacePath(cfg *config.Config) string {
	if cfg.Workspace.Path != "" {
		return cfg.Workspace.Path
	}
	wd, _ := os.Getwd()
	return wd
}

// registerWorkspaceTools builds the checkpoint/patch stores and registers
// every tool package this binary ships against the running workspace. A
// tool whose backend requires an unavailable external resource (a browser
// binary Playwright can't find, for instance) is skipped rather than
// failing the whole registration.
func registerWorkspaceTools(registry *agent.ToolRegistry, cfg *config.Config) (*agentlevel.Dispatcher, error) {
	workspace := workspacePath(cfg)

	checkpointDir := cfg.Checkpoint.Directory
	if checkpointDir == "" {
		checkpointDir = filepath.Join(workspace, ".agentrun", "checkpoints")
	}
	checkpoints, err := checkpoint.NewStore(filepath.Join(checkpointDir, "snapshots"), cfg.Checkpoint.RetainCount)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	patches, err := checkpoint.NewPatchStore(filepath.Join(checkpointDir, "patches"))
	if err != nil {
		return nil, fmt.Errorf("open patch store: %w", err)
	}

	fileCfg := files.Config{Workspace: workspace, Checkpoints: checkpoints, Patches: patches}
	registry.Register(files.NewReadTool(fileCfg))
	registry.Register(files.NewWriteTool(fileCfg))
	registry.Register(files.NewEditTool(fileCfg))
	registry.Register(files.NewPatchStageTool(fileCfg))
	registry.Register(files.NewPatchApplyTool(fileCfg))

	registry.Register(git.NewStatusTool(workspace))
	registry.Register(git.NewDiffTool(workspace))
	registry.Register(git.NewShowTool(workspace))

	registry.Register(notebook.NewReadTool(workspace))
	registry.Register(notebook.NewEditTool(workspace, checkpoints))

	execManager := exec.NewManager(workspace)
	processTool := exec.NewProcessTool(execManager)
	registry.Register(exec.NewExecTool("bash", execManager))
	registry.Register(processTool)

	registry.Register(websearch.NewWebFetchTool(nil))
	registry.Register(websearch.NewWebSearchTool(&websearch.Config{}))

	jobStore := jobs.NewMemoryStore()
	registry.Register(jobtools.NewStatusTool(jobStore))
	registry.Register(jobtools.NewCancelTool(jobStore))
	registry.Register(jobtools.NewListTool(jobStore))

	if pool, err := browser.NewPool(browser.PoolConfig{Headless: true}); err != nil {
		slog.Warn("browser automation unavailable, skipping chrome.* tools", "error", err)
	} else {
		registry.Register(browser.NewBrowserTool(pool))
	}

	var skillsMgr *skills.Manager
	if mgr, err := skills.NewManager(&cfg.Skills, workspace, nil); err != nil {
		slog.Warn("skills manager unavailable, skill agent-level tool disabled", "error", err)
	} else {
		skillsMgr = mgr
		if err := skillsMgr.Discover(context.Background()); err != nil {
			slog.Warn("skill discovery failed", "error", err)
		}
	}

	return agentlevel.NewDispatcher(skillsMgr, processTool), nil
}
