package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coreforge/agentrun/internal/mcp"
	"github.com/coreforge/agentrun/internal/skills"
	"gopkg.in/yaml.v3"
)

// Config is the top-level runtime configuration for the agent loop and its
// supporting subsystems. It is assembled by the loader from the layered
// defaults -> user -> project -> project-local chain before Load's
// env-override and validation passes run.
type Config struct {
	Server     ServerConfig        `yaml:"server"`
	Database   DatabaseConfig      `yaml:"database"`
	Session    SessionConfig       `yaml:"session"`
	Workspace  WorkspaceConfig     `yaml:"workspace"`
	Plugins    PluginsConfig       `yaml:"plugins"`
	Skills     skills.SkillsConfig `yaml:"skills"`
	MCP        mcp.Config          `yaml:"mcp"`
	LLM        LLMConfig           `yaml:"llm"`
	Tools      ToolsConfig         `yaml:"tools"`
	AgentLoop  AgentLoopConfig     `yaml:"agent_loop"`
	Policy     PolicyConfig        `yaml:"policy"`
	Context    ContextConfig       `yaml:"context"`
	Guard      GuardConfig         `yaml:"guard"`
	Checkpoint CheckpointConfig    `yaml:"checkpoint"`
	Tasks      TasksConfig         `yaml:"tasks"`
	Logging    LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
	Security      SecurityConfig      `yaml:"security"`
	Artifacts     ArtifactConfig      `yaml:"artifacts"`

	// PlansDirectory is where plan-mode artifacts are written.
	PlansDirectory string `yaml:"plans_directory"`

	// RespectGitignore controls whether file-system tools honor .gitignore
	// patterns when listing or globbing the workspace.
	RespectGitignore *bool `yaml:"respect_gitignore"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	GRPCPort    int    `yaml:"grpc_port"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type WorkspaceConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Path         string `yaml:"path"`
	MaxChars     int    `yaml:"max_chars"`
	AgentsFile   string `yaml:"agents_file"`
	SoulFile     string `yaml:"soul_file"`
	UserFile     string `yaml:"user_file"`
	IdentityFile string `yaml:"identity_file"`
	ToolsFile    string `yaml:"tools_file"`
	MemoryFile   string `yaml:"memory_file"`
}

type PluginsConfig struct {
	Load    PluginLoadConfig             `yaml:"load"`
	Entries map[string]PluginEntryConfig `yaml:"entries"`
}

type PluginLoadConfig struct {
	Paths []string `yaml:"paths"`
}

type PluginEntryConfig struct {
	Enabled bool           `yaml:"enabled"`
	Path    string         `yaml:"path"`
	Config  map[string]any `yaml:"config"`
}

// AgentLoopConfig controls the scheduler's bounds on a single agent turn.
type AgentLoopConfig struct {
	// MaxTurns bounds the number of tool-call round trips within one
	// tool_loop before the loop is forced to stop and surface its state.
	MaxTurns int `yaml:"max_turns"`

	// MaxConcurrentTools caps the executor's cross-call backpressure
	// semaphore. Tool calls within one assistant turn always run strictly
	// in order (never parallel); this bounds how many calls from different
	// concurrent runs may be in flight against the tool host at once.
	MaxConcurrentTools int `yaml:"max_concurrent_tools"`

	// StallSimilarityThreshold is the character-shingle similarity (0-1)
	// above which consecutive tool results are considered a repeat,
	// feeding the failure classifier.
	StallSimilarityThreshold float64 `yaml:"stall_similarity_threshold"`

	// StallRepeatCount is how many consecutive near-identical results
	// trigger a stalled-loop classification.
	StallRepeatCount int `yaml:"stall_repeat_count"`
}

// PolicyConfig controls the tool policy engine's gate ordering and defaults.
type PolicyConfig struct {
	// Mode is the default permission mode: "default", "acceptEdits", "plan",
	// "bypassPermissions".
	Mode string `yaml:"mode"`

	// ReviewMode forces all write-capable tools through approval regardless
	// of permission mode.
	ReviewMode bool `yaml:"review_mode"`

	ManagedSettingsPath string `yaml:"managed_settings_path"`

	Approval ApprovalConfig `yaml:"approval"`
}

// ContextConfig controls how much ambient context is loaded into a session.
type ContextConfig struct {
	MaxTokens         int `yaml:"max_tokens"`
	ReasoningTTLTurns int `yaml:"reasoning_ttl_turns"`
}

// GuardConfig controls the anti-hallucination guard's nudge behavior.
type GuardConfig struct {
	Enabled          bool `yaml:"enabled"`
	MaxNudgesPerTurn int  `yaml:"max_nudges_per_turn"`
}

// CheckpointConfig controls the checkpoint and patch store.
type CheckpointConfig struct {
	Directory   string `yaml:"directory"`
	Backend     string `yaml:"backend"` // "local" or "s3"
	S3Bucket    string `yaml:"s3_bucket"`
	S3Prefix    string `yaml:"s3_prefix"`
	RetainCount int    `yaml:"retain_count"`
}

// TasksConfig configures the scheduled tasks system.
type TasksConfig struct {
	Enabled bool `yaml:"enabled"`

	// WorkerID uniquely identifies this scheduler instance for distributed locking.
	WorkerID string `yaml:"worker_id"`

	PollInterval    time.Duration `yaml:"poll_interval"`
	AcquireInterval time.Duration `yaml:"acquire_interval"`
	LockDuration    time.Duration `yaml:"lock_duration"`
	MaxConcurrency  int           `yaml:"max_concurrency"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	StaleTimeout    time.Duration `yaml:"stale_timeout"`
	DefaultTimeout  time.Duration `yaml:"default_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applySessionDefaults(&cfg.Session)
	applyWorkspaceDefaults(&cfg.Workspace)
	applyToolsDefaults(cfg)
	applyLLMDefaults(&cfg.LLM)
	applyAgentLoopDefaults(&cfg.AgentLoop)
	applyPolicyDefaults(&cfg.Policy)
	applyContextDefaults(&cfg.Context)
	applyGuardDefaults(&cfg.Guard)
	applyCheckpointDefaults(&cfg.Checkpoint)
	applyLoggingDefaults(&cfg.Logging)
	applyObservabilityDefaults(&cfg.Observability)
	applySecurityDefaults(&cfg.Security)
	applyArtifactDefaults(&cfg.Artifacts)

	if cfg.PlansDirectory == "" {
		cfg.PlansDirectory = ".agentrun/plans"
	}
	if cfg.RespectGitignore == nil {
		respect := true
		cfg.RespectGitignore = &respect
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.GRPCPort == 0 {
		cfg.GRPCPort = 50051
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8080
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 25
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.DefaultAgentID == "" {
		cfg.DefaultAgentID = "main"
	}
	if cfg.Memory.Directory == "" {
		cfg.Memory.Directory = "memory"
	}
	if cfg.Memory.MaxLines == 0 {
		cfg.Memory.MaxLines = 20
	}
	if cfg.Memory.Days == 0 {
		cfg.Memory.Days = 2
	}
	if cfg.MemoryFlush.Threshold == 0 {
		cfg.MemoryFlush.Threshold = 80
	}
	if cfg.MemoryFlush.Prompt == "" {
		cfg.MemoryFlush.Prompt = "Session nearing compaction. If there are durable facts, store them in memory/YYYY-MM-DD.md or MEMORY.md. Reply NO_REPLY if nothing needs attention."
	}
	if cfg.Compaction.Threshold == 0 {
		cfg.Compaction.Threshold = 0.85
	}
	if cfg.Compaction.KeepFirst == 0 {
		cfg.Compaction.KeepFirst = 1
	}
	if cfg.Compaction.KeepRecent == 0 {
		cfg.Compaction.KeepRecent = 4
	}
}

func applyWorkspaceDefaults(cfg *WorkspaceConfig) {
	if cfg.Path == "" {
		cfg.Path = "."
	}
	if cfg.MaxChars == 0 {
		cfg.MaxChars = 20000
	}
	if cfg.AgentsFile == "" {
		cfg.AgentsFile = "AGENTS.md"
	}
	if cfg.SoulFile == "" {
		cfg.SoulFile = "SOUL.md"
	}
	if cfg.UserFile == "" {
		cfg.UserFile = "USER.md"
	}
	if cfg.IdentityFile == "" {
		cfg.IdentityFile = "IDENTITY.md"
	}
	if cfg.ToolsFile == "" {
		cfg.ToolsFile = "TOOLS.md"
	}
	if cfg.MemoryFile == "" {
		cfg.MemoryFile = "MEMORY.md"
	}
}

func applyToolsDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Tools.Jobs.Retention == 0 {
		cfg.Tools.Jobs.Retention = 24 * time.Hour
	}
	if cfg.Tools.Jobs.PruneInterval == 0 {
		cfg.Tools.Jobs.PruneInterval = 1 * time.Hour
	}
	if cfg.Tools.Diagnostics.Timeout == 0 {
		cfg.Tools.Diagnostics.Timeout = 30 * time.Second
	}
}

// DefaultWorkspaceConfig returns a workspace config with defaults applied.
func DefaultWorkspaceConfig() WorkspaceConfig {
	cfg := WorkspaceConfig{}
	applyWorkspaceDefaults(&cfg)
	return cfg
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "anthropic"
	}
}

func applyAgentLoopDefaults(cfg *AgentLoopConfig) {
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 80
	}
	if cfg.MaxConcurrentTools == 0 {
		cfg.MaxConcurrentTools = 8
	}
	if cfg.StallSimilarityThreshold == 0 {
		cfg.StallSimilarityThreshold = 0.92
	}
	if cfg.StallRepeatCount == 0 {
		cfg.StallRepeatCount = 3
	}
}

func applyPolicyDefaults(cfg *PolicyConfig) {
	if cfg.Mode == "" {
		cfg.Mode = "default"
	}
}

func applyContextDefaults(cfg *ContextConfig) {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 180000
	}
	if cfg.ReasoningTTLTurns == 0 {
		cfg.ReasoningTTLTurns = 1
	}
}

func applyGuardDefaults(cfg *GuardConfig) {
	if cfg.MaxNudgesPerTurn == 0 {
		cfg.MaxNudgesPerTurn = 3
	}
}

func applyCheckpointDefaults(cfg *CheckpointConfig) {
	if cfg.Directory == "" {
		cfg.Directory = ".agentrun/checkpoints"
	}
	if cfg.Backend == "" {
		cfg.Backend = "local"
	}
	if cfg.RetainCount == 0 {
		cfg.RetainCount = 50
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

func applyObservabilityDefaults(cfg *ObservabilityConfig) {
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "agentrun"
	}
	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 0.1
	}
}

func applySecurityDefaults(cfg *SecurityConfig) {
	if cfg.Posture.Interval == 0 {
		cfg.Posture.Interval = 1 * time.Hour
	}
	if cfg.Posture.IncludeFilesystem == nil {
		cfg.Posture.IncludeFilesystem = boolPtr(true)
	}
	if cfg.Posture.IncludeRuntime == nil {
		cfg.Posture.IncludeRuntime = boolPtr(true)
	}
	if cfg.Posture.IncludeConfig == nil {
		cfg.Posture.IncludeConfig = boolPtr(true)
	}
	if cfg.Posture.CheckSymlinks == nil {
		cfg.Posture.CheckSymlinks = boolPtr(true)
	}
	if cfg.Posture.EmitEvents == nil {
		cfg.Posture.EmitEvents = boolPtr(true)
	}
	if cfg.Posture.AutoRemediation.Mode == "" {
		cfg.Posture.AutoRemediation.Mode = "warn_only"
	}
}

func applyArtifactDefaults(cfg *ArtifactConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "local"
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = ".agentrun/artifacts"
	}
	if cfg.MetadataPath == "" {
		cfg.MetadataPath = ".agentrun/artifacts/metadata.json"
	}
	if cfg.MetadataBackend == "" {
		cfg.MetadataBackend = "file"
	}
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = 1 * time.Hour
	}
	if cfg.TTLs == nil {
		cfg.TTLs = map[string]time.Duration{
			"default": 30 * 24 * time.Hour,
		}
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if value := strings.TrimSpace(os.Getenv("AGENTRUN_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("AGENTRUN_GRPC_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.GRPCPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("AGENTRUN_HTTP_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("AGENTRUN_METRICS_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.MetricsPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("DATABASE_URL")); value != "" {
		cfg.Database.URL = value
	}
}

type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if cfg.Session.Memory.MaxLines < 0 {
		issues = append(issues, "session.memory.max_lines must be >= 0")
	}
	if cfg.Session.Memory.Days < 0 {
		issues = append(issues, "session.memory.days must be >= 0")
	}
	if cfg.Session.MemoryFlush.Threshold < 0 {
		issues = append(issues, "session.memory_flush.threshold must be >= 0")
	}
	if cfg.Session.Compaction.Threshold < 0 || cfg.Session.Compaction.Threshold > 1 {
		issues = append(issues, "session.compaction.threshold must be between 0 and 1")
	}
	if cfg.Workspace.MaxChars < 0 {
		issues = append(issues, "workspace.max_chars must be >= 0")
	}

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if defaultProvider != "" {
		if _, ok := cfg.LLM.Providers[defaultProvider]; !ok {
			if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
				issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
			}
		}
	}

	if provider := strings.ToLower(strings.TrimSpace(cfg.Tools.WebSearch.Provider)); provider != "" {
		switch provider {
		case "searxng", "brave", "duckduckgo":
		default:
			issues = append(issues, "tools.websearch.provider must be \"searxng\", \"brave\", or \"duckduckgo\"")
		}
	}
	if cfg.Tools.Execution.MaxIterations < 0 {
		issues = append(issues, "tools.execution.max_iterations must be >= 0")
	}
	if cfg.Tools.Execution.Parallelism < 0 {
		issues = append(issues, "tools.execution.parallelism must be >= 0")
	}
	if cfg.Tools.Execution.Timeout < 0 {
		issues = append(issues, "tools.execution.timeout must be >= 0")
	}
	if cfg.Tools.Execution.MaxAttempts < 0 {
		issues = append(issues, "tools.execution.max_attempts must be >= 0")
	}
	if cfg.Tools.Execution.RetryBackoff < 0 {
		issues = append(issues, "tools.execution.retry_backoff must be >= 0")
	}
	if cfg.Tools.Execution.MaxToolCalls < 0 {
		issues = append(issues, "tools.execution.max_tool_calls must be >= 0")
	}
	if profile := strings.ToLower(strings.TrimSpace(cfg.Tools.Execution.Approval.Profile)); profile != "" {
		switch profile {
		case "coding", "messaging", "readonly", "full", "minimal":
		default:
			issues = append(issues, "tools.execution.approval.profile must be \"coding\", \"messaging\", \"readonly\", \"full\", or \"minimal\"")
		}
	}

	if cfg.AgentLoop.MaxTurns < 0 {
		issues = append(issues, "agent_loop.max_turns must be >= 0")
	}
	if cfg.AgentLoop.StallSimilarityThreshold < 0 || cfg.AgentLoop.StallSimilarityThreshold > 1 {
		issues = append(issues, "agent_loop.stall_similarity_threshold must be between 0 and 1")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Policy.Mode)) {
	case "", "default", "acceptedits", "plan", "bypasspermissions":
	default:
		issues = append(issues, "policy.mode must be \"default\", \"acceptEdits\", \"plan\", or \"bypassPermissions\"")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Checkpoint.Backend)) {
	case "", "local", "s3":
	default:
		issues = append(issues, "checkpoint.backend must be \"local\" or \"s3\"")
	}
	if cfg.Checkpoint.Backend == "s3" && strings.TrimSpace(cfg.Checkpoint.S3Bucket) == "" {
		issues = append(issues, "checkpoint.s3_bucket is required when checkpoint.backend is \"s3\"")
	}

	if cfg.Tasks.Enabled {
		if cfg.Tasks.MaxConcurrency < 0 {
			issues = append(issues, "tasks.max_concurrency must be >= 0")
		}
	}

	if cfg.Observability.Tracing.SamplingRate < 0 || cfg.Observability.Tracing.SamplingRate > 1 {
		issues = append(issues, "observability.tracing.sampling_rate must be between 0 and 1")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Security.Posture.AutoRemediation.Mode)) {
	case "", "lockdown", "warn_only":
	default:
		issues = append(issues, "security.posture.auto_remediation.mode must be \"lockdown\" or \"warn_only\"")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Artifacts.Backend)) {
	case "", "local", "s3", "minio":
	default:
		issues = append(issues, "artifacts.backend must be \"local\", \"s3\", or \"minio\"")
	}
	if (cfg.Artifacts.Backend == "s3" || cfg.Artifacts.Backend == "minio") && strings.TrimSpace(cfg.Artifacts.S3Bucket) == "" {
		issues = append(issues, "artifacts.s3_bucket is required when artifacts.backend is \"s3\" or \"minio\"")
	}

	if pluginIssues := pluginValidationIssues(cfg); len(pluginIssues) > 0 {
		issues = append(issues, pluginIssues...)
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}

	return nil
}
