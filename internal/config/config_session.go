package config

import "time"

type SessionConfig struct {
	DefaultAgentID string               `yaml:"default_agent_id"`
	Memory         MemoryConfig         `yaml:"memory"`
	MemoryFlush    MemoryFlushConfig    `yaml:"memory_flush"`
	ContextPruning ContextPruningConfig `yaml:"context_pruning"`
	Compaction     CompactionConfig     `yaml:"compaction"`
	Scoping        SessionScopeConfig   `yaml:"scoping"`
}

// CompactionConfig controls when and how the conversation manager compacts
// message history to stay under the provider's context window.
type CompactionConfig struct {
	// Threshold is the fraction of the context window (0-1) at which
	// compaction is triggered. Default: 0.85.
	Threshold float64 `yaml:"threshold"`

	// KeepFirst keeps the first N messages (typically the system prompt and
	// opening user turn) uncompacted.
	KeepFirst int `yaml:"keep_first"`

	// KeepRecent keeps the most recent N messages uncompacted.
	KeepRecent int `yaml:"keep_recent"`
}

// SessionScopeConfig controls advanced session scoping behavior.
type SessionScopeConfig struct {
	// Reset configures default session reset behavior.
	Reset ResetConfig `yaml:"reset"`

	// ResetByType configures reset behavior per conversation type (dm, group, thread).
	ResetByType map[string]ResetConfig `yaml:"reset_by_type"`
}

// ResetConfig controls when sessions are automatically reset.
type ResetConfig struct {
	// Mode is the reset mode: "daily", "idle", "daily+idle", or "never" (default).
	Mode string `yaml:"mode"`

	// AtHour is the hour (0-23) to reset sessions when mode includes "daily".
	AtHour int `yaml:"at_hour"`

	// IdleMinutes is the number of minutes of inactivity before reset when mode includes "idle".
	IdleMinutes int `yaml:"idle_minutes"`
}

type MemoryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
	MaxLines  int    `yaml:"max_lines"`
	Days      int    `yaml:"days"`
	Scope     string `yaml:"scope"`
}

type MemoryFlushConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Threshold int    `yaml:"threshold"`
	Prompt    string `yaml:"prompt"`
}

// ContextPruningConfig controls in-memory tool result pruning for sessions,
// the config-facing knob for the conversation manager's compaction pass.
type ContextPruningConfig struct {
	Mode                 string                  `yaml:"mode"`
	TTL                  *time.Duration          `yaml:"ttl"`
	KeepLastAssistants   *int                    `yaml:"keep_last_assistants"`
	SoftTrimRatio        *float64                `yaml:"soft_trim_ratio"`
	HardClearRatio       *float64                `yaml:"hard_clear_ratio"`
	MinPrunableToolChars *int                    `yaml:"min_prunable_tool_chars"`
	Tools                ContextPruningToolMatch `yaml:"tools"`
	SoftTrim             ContextPruningSoftTrim  `yaml:"soft_trim"`
	HardClear            ContextPruningHardClear `yaml:"hard_clear"`
}

// ContextPruningToolMatch selects which tool results can be trimmed.
type ContextPruningToolMatch struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// ContextPruningSoftTrim configures soft trimming of tool result content.
type ContextPruningSoftTrim struct {
	MaxChars  *int `yaml:"max_chars"`
	HeadChars *int `yaml:"head_chars"`
	TailChars *int `yaml:"tail_chars"`
}

// ContextPruningHardClear configures hard clearing of tool result content.
type ContextPruningHardClear struct {
	Enabled     *bool  `yaml:"enabled"`
	Placeholder string `yaml:"placeholder"`
}
