// Package git implements read-only git inspection tools (status, diff,
// show) scoped to a workspace root, grounded on the same os/exec-wrapping
// idiom internal/tools/exec uses for shell commands.
package git

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/coreforge/agentrun/internal/agent"
)

const runTimeout = 30 * time.Second

func run(ctx context.Context, workspace string, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "git", args...)
	cmd.Dir = workspace
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func toolError(message string) *agent.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &agent.ToolResult{Content: message, IsError: true}
	}
	return &agent.ToolResult{Content: string(payload), IsError: true}
}

// StatusTool reports the working tree's status (git status --porcelain).
type StatusTool struct {
	workspace string
}

// NewStatusTool creates a git.status tool scoped to the workspace.
func NewStatusTool(workspace string) *StatusTool {
	return &StatusTool{workspace: workspace}
}

func (t *StatusTool) Name() string        { return "git_status" }
func (t *StatusTool) Description() string { return "Show the working tree's git status." }
func (t *StatusTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *StatusTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	out, err := run(ctx, t.workspace, "status", "--porcelain=v1", "--branch")
	if err != nil {
		return toolError(err.Error()), nil
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	payload, err := json.MarshalIndent(map[string]interface{}{"entries": lines}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

// DiffTool shows the diff against HEAD (or a specific ref/path).
type DiffTool struct {
	workspace string
}

// NewDiffTool creates a git.diff tool scoped to the workspace.
func NewDiffTool(workspace string) *DiffTool {
	return &DiffTool{workspace: workspace}
}

func (t *DiffTool) Name() string        { return "git_diff" }
func (t *DiffTool) Description() string { return "Show unstaged or staged diffs, optionally scoped to a path." }
func (t *DiffTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":   map[string]interface{}{"type": "string", "description": "Limit the diff to this path."},
			"staged": map[string]interface{}{"type": "boolean", "description": "Show staged changes instead of working tree changes."},
		},
	}
	payload, _ := json.Marshal(schema)
	return payload
}

func (t *DiffTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Path   string `json:"path"`
		Staged bool   `json:"staged"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
		}
	}
	args := []string{"diff"}
	if input.Staged {
		args = append(args, "--cached")
	}
	if input.Path != "" {
		args = append(args, "--", input.Path)
	}
	out, err := run(ctx, t.workspace, args...)
	if err != nil {
		return toolError(err.Error()), nil
	}
	return &agent.ToolResult{Content: out}, nil
}

// ShowTool shows a specific commit or object (git show).
type ShowTool struct {
	workspace string
}

// NewShowTool creates a git.show tool scoped to the workspace.
func NewShowTool(workspace string) *ShowTool {
	return &ShowTool{workspace: workspace}
}

func (t *ShowTool) Name() string        { return "git_show" }
func (t *ShowTool) Description() string { return "Show a git object (commit, tag, or blob) by ref." }
func (t *ShowTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ref": map[string]interface{}{"type": "string", "description": "Ref, commit, or object to show."},
		},
		"required": []string{"ref"},
	}
	payload, _ := json.Marshal(schema)
	return payload
}

func (t *ShowTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Ref string `json:"ref"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Ref) == "" {
		return toolError("ref is required"), nil
	}
	out, err := run(ctx, t.workspace, "show", input.Ref)
	if err != nil {
		return toolError(err.Error()), nil
	}
	return &agent.ToolResult{Content: out}, nil
}
