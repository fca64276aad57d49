package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/coreforge/agentrun/internal/agent"
	"github.com/coreforge/agentrun/internal/checkpoint"
)

// PatchStageTool computes a pre-image hash for a unified diff's target files
// and stores the diff for later application, without touching the workspace.
type PatchStageTool struct {
	resolver Resolver
	patches  *checkpoint.PatchStore
}

// NewPatchStageTool creates a patch.stage tool scoped to the workspace.
func NewPatchStageTool(cfg Config) *PatchStageTool {
	return &PatchStageTool{resolver: Resolver{Root: cfg.Workspace}, patches: cfg.Patches}
}

// Name returns the tool name.
func (t *PatchStageTool) Name() string { return "patch_stage" }

// Description returns the tool description.
func (t *PatchStageTool) Description() string {
	return "Stage a unified diff against the current file content, returning a patch_id to apply later."
}

// Schema returns the JSON schema for the tool parameters.
func (t *PatchStageTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"patch": map[string]interface{}{
				"type":        "string",
				"description": "Unified diff patch (---/+++ headers required).",
			},
		},
		"required": []string{"patch"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute parses the diff, hashes each target file's current content as the
// pre-image, and stores the staged patch. It does not modify the workspace.
func (t *PatchStageTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	if t.patches == nil {
		return toolError("patch store is not configured"), nil
	}
	var input struct {
		Patch string `json:"patch"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Patch) == "" {
		return toolError("patch is required"), nil
	}

	patches, err := parseUnifiedDiff(input.Patch)
	if err != nil {
		return toolError(err.Error()), nil
	}

	staged := make([]map[string]interface{}, 0, len(patches))
	for _, patch := range patches {
		resolved, err := t.resolver.Resolve(patch.Path)
		if err != nil {
			return toolError(err.Error()), nil
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return toolError(fmt.Sprintf("read file: %v", err)), nil
		}

		diffText := rebuildUnifiedDiff(patch)
		p, err := t.patches.Stage(patch.Path, diffText, data)
		if err != nil {
			return toolError(fmt.Sprintf("stage patch: %v", err)), nil
		}
		staged = append(staged, map[string]interface{}{
			"patch_id":    p.ID,
			"path":        p.Path,
			"base_sha256": p.BaseSHA256,
		})
	}

	payload, err := json.MarshalIndent(map[string]interface{}{"staged": staged}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

// PatchApplyTool applies a previously staged patch, re-verifying the
// pre-image hash before writing.
type PatchApplyTool struct {
	resolver Resolver
	patches  *checkpoint.PatchStore
}

// NewPatchApplyTool creates a patch.apply tool scoped to the workspace.
func NewPatchApplyTool(cfg Config) *PatchApplyTool {
	return &PatchApplyTool{resolver: Resolver{Root: cfg.Workspace}, patches: cfg.Patches}
}

// Name returns the tool name.
func (t *PatchApplyTool) Name() string { return "patch_apply" }

// Description returns the tool description.
func (t *PatchApplyTool) Description() string {
	return "Apply a previously staged patch by ID, reporting a conflict if the file changed since staging."
}

// Schema returns the JSON schema for the tool parameters.
func (t *PatchApplyTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"patch_id": map[string]interface{}{
				"type":        "string",
				"description": "ID returned by patch_stage.",
			},
		},
		"required": []string{"patch_id"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute looks up the staged patch, verifies the pre-image hash against the
// file's current content, and applies the hunks on a match.
func (t *PatchApplyTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	if t.patches == nil {
		return toolError("patch store is not configured"), nil
	}
	var input struct {
		PatchID string `json:"patch_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.PatchID) == "" {
		return toolError("patch_id is required"), nil
	}

	staged, err := t.patches.Get(input.PatchID)
	if err != nil {
		return toolError(err.Error()), nil
	}
	resolved, err := t.resolver.Resolve(staged.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}
	current, err := os.ReadFile(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("read file: %v", err)), nil
	}

	result, err := t.patches.Apply(input.PatchID, current, func(content, diffText string) (string, error) {
		parsed, err := parseUnifiedDiff(diffText)
		if err != nil {
			return "", err
		}
		if len(parsed) == 0 {
			return "", fmt.Errorf("staged patch has no file sections")
		}
		applied, err := applyFilePatch(content, parsed[0])
		if err != nil {
			return "", err
		}
		return applied.Content, nil
	})
	if err != nil {
		return toolError(err.Error()), nil
	}

	if result.Applied {
		if err := os.WriteFile(resolved, []byte(result.Content), 0o644); err != nil {
			return toolError(fmt.Sprintf("write file: %v", err)), nil
		}
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"applied":   result.Applied,
		"conflicts": result.Conflicts,
		"path":      staged.Path,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

type filePatch struct {
	Path  string
	Hunks []hunk
}

type hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []string
}

type patchResult struct {
	Content string
	Added   int
	Removed int
}

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

func parseUnifiedDiff(patch string) ([]filePatch, error) {
	lines := strings.Split(patch, "\n")
	var patches []filePatch
	var current *filePatch
	var currentHunk *hunk

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "diff ") || strings.HasPrefix(line, "index "):
			continue
		case strings.HasPrefix(line, "--- "):
			oldPath := strings.TrimSpace(strings.TrimPrefix(line, "--- "))
			_ = oldPath
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "+++ ") {
				return nil, fmt.Errorf("invalid patch: missing +++ header")
			}
			newPath := strings.TrimSpace(strings.TrimPrefix(lines[i+1], "+++ "))
			newPath = strings.TrimPrefix(strings.TrimPrefix(newPath, "b/"), "a/")
			patches = append(patches, filePatch{Path: newPath})
			current = &patches[len(patches)-1]
			currentHunk = nil
			i++
		case strings.HasPrefix(line, "@@ "):
			if current == nil {
				return nil, fmt.Errorf("invalid patch: hunk without file header")
			}
			match := hunkHeader.FindStringSubmatch(line)
			if match == nil {
				return nil, fmt.Errorf("invalid patch: malformed hunk header")
			}
			oldStart := atoi(match[1])
			oldLines := atoiDefault(match[2], 1)
			newStart := atoi(match[3])
			newLines := atoiDefault(match[4], 1)
			h := hunk{
				OldStart: oldStart,
				OldLines: oldLines,
				NewStart: newStart,
				NewLines: newLines,
			}
			current.Hunks = append(current.Hunks, h)
			currentHunk = &current.Hunks[len(current.Hunks)-1]
		default:
			if currentHunk == nil {
				continue
			}
			if line == "\\ No newline at end of file" {
				continue
			}
			if line == "" {
				continue
			}
			prefix := line[:1]
			if prefix != " " && prefix != "+" && prefix != "-" {
				return nil, fmt.Errorf("invalid patch line: %s", line)
			}
			currentHunk.Lines = append(currentHunk.Lines, line)
		}
	}

	if len(patches) == 0 {
		return nil, fmt.Errorf("invalid patch: no file headers found")
	}
	return patches, nil
}

// rebuildUnifiedDiff serializes a parsed filePatch back into unified-diff
// text, so the patch store can persist exactly the hunks patch_stage parsed
// (dropping any preceding garbage lines the original input carried).
func rebuildUnifiedDiff(patch filePatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", patch.Path)
	fmt.Fprintf(&b, "+++ b/%s\n", patch.Path)
	for _, h := range patch.Hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
		for _, line := range h.Lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func applyFilePatch(content string, patch filePatch) (patchResult, error) {
	hadTrailing := strings.HasSuffix(content, "\n")
	trimmed := strings.TrimSuffix(content, "\n")
	var lines []string
	if trimmed == "" {
		lines = []string{}
	} else {
		lines = strings.Split(trimmed, "\n")
	}

	added := 0
	removed := 0

	for _, h := range patch.Hunks {
		idx := h.OldStart - 1
		if idx < 0 {
			idx = 0
		}
		for _, line := range h.Lines {
			if line == "" {
				continue
			}
			prefix := line[:1]
			text := ""
			if len(line) > 1 {
				text = line[1:]
			}
			switch prefix {
			case " ":
				if idx >= len(lines) || lines[idx] != text {
					return patchResult{}, fmt.Errorf("context mismatch")
				}
				idx++
			case "-":
				if idx >= len(lines) || lines[idx] != text {
					return patchResult{}, fmt.Errorf("delete mismatch")
				}
				lines = append(lines[:idx], lines[idx+1:]...)
				removed++
			case "+":
				lines = append(lines[:idx], append([]string{text}, lines[idx:]...)...)
				idx++
				added++
			}
		}
	}

	result := strings.Join(lines, "\n")
	if hadTrailing {
		result += "\n"
	}
	return patchResult{Content: result, Added: added, Removed: removed}, nil
}

func atoi(value string) int {
	if value == "" {
		return 0
	}
	var out int
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0
		}
		out = out*10 + int(r-'0')
	}
	return out
}

func atoiDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed := atoi(value)
	if parsed == 0 {
		return fallback
	}
	return parsed
}
