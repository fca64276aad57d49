// Package notebook implements read/edit tools over Jupyter .ipynb files,
// treating each notebook as its underlying JSON cell array rather than
// shelling out to a notebook runtime.
package notebook

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/coreforge/agentrun/internal/agent"
	"github.com/coreforge/agentrun/internal/checkpoint"
	"github.com/coreforge/agentrun/internal/tools/files"
)

// notebookDoc holds a parsed notebook as raw top-level fields plus its cell
// array decoded one level deeper, so non-cell fields (metadata, nbformat
// version, ...) round-trip untouched while cell sources are editable.
type notebookDoc struct {
	raw   map[string]json.RawMessage
	cells []map[string]json.RawMessage
}

func loadNotebook(path string) (*notebookDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse notebook: %w", err)
	}
	var cells []map[string]json.RawMessage
	if cellsRaw, ok := raw["cells"]; ok {
		if err := json.Unmarshal(cellsRaw, &cells); err != nil {
			return nil, fmt.Errorf("parse notebook cells: %w", err)
		}
	}
	return &notebookDoc{raw: raw, cells: cells}, nil
}

func (d *notebookDoc) sourceText(index int) (string, error) {
	if index < 0 || index >= len(d.cells) {
		return "", fmt.Errorf("cell index %d out of range (notebook has %d cells)", index, len(d.cells))
	}
	var lines []string
	if err := json.Unmarshal(d.cells[index]["source"], &lines); err == nil {
		return strings.Join(lines, ""), nil
	}
	var text string
	if err := json.Unmarshal(d.cells[index]["source"], &text); err != nil {
		return "", fmt.Errorf("decode cell %d source: %w", index, err)
	}
	return text, nil
}

func (d *notebookDoc) setSource(index int, text string) error {
	if index < 0 || index >= len(d.cells) {
		return fmt.Errorf("cell index %d out of range (notebook has %d cells)", index, len(d.cells))
	}
	lines := splitKeepingNewlines(text)
	encoded, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	d.cells[index]["source"] = encoded
	return nil
}

func splitKeepingNewlines(text string) []string {
	if text == "" {
		return []string{}
	}
	parts := strings.SplitAfter(text, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func (d *notebookDoc) marshal() ([]byte, error) {
	cellsEncoded, err := json.Marshal(d.cells)
	if err != nil {
		return nil, err
	}
	d.raw["cells"] = cellsEncoded
	return json.MarshalIndent(d.raw, "", " ")
}

func toolError(message string) *agent.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &agent.ToolResult{Content: message, IsError: true}
	}
	return &agent.ToolResult{Content: string(payload), IsError: true}
}

// ReadTool reads one cell's source (or all cells, if no index given) from a
// notebook file.
type ReadTool struct {
	resolver files.Resolver
}

// NewReadTool creates a notebook.read tool scoped to the workspace.
func NewReadTool(workspace string) *ReadTool {
	return &ReadTool{resolver: files.Resolver{Root: workspace}}
}

func (t *ReadTool) Name() string        { return "notebook_read" }
func (t *ReadTool) Description() string { return "Read cell source from a Jupyter notebook." }
func (t *ReadTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":       map[string]interface{}{"type": "string", "description": "Path to the .ipynb file."},
			"cell_index": map[string]interface{}{"type": "integer", "description": "Cell index to read; omit to read all cells."},
		},
		"required": []string{"path"},
	}
	payload, _ := json.Marshal(schema)
	return payload
}

func (t *ReadTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Path      string `json:"path"`
		CellIndex *int   `json:"cell_index"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}
	doc, err := loadNotebook(resolved)
	if err != nil {
		return toolError(err.Error()), nil
	}

	if input.CellIndex != nil {
		text, err := doc.sourceText(*input.CellIndex)
		if err != nil {
			return toolError(err.Error()), nil
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{"cell_index": *input.CellIndex, "source": text}, "", "  ")
		return &agent.ToolResult{Content: string(payload)}, nil
	}

	cells := make([]map[string]interface{}, 0, len(doc.cells))
	for i := range doc.cells {
		text, err := doc.sourceText(i)
		if err != nil {
			return toolError(err.Error()), nil
		}
		var cellType string
		_ = json.Unmarshal(doc.cells[i]["cell_type"], &cellType)
		cells = append(cells, map[string]interface{}{"index": i, "cell_type": cellType, "source": text})
	}
	payload, _ := json.MarshalIndent(map[string]interface{}{"cells": cells}, "", "  ")
	return &agent.ToolResult{Content: string(payload)}, nil
}

// EditTool replaces one cell's source text in place.
type EditTool struct {
	resolver    files.Resolver
	checkpoints *checkpoint.Store
}

// NewEditTool creates a notebook.edit tool scoped to the workspace.
func NewEditTool(workspace string, checkpoints *checkpoint.Store) *EditTool {
	return &EditTool{resolver: files.Resolver{Root: workspace}, checkpoints: checkpoints}
}

func (t *EditTool) Name() string        { return "notebook_edit" }
func (t *EditTool) Description() string { return "Replace a cell's source in a Jupyter notebook." }
func (t *EditTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":       map[string]interface{}{"type": "string", "description": "Path to the .ipynb file."},
			"cell_index": map[string]interface{}{"type": "integer", "description": "Cell index to replace."},
			"source":     map[string]interface{}{"type": "string", "description": "New source text for the cell."},
		},
		"required": []string{"path", "cell_index", "source"},
	}
	payload, _ := json.Marshal(schema)
	return payload
}

func (t *EditTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Path      string `json:"path"`
		CellIndex int    `json:"cell_index"`
		Source    string `json:"source"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}

	original, err := os.ReadFile(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("read notebook: %v", err)), nil
	}

	checkpointID := ""
	if t.checkpoints != nil {
		cp, cpErr := t.checkpoints.Create("notebook.edit "+input.Path, map[string][]byte{input.Path: original})
		if cpErr != nil {
			return toolError(fmt.Sprintf("create checkpoint: %v", cpErr)), nil
		}
		checkpointID = cp.ID
	}

	doc, err := loadNotebook(resolved)
	if err != nil {
		return toolError(err.Error()), nil
	}
	if err := doc.setSource(input.CellIndex, input.Source); err != nil {
		return toolError(err.Error()), nil
	}
	encoded, err := doc.marshal()
	if err != nil {
		return toolError(fmt.Sprintf("encode notebook: %v", err)), nil
	}
	if err := os.WriteFile(resolved, encoded, 0o644); err != nil {
		return toolError(fmt.Sprintf("write notebook: %v", err)), nil
	}

	payload, _ := json.MarshalIndent(map[string]interface{}{
		"path":          input.Path,
		"cell_index":    input.CellIndex,
		"checkpoint_id": checkpointID,
	}, "", "  ")
	return &agent.ToolResult{Content: string(payload)}, nil
}
