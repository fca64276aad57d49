package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Patch is a staged unified diff, keyed by the SHA-256 of the file content it
// was computed against. Apply re-checks that hash before touching the
// workspace, so a patch staged against stale content is reported as a
// conflict rather than applied blind.
type Patch struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	BaseSHA256 string    `json:"base_sha256"`
	UnifiedDiff string   `json:"unified_diff"`
	CreatedAt  time.Time `json:"created_at"`
}

// ApplyResult reports whether a staged patch applied cleanly.
type ApplyResult struct {
	Applied   bool
	Conflicts []string
	Content   string
}

// PatchStore persists staged patches to disk keyed by patch ID, so staging
// and applying can happen in separate tool calls (and separate processes).
type PatchStore struct {
	mu    sync.Mutex
	root  string
	cache map[string]*Patch
}

// NewPatchStore creates a patch store rooted at dir (created if absent).
func NewPatchStore(dir string) (*PatchStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create patch store directory: %w", err)
	}
	return &PatchStore{root: dir, cache: make(map[string]*Patch)}, nil
}

// Stage records a unified diff against the pre-image bytes it was derived
// from, and returns the new Patch's ID.
func (p *PatchStore) Stage(path, unifiedDiff string, baseContent []byte) (*Patch, error) {
	patch := &Patch{
		ID:          uuid.NewString(),
		Path:        path,
		BaseSHA256:  sha256Hex(baseContent),
		UnifiedDiff: unifiedDiff,
		CreatedAt:   time.Now(),
	}

	payload, err := json.MarshalIndent(patch, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode staged patch: %w", err)
	}
	dest := p.patchPath(patch.ID)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return nil, fmt.Errorf("write staged patch: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return nil, fmt.Errorf("persist staged patch: %w", err)
	}

	p.mu.Lock()
	p.cache[patch.ID] = patch
	p.mu.Unlock()
	return patch, nil
}

// Get loads a previously staged patch by ID.
func (p *PatchStore) Get(id string) (*Patch, error) {
	p.mu.Lock()
	if cached, ok := p.cache[id]; ok {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	data, err := os.ReadFile(p.patchPath(id))
	if err != nil {
		return nil, fmt.Errorf("load staged patch %s: %w", id, err)
	}
	var patch Patch
	if err := json.Unmarshal(data, &patch); err != nil {
		return nil, fmt.Errorf("decode staged patch %s: %w", id, err)
	}

	p.mu.Lock()
	p.cache[id] = &patch
	p.mu.Unlock()
	return &patch, nil
}

// Apply verifies the staged patch's pre-image hash against currentContent
// and, on a match, applies the hunks via fn (the caller's unified-diff
// applicator). A hash mismatch is reported as a conflict rather than applied,
// since the file drifted since the patch was staged.
func (p *PatchStore) Apply(id string, currentContent []byte, fn func(content string, diff string) (string, error)) (ApplyResult, error) {
	patch, err := p.Get(id)
	if err != nil {
		return ApplyResult{}, err
	}

	currentHash := sha256Hex(currentContent)
	if currentHash != patch.BaseSHA256 {
		return ApplyResult{
			Applied:   false,
			Conflicts: []string{fmt.Sprintf("%s changed since patch %s was staged (expected sha256 %s, found %s)", patch.Path, id, patch.BaseSHA256, currentHash)},
		}, nil
	}

	updated, err := fn(string(currentContent), patch.UnifiedDiff)
	if err != nil {
		return ApplyResult{Applied: false, Conflicts: []string{err.Error()}}, nil
	}
	return ApplyResult{Applied: true, Content: updated}, nil
}

func (p *PatchStore) patchPath(id string) string {
	return filepath.Join(p.root, id+".json")
}
