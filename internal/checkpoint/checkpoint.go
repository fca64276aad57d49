// Package checkpoint implements the snapshot and two-phase patch store that
// write-capable tools go through before touching workspace files.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is an immutable record of a workspace snapshot taken before a
// write-capable tool ran. Once created it is never mutated.
type Checkpoint struct {
	ID           string    `json:"id"`
	Reason       string    `json:"reason"`
	SnapshotPath string    `json:"snapshot_path"`
	FilesCount   int       `json:"files_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// manifestEntry records the content-addressed blob a path resolved to inside
// one checkpoint's snapshot.
type manifestEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// Store snapshots touched files under a runtime directory, deduplicating
// blob content by SHA-256 across every checkpoint it has ever created.
// Mirrors the index-file-plus-content-directory layout the artifact store
// uses, so recovery and pruning follow the same shape.
type Store struct {
	mu          sync.Mutex
	root        string
	retainCount int
	order       []string // checkpoint IDs, oldest first
}

// NewStore creates a checkpoint store rooted at dir (created if absent).
// retainCount <= 0 disables pruning.
func NewStore(dir string, retainCount int) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint blob directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "snapshots"), 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint snapshot directory: %w", err)
	}
	return &Store{root: dir, retainCount: retainCount}, nil
}

// Create snapshots the given files (path -> current content) and returns the
// resulting Checkpoint. Blob content is deduplicated by SHA-256: a file whose
// hash already exists under blobs/ is never written twice.
func (s *Store) Create(reason string, files map[string][]byte) (*Checkpoint, error) {
	id := uuid.NewString()
	snapshotDir := filepath.Join(s.root, "snapshots", id)
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	manifest := make([]manifestEntry, 0, len(files))
	for path, content := range files {
		sum := sha256.Sum256(content)
		hash := hex.EncodeToString(sum[:])
		if err := s.writeBlobIfAbsent(hash, content); err != nil {
			return nil, fmt.Errorf("store blob for %s: %w", path, err)
		}
		manifest = append(manifest, manifestEntry{Path: path, SHA256: hash})
	}

	manifestPath := filepath.Join(snapshotDir, "manifest.json")
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, payload, 0o644); err != nil {
		return nil, fmt.Errorf("write snapshot manifest: %w", err)
	}

	cp := &Checkpoint{
		ID:           id,
		Reason:       reason,
		SnapshotPath: snapshotDir,
		FilesCount:   len(files),
		CreatedAt:    time.Now(),
	}

	s.mu.Lock()
	s.order = append(s.order, id)
	pruned := s.pruneLocked()
	s.mu.Unlock()
	for _, old := range pruned {
		_ = os.RemoveAll(filepath.Join(s.root, "snapshots", old))
	}

	return cp, nil
}

// Blob returns the content stored for a hash previously recorded in a
// snapshot manifest, used by rewind to restore a file's prior content.
func (s *Store) Blob(hash string) ([]byte, error) {
	return os.ReadFile(s.blobPath(hash))
}

func (s *Store) writeBlobIfAbsent(hash string, content []byte) error {
	path := s.blobPath(hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) blobPath(hash string) string {
	prefix := hash
	if len(prefix) > 2 {
		prefix = hash[:2]
	}
	return filepath.Join(s.root, "blobs", prefix, hash)
}

// pruneLocked drops the oldest checkpoint IDs beyond retainCount and returns
// the ones dropped. Caller holds s.mu.
func (s *Store) pruneLocked() []string {
	if s.retainCount <= 0 || len(s.order) <= s.retainCount {
		return nil
	}
	overflow := len(s.order) - s.retainCount
	dropped := append([]string(nil), s.order[:overflow]...)
	s.order = s.order[overflow:]
	return dropped
}

// sha256Hex is a small helper shared by the checkpoint and patch stores so
// both hash pre-images the same way.
func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var _ = io.EOF // keep io imported for future streaming snapshot reads
