package converter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// workspacePrefix marks directories created by NewWorkspace so SweepStale
// never touches anything else in a shared temp root.
const workspacePrefix = "pdfrecover-"

// Workspace is a private temp directory for one tool invocation. Close
// removes it and everything inside; callers defer Close right after
// creation so every exit path releases it.
type Workspace struct {
	Dir string
}

// NewWorkspace creates a fresh directory under root (os.TempDir when empty).
func NewWorkspace(root, prefix string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	dir := filepath.Join(root, fmt.Sprintf("%s%s-%s", workspacePrefix, prefix, uuid.New().String()))
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Path returns name inside the workspace.
func (w *Workspace) Path(name string) string { return filepath.Join(w.Dir, filepath.Base(name)) }

// Close removes the workspace.
func (w *Workspace) Close() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		log.Warn().Err(err).Str("dir", w.Dir).Msg("failed to remove workspace")
		return err
	}
	return nil
}

// SweepStale removes workspaces under root older than maxAge. They are only
// left behind when the process died mid-conversion. Returns how many were removed.
func SweepStale(root string, maxAge time.Duration) int {
	if root == "" {
		root = os.TempDir()
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), workspacePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Str("root", root).Msg("swept stale conversion workspaces")
	}
	return removed
}
