// Package media owns the on-disk audio handling for one pipeline invocation:
// a private scratch directory for transient files and the ffmpeg adapter that
// normalizes arbitrary input audio into 16 kHz mono WAV.
package media

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is a per-invocation namespace for transient audio files. Each
// workspace lives in its own uuid-named directory so concurrent invocations
// never observe each other's files.
type Workspace struct {
	dir string
}

// NewWorkspace creates an empty scratch directory under root. An empty root
// falls back to the system temp directory.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	dir := filepath.Join(root, "ovoz-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Path resolves name inside the workspace without creating anything.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Acquire creates or truncates a file named name inside the workspace and
// writes data to it.
func (w *Workspace) Acquire(name string, data []byte) (string, error) {
	path := w.Path(name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write transient file: %w", err)
	}
	return path, nil
}

// Release removes the workspace and everything in it. Safe to call more than
// once; a workspace that is already gone is not an error.
func (w *Workspace) Release() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("release workspace: %w", err)
	}
	return nil
}

// Dir exposes the namespace directory, mainly for logging.
func (w *Workspace) Dir() string {
	return w.dir
}
