package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore persists artifacts on the local filesystem under a root
// directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at root. If root is empty a
// directory under the system temp dir is used. The root is created if it
// doesn't exist.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "adstudio")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the artifact root directory.
func (s *LocalStore) Root() string {
	return s.root
}

// VideoPath returns the canonical local path for a video artifact.
func (s *LocalStore) VideoPath(projectID string, segmentIndex, inputIndex int, videoID string) string {
	return filepath.Join(s.root, relVideoPath(projectID, segmentIndex, inputIndex, videoID))
}

// Exists reports whether a regular file is already persisted at path.
func (s *LocalStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Save writes the artifact to path, creating parent directories. A
// partially written file is removed on error so Exists never reports a
// truncated artifact as persisted.
func (s *LocalStore) Save(ctx context.Context, path string, r io.Reader) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 - path is built from the canonical convention
	if err != nil {
		return fmt.Errorf("create artifact file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write artifact file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close artifact file: %w", err)
	}
	return nil
}

// Compile-time check that LocalStore implements Store.
var _ Store = (*LocalStore)(nil)
