// Package localstore is the filesystem-backed storage provider. Artifacts
// land under {dir}/{runID}/ with sequential names and are addressed by stable
// /images/{runID}/{name} URLs.
package localstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// LocalStore writes binary artifacts to an afero filesystem.
type LocalStore struct {
	fs    afero.Fs
	dir   string
	runID string

	mu   sync.Mutex
	next int
}

// New creates a store rooted at dir for one run's artifacts.
func New(fs afero.Fs, dir, runID string) *LocalStore {
	return &LocalStore{fs: fs, dir: dir, runID: runID}
}

// Store implements storage.Store.
func (s *LocalStore) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("localstore: refusing to store empty artifact")
	}

	s.mu.Lock()
	s.next++
	name := fmt.Sprintf("image_%03d%s", s.next, extensionFor(contentType))
	s.mu.Unlock()

	runDir := filepath.Join(s.dir, s.runID)
	if err := s.fs.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("localstore: creating %s: %w", runDir, err)
	}
	path := filepath.Join(runDir, name)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("localstore: writing %s: %w", path, err)
	}

	return "/images/" + s.runID + "/" + name, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
