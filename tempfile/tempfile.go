// Package tempfile allocates unique scratch paths and guarantees idempotent
// cleanup, grounded on the teacher's general "temp file + defer cleanup"
// idiom (e.g. thumbnails/thumbnails.go's os.MkdirTemp/os.RemoveAll pairing),
// generalized into a reusable owned-handle type per spec §3's TempFileHandle.
package tempfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capsoftware/cap-media-server/config"
)

// Dir returns the service-owned scratch directory, creating it if needed.
func Dir() (string, error) {
	dir := filepath.Join(os.TempDir(), config.ScratchDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}
	return dir, nil
}

// Handle is an owned scratch file. Cleanup is idempotent and tolerates the
// file already being gone, per spec §3.
type Handle struct {
	Path string

	once sync.Once
}

// New allocates a unique path under the scratch directory with the given
// extension (including the leading dot, e.g. ".mp4"). The file is not
// created; callers write to Path themselves.
func New(ext string) (*Handle, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return &Handle{Path: filepath.Join(dir, uuid.NewString()+ext)}, nil
}

// Cleanup removes the underlying file. Safe to call multiple times and safe
// to call when the file was never created or already removed.
func (h *Handle) Cleanup() error {
	var err error
	h.once.Do(func() {
		if removeErr := os.Remove(h.Path); removeErr != nil && !os.IsNotExist(removeErr) {
			err = removeErr
		}
	})
	return err
}

// PurgeOlderThan removes scratch files whose modification time is older than
// maxAge, returning the count removed. Backs the /video/cleanup endpoint.
func PurgeOlderThan(maxAge time.Duration) (int, error) {
	dir, err := Dir()
	if err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading scratch dir: %w", err)
	}

	cutoff := config.Clock.Now().Add(-maxAge)
	cleaned := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				cleaned++
			}
		}
	}
	return cleaned, nil
}
