package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// workdir is the per-video scratch directory. Release removes it unless it
// was marked for retention.
type workdir struct {
	path   string
	keep   bool
	logger *zerolog.Logger
}

func acquireWorkdir(root, videoID string, logger *zerolog.Logger) (*workdir, error) {
	if root == "" {
		root = os.TempDir()
	}
	path := filepath.Join(root, videoID)
	// A previous run for this video may have left files behind.
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("reset workdir: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	return &workdir{path: path, logger: logger}, nil
}

func (w *workdir) Join(name string) string { return filepath.Join(w.path, name) }

func (w *workdir) Retain() { w.keep = true }

func (w *workdir) Release() {
	if w == nil {
		return
	}
	if w.keep {
		w.logger.Info().Str("workdir", w.path).Msg("keeping working directory")
		return
	}
	if err := os.RemoveAll(w.path); err != nil {
		w.logger.Warn().Err(err).Str("workdir", w.path).Msg("failed to remove working directory")
	}
}
