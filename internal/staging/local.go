package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// Local stages uploads as temp files under Dir.
type Local struct {
	Dir    string
	logger *zap.Logger
}

func NewLocal(dir string, logger *zap.Logger) (*Local, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir %s: %w", dir, err)
	}
	return &Local{Dir: dir, logger: logger}, nil
}

func (l *Local) Stage(_ context.Context, filename string, content []byte, _ string) (Handle, error) {
	f, err := os.CreateTemp(l.Dir, "upload-*"+safeExt(filename))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	l.logger.Debug("staging.local.stored", zap.String("path", path), zap.Int("bytes", len(content)))
	return &localHandle{path: path, logger: l.logger}, nil
}

type localHandle struct {
	path   string
	logger *zap.Logger
}

func (h *localHandle) Location() string { return h.path }

func (h *localHandle) Read(context.Context) ([]byte, error) {
	b, err := os.ReadFile(h.path)
	if err != nil {
		return nil, fmt.Errorf("read staged file: %w", err)
	}
	return b, nil
}

// Remove is idempotent.
func (h *localHandle) Remove(context.Context) error {
	if err := os.Remove(h.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		h.logger.Warn("staging.local.remove_error", zap.String("path", h.path), zap.Error(err))
		return err
	}
	return nil
}
