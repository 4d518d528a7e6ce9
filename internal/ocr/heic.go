package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// HEICConverter turns HEIC/HEIF photos into PNG with an external tool:
// heif-convert, magick or sips.
type HEICConverter struct {
	tool   string
	runner Runner
	logger *zap.Logger
}

func NewHEICConverter(tool string, logger *zap.Logger) (*HEICConverter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewHEICConverterWithRunner(tool, execRunner{logger: logger}, logger)
}

func NewHEICConverterWithRunner(tool string, r Runner, logger *zap.Logger) (*HEICConverter, error) {
	switch tool {
	case "heif-convert", "magick", "sips":
	default:
		return nil, fmt.Errorf("HEIC not supported: converter must be one of heif-convert | magick | sips, got %q", tool)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HEICConverter{tool: tool, runner: r, logger: logger}, nil
}

// ToPNG converts content inside a private temp dir removed before returning.
func (c *HEICConverter) ToPNG(ctx context.Context, content []byte) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "f16-heic-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			c.logger.Warn("ocr.heic.tmpdir_remove_failed", zap.String("path", tmpDir), zap.Error(err))
		}
	}()

	in := filepath.Join(tmpDir, "source.heic")
	out := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(in, content, 0o600); err != nil {
		return nil, fmt.Errorf("write heic: %w", err)
	}

	var args []string
	switch c.tool {
	case "sips":
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		args = []string{in, out}
	}
	if _, errb, err := c.runner.Run(ctx, c.tool, args...); err != nil {
		return nil, fmt.Errorf("%s convert failed: %w: %s", c.tool, err, truncate(string(errb), 512))
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read converted png: %w", err)
	}
	return png, nil
}
