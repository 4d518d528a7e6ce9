// Package ingest finds Form 16 documents on disk and feeds them to the pipeline.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/form16-extractor/constants"
)

type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}

// Collect expands paths into the supported files they name. Directories are
// walked recursively; explicit file arguments are kept even when their
// extension is unknown, so the pipeline can reject them with a typed error.
func Collect(paths []string, skipHidden bool) ([]string, DirStats, error) {
	var (
		files []string
		stats DirStats
		errs  []error
	)
	for _, root := range paths {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		info, err := os.Stat(root)
		if err != nil {
			stats.Failed++
			errs = append(errs, err)
			continue
		}
		if !info.IsDir() {
			stats.Scanned++
			stats.Matched++
			files = append(files, root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				stats.Failed++
				errs = append(errs, walkErr)
				return nil
			}
			if skipHidden && path != root && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			stats.Scanned++
			if !AllowedExt(filepath.Ext(path)) {
				stats.Skipped++
				return nil
			}
			stats.Matched++
			files = append(files, path)
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("walk %s: %w", root, err))
		}
	}
	return files, stats, errors.Join(errs...)
}

// AllowedExt reports whether a file extension is one the pipeline accepts.
func AllowedExt(ext string) bool {
	return constants.MapExtToKind(ext) != ""
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
