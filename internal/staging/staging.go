// Package staging holds uploaded documents for the lifetime of one request.
package staging

import (
	"context"
	"path/filepath"
	"strings"
)

// Stager persists an upload and hands back a handle the caller must Remove.
type Stager interface {
	Stage(ctx context.Context, filename string, content []byte, contentType string) (Handle, error)
}

// Handle is one staged upload.
type Handle interface {
	Location() string
	Read(ctx context.Context) ([]byte, error)
	Remove(ctx context.Context) error
}

// safeExt keeps the lowercased extension of a client filename, or "" when it
// carries anything but letters and digits.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
