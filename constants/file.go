package constants

import (
	"mime"
	"path/filepath"
	"strings"
)

// InputKind tags which extraction path an upload takes.
type InputKind string

const (
	PDF   InputKind = "PDF"
	IMAGE InputKind = "IMAGE"
)

// AllowedExtensions holds the file extensions accepted for upload.
var AllowedExtensions = map[string]InputKind{
	"pdf":  PDF,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
	"png":  IMAGE,
	"webp": IMAGE,
	"gif":  IMAGE,
	"heic": IMAGE,
	"heif": IMAGE,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToKind returns the input kind for an extension, or "" when unsupported.
func MapExtToKind(ext string) InputKind {
	return AllowedExtensions[NormalizeExt(ext)]
}

// MapMIMEToKind mirrors the upload filter: image/* goes down the image path,
// application/pdf down the text path, anything else is rejected.
func MapMIMEToKind(mimeType string) InputKind {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	switch {
	case mt == "application/pdf":
		return PDF
	case strings.HasPrefix(mt, "image/"):
		return IMAGE
	default:
		return ""
	}
}

// DetectKind prefers the declared MIME type and falls back to the filename extension.
func DetectKind(mimeType, filename string) InputKind {
	if k := MapMIMEToKind(mimeType); k != "" {
		return k
	}
	return MapExtToKind(filepath.Ext(filename))
}

// ImageMIMEFromExt guesses an image MIME type for a filename.
func ImageMIMEFromExt(filename string) string {
	ext := NormalizeExt(filepath.Ext(filename))
	if mt := mime.TypeByExtension("." + ext); strings.HasPrefix(mt, "image/") {
		return mt
	}
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "heic", "heif":
		return "image/" + ext
	default:
		return "image/png"
	}
}
