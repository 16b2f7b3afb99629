package mediatypes

import (
	"path/filepath"
	"strings"
)

// Format identifies an image codec family. Upscaled cache entries are
// written in the same family as their source.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatWebP    Format = "webp"
	FormatUnknown Format = "unknown"
)

// ImageExtensions maps lower-case extensions to their codec family.
var ImageExtensions = map[string]Format{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".tiff": FormatTIFF,
	".tif":  FormatTIFF,
	".webp": FormatWebP,
}

// MimeTypes maps codec families to MIME types.
var MimeTypes = map[Format]string{
	FormatJPEG: "image/jpeg",
	FormatPNG:  "image/png",
	FormatGIF:  "image/gif",
	FormatBMP:  "image/bmp",
	FormatTIFF: "image/tiff",
	FormatWebP: "image/webp",
}

// Ext returns the lower-cased extension of path, including the dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// FormatForPath returns the codec family implied by path's extension.
func FormatForPath(path string) Format {
	if f, ok := ImageExtensions[Ext(path)]; ok {
		return f
	}
	return FormatUnknown
}

// IsImageFile reports whether name has a supported image extension.
func IsImageFile(name string) bool {
	_, ok := ImageExtensions[Ext(name)]
	return ok
}

// GetMimeType returns the MIME type for path's extension, or
// "application/octet-stream" when it is not an image.
func GetMimeType(path string) string {
	if mime, ok := MimeTypes[FormatForPath(path)]; ok {
		return mime
	}
	return "application/octet-stream"
}
