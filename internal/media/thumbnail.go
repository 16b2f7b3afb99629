package media

import (
	"fmt"
	"image"

	"upscale-viewer/internal/logging"

	"github.com/disintegration/imaging"
)

// DefaultThumbnailSize is the edge of the square box thumbnails are fit into.
const DefaultThumbnailSize = 150

// LoadThumbnail decodes path and fits it into a width x height box,
// preserving aspect ratio. libvips is used when it is initialized since it
// can shrink during decode; otherwise the image is loaded with size limits
// and resampled with Lanczos.
func LoadThumbnail(path string, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid thumbnail box %dx%d", width, height)
	}

	if IsVipsAvailable() {
		img, err := LoadImageWithVips(path, width, height)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips thumbnail failed for %s: %v, falling back to imaging", path, err)
	}

	img, err := LoadImageConstrained(path, MaxImageDimension, MaxImagePixels)
	if err != nil {
		return nil, fmt.Errorf("thumbnail generation failed: %w", err)
	}

	return Fit(img, width, height), nil
}

// Fit scales img down to fit within width x height. Images already inside
// the box are returned unchanged.
func Fit(img image.Image, width, height int) image.Image {
	return imaging.Fit(img, width, height, imaging.Lanczos)
}
