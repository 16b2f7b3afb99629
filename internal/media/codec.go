package media

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"upscale-viewer/internal/mediatypes"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// JPEGQuality is used for every JPEG the cache writes.
const JPEGQuality = 95

// ErrUnsupportedFormat is returned by Encode for formats with no encoder.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Encode writes img to w in the given codec family. WebP output requires
// libvips; without it Encode returns ErrUnsupportedFormat.
func Encode(w io.Writer, img image.Image, format mediatypes.Format) error {
	switch format {
	case mediatypes.FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	case mediatypes.FormatPNG:
		return png.Encode(w, img)
	case mediatypes.FormatGIF:
		return gif.Encode(w, img, &gif.Options{NumColors: 256})
	case mediatypes.FormatBMP:
		return bmp.Encode(w, img)
	case mediatypes.FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case mediatypes.FormatWebP:
		if !IsVipsAvailable() {
			return fmt.Errorf("%w: webp encoding requires libvips", ErrUnsupportedFormat)
		}
		data, err := EncodeWebPWithVips(img)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// DetectFormat sniffs the first bytes of path and reports the codec family
// they belong to. Unrecognized headers return FormatUnknown with no error.
func DetectFormat(path string) (mediatypes.Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return mediatypes.FormatUnknown, err
	}
	defer file.Close()

	header := make([]byte, 12)
	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return mediatypes.FormatUnknown, nil
		}
		return mediatypes.FormatUnknown, err
	}
	return sniff(header[:n]), nil
}

func sniff(header []byte) mediatypes.Format {
	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return mediatypes.FormatJPEG

	case len(header) >= 8 && header[0] == 0x89 && header[1] == 0x50 && header[2] == 0x4E && header[3] == 0x47:
		return mediatypes.FormatPNG

	case len(header) >= 4 && header[0] == 0x47 && header[1] == 0x49 && header[2] == 0x46 && header[3] == 0x38:
		return mediatypes.FormatGIF

	case len(header) >= 12 && header[0] == 0x52 && header[1] == 0x49 && header[2] == 0x46 && header[3] == 0x46 &&
		header[8] == 0x57 && header[9] == 0x45 && header[10] == 0x42 && header[11] == 0x50:
		return mediatypes.FormatWebP

	case len(header) >= 2 && header[0] == 0x42 && header[1] == 0x4D:
		return mediatypes.FormatBMP

	case len(header) >= 4 && ((header[0] == 0x49 && header[1] == 0x49 && header[2] == 0x2A && header[3] == 0x00) ||
		(header[0] == 0x4D && header[1] == 0x4D && header[2] == 0x00 && header[3] == 0x2A)):
		return mediatypes.FormatTIFF
	}

	return mediatypes.FormatUnknown
}
