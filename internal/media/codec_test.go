package media

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"upscale-viewer/internal/mediatypes"
)

func TestEncodeRoundTrip(t *testing.T) {
	src := gradient(64, 48)

	tests := []struct {
		format mediatypes.Format
		ext    string
	}{
		{mediatypes.FormatJPEG, ".jpg"},
		{mediatypes.FormatPNG, ".png"},
		{mediatypes.FormatGIF, ".gif"},
		{mediatypes.FormatBMP, ".bmp"},
		{mediatypes.FormatTIFF, ".tiff"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out"+tt.ext)
			var buf bytes.Buffer
			if err := Encode(&buf, src, tt.format); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				t.Fatal(err)
			}

			got, err := Decode(path)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.Bounds().Dx() != 64 || got.Bounds().Dy() != 48 {
				t.Errorf("decoded size = %v, want 64x48", got.Bounds())
			}

			format, err := DetectFormat(path)
			if err != nil {
				t.Fatalf("DetectFormat() error = %v", err)
			}
			if format != tt.format {
				t.Errorf("DetectFormat() = %q, want %q", format, tt.format)
			}
		})
	}
}

func TestEncodeUnsupported(t *testing.T) {
	err := Encode(&bytes.Buffer{}, gradient(4, 4), mediatypes.FormatUnknown)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Encode(unknown) error = %v, want ErrUnsupportedFormat", err)
	}

	if !IsVipsAvailable() {
		err = Encode(&bytes.Buffer{}, gradient(4, 4), mediatypes.FormatWebP)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Encode(webp) without vips error = %v, want ErrUnsupportedFormat", err)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   mediatypes.Format
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, mediatypes.FormatJPEG},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, mediatypes.FormatPNG},
		{"gif", []byte("GIF89a"), mediatypes.FormatGIF},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBP"), mediatypes.FormatWebP},
		{"bmp", []byte("BM\x00\x00"), mediatypes.FormatBMP},
		{"tiff le", []byte{'I', 'I', 0x2A, 0x00}, mediatypes.FormatTIFF},
		{"text", []byte("hello world!"), mediatypes.FormatUnknown},
		{"empty", nil, mediatypes.FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "f")
			if err := os.WriteFile(path, tt.header, 0o644); err != nil {
				t.Fatal(err)
			}
			got, err := DetectFormat(path)
			if err != nil {
				t.Fatalf("DetectFormat() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectFormatMissingFile(t *testing.T) {
	if _, err := DetectFormat(filepath.Join(t.TempDir(), "missing")); !os.IsNotExist(err) {
		t.Errorf("DetectFormat(missing) error = %v, want not-exist", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Decode(filepath.Join(dir, "missing.png")); !os.IsNotExist(err) {
		t.Errorf("Decode(missing) error = %v, want not-exist", err)
	}

	corrupt := filepath.Join(dir, "corrupt.png")
	if err := os.WriteFile(corrupt, []byte("definitely not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(corrupt); !errors.Is(err, ErrNotImage) {
		t.Errorf("Decode(corrupt) error = %v, want ErrNotImage", err)
	}
}
