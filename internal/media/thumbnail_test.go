package media

import (
	"path/filepath"
	"testing"
)

func TestLoadThumbnail(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{"landscape", 600, 300, 150, 75},
		{"portrait", 200, 800, 38, 150},
		{"square", 300, 300, 150, 150},
		{"already small", 100, 50, 100, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.name+".png")
			createTestImage(t, path, tt.width, tt.height, "png")

			thumb, err := LoadThumbnail(path, DefaultThumbnailSize, DefaultThumbnailSize)
			if err != nil {
				t.Fatalf("LoadThumbnail() error = %v", err)
			}
			b := thumb.Bounds()
			if b.Dx() > DefaultThumbnailSize || b.Dy() > DefaultThumbnailSize {
				t.Errorf("thumbnail %v exceeds %d box", b, DefaultThumbnailSize)
			}
			if abs(b.Dx()-tt.wantW) > 1 || abs(b.Dy()-tt.wantH) > 1 {
				t.Errorf("thumbnail = %dx%d, want about %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestLoadThumbnailErrors(t *testing.T) {
	if _, err := LoadThumbnail(filepath.Join(t.TempDir(), "missing.png"), 10, 10); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "ok.png")
	createTestImage(t, path, 10, 10, "png")
	if _, err := LoadThumbnail(path, 0, 10); err == nil {
		t.Error("expected error for empty box")
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
