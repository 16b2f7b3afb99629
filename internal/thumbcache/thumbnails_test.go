package thumbcache

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 80, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestThumbnailsFitBox(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "wide.png")
	writePNG(t, src, 300, 100)

	thumbs, err := NewThumbnails(DefaultSize, 150, 150)
	if err != nil {
		t.Fatalf("NewThumbnails() error = %v", err)
	}

	img, err := thumbs.Get(src)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 150 || b.Dy() != 50 {
		t.Errorf("thumbnail = %dx%d, want 150x50", b.Dx(), b.Dy())
	}
	if w, h := thumbs.Box(); w != 150 || h != 150 {
		t.Errorf("Box() = %dx%d", w, h)
	}
}

func TestThumbnailsUnreadableSource(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not png"), 0o644); err != nil {
		t.Fatal(err)
	}

	thumbs, _ := NewThumbnails(4, 32, 32)
	if _, err := thumbs.Get(bad); err == nil {
		t.Error("Get() of corrupt source should fail")
	}
	if thumbs.Len() != 0 {
		t.Errorf("Len() = %d after failed load", thumbs.Len())
	}
}

func TestNewThumbnailsValidates(t *testing.T) {
	if _, err := NewThumbnails(0, 10, 10); err == nil {
		t.Error("size 0 should fail")
	}
	if _, err := NewThumbnails(10, 0, 10); err == nil {
		t.Error("empty box should fail")
	}
}

func TestPrefetch(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		p := filepath.Join(dir, name)
		writePNG(t, p, 40, 40)
		paths = append(paths, p)
	}
	paths = append(paths, filepath.Join(dir, "missing.png"))

	thumbs, _ := NewThumbnails(3, 16, 16)
	loaded := thumbs.Prefetch(context.Background(), paths)

	// Only the first three paths fit, and all three are readable.
	if loaded != 3 {
		t.Errorf("Prefetch() = %d, want 3", loaded)
	}
	if thumbs.Len() != 3 {
		t.Errorf("Len() = %d, want 3", thumbs.Len())
	}
	for _, p := range paths[:3] {
		if !thumbs.Contains(p) {
			t.Errorf("%s not prefetched", filepath.Base(p))
		}
	}
}
