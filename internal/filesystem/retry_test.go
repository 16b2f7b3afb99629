package filesystem

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu         sync.Mutex
	operations []string
	attempts   int
	successes  int
	failures   int
	stale      int
	opErrors   int
}

func (r *recordingObserver) ObserveOperation(volume, operation string, _ float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations = append(r.operations, volume+":"+operation)
	if err != nil {
		r.opErrors++
	}
}

func (r *recordingObserver) ObserveRetryAttempt(string, string) {
	r.mu.Lock()
	r.attempts++
	r.mu.Unlock()
}

func (r *recordingObserver) ObserveRetrySuccess(string, string) {
	r.mu.Lock()
	r.successes++
	r.mu.Unlock()
}

func (r *recordingObserver) ObserveRetryFailure(string, string) {
	r.mu.Lock()
	r.failures++
	r.mu.Unlock()
}

func (r *recordingObserver) ObserveStaleError(string, string) {
	r.mu.Lock()
	r.stale++
	r.mu.Unlock()
}

func withObserver(t *testing.T) *recordingObserver {
	t.Helper()
	rec := &recordingObserver{}
	previous := defaultObserver
	SetObserver(rec)
	t.Cleanup(func() { SetObserver(previous) })
	return rec
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE error", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT error", err: syscall.ENOENT, want: false},
		{name: "generic error", err: os.ErrNotExist, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"source": "/photos",
		"cache":  "/photos/.cache",
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "source root", path: "/photos", want: "source"},
		{name: "source file", path: "/photos/2024/cat.jpg", want: "source"},
		{name: "nested cache wins", path: "/photos/.cache/upscaled/abc.jpg", want: "cache"},
		{name: "prefix without separator", path: "/photosets/a.jpg", want: "unknown"},
		{name: "unrelated", path: "/tmp/a.jpg", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/anything"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want unknown", got)
	}
}

func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	rec := withObserver(t)

	calls := 0
	v, err := withRetry("open", "/nfs/a.jpg", fastRetry(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if v != 42 {
		t.Errorf("withRetry() = %d, want 42", v)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
	if rec.stale != 2 || rec.attempts != 2 || rec.successes != 1 || rec.failures != 0 {
		t.Errorf("observer counts stale=%d attempts=%d successes=%d failures=%d, want 2/2/1/0",
			rec.stale, rec.attempts, rec.successes, rec.failures)
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	rec := withObserver(t)

	calls := 0
	_, err := withRetry("stat", "/nfs/a.jpg", fastRetry(), func() (int, error) {
		calls++
		return 0, syscall.ESTALE
	})

	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("fn called %d times, want MaxRetries+1 = 4", calls)
	}
	if rec.failures != 1 {
		t.Errorf("failures = %d, want 1", rec.failures)
	}
}

func TestWithRetry_DoesNotRetryOtherErrors(t *testing.T) {
	withObserver(t)

	calls := 0
	_, err := withRetry("stat", "/x", fastRetry(), func() (int, error) {
		calls++
		return 0, os.ErrPermission
	})
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("error = %v, want ErrPermission", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestStatAndOpenWithRetry(t *testing.T) {
	original := defaultResolver
	defer func() { defaultResolver = original }()

	tmpDir := t.TempDir()
	SetDefaultVolumeResolver(NewVolumeResolver(map[string]string{"cache": tmpDir}))
	rec := withObserver(t)

	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	info, err := StatWithRetry(testFile, fastRetry())
	if err != nil || info.Size() != 4 {
		t.Fatalf("StatWithRetry() = (%v, %v), want size 4", info, err)
	}

	f, err := OpenWithRetry(testFile, fastRetry())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "test" {
		t.Errorf("read %q, want %q", data, "test")
	}

	if _, err := StatWithRetry(filepath.Join(tmpDir, "missing"), fastRetry()); !os.IsNotExist(err) {
		t.Errorf("StatWithRetry(missing) error = %v, want not-exist", err)
	}

	if len(rec.operations) != 3 || rec.operations[0] != "cache:stat" || rec.operations[1] != "cache:open" {
		t.Errorf("observed operations = %v", rec.operations)
	}
	if rec.opErrors != 1 {
		t.Errorf("operation errors = %d, want 1", rec.opErrors)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "deeper", "out.png")

	err := WriteFileAtomic(target, func(w io.Writer) error {
		_, err := w.Write([]byte("first"))
		return err
	})
	if err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil || !bytes.Equal(data, []byte("first")) {
		t.Fatalf("ReadFile = (%q, %v), want %q", data, err, "first")
	}

	// Overwrite succeeds and replaces content.
	if err := WriteFileAtomic(target, func(w io.Writer) error {
		_, err := w.Write([]byte("second"))
		return err
	}); err != nil {
		t.Fatalf("overwrite error = %v", err)
	}
	data, _ = os.ReadFile(target)
	if string(data) != "second" {
		t.Errorf("content after overwrite = %q, want %q", data, "second")
	}
}

func TestWriteFileAtomic_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.png")
	boom := errors.New("encoder exploded")

	err := WriteFileAtomic(target, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WriteFileAtomic() error = %v, want wrapped encoder error", err)
	}

	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("target exists after failed write: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func BenchmarkVolumeResolver_Resolve(b *testing.B) {
	vr := NewVolumeResolver(map[string]string{
		"source": "/photos",
		"cache":  "/cache",
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		vr.Resolve("/photos/vacation/img_001.jpg")
	}
}
