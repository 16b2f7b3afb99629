package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestBarCountsWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	b := New(Options{Total: 4, Writer: &buf})
	if b.Enabled() {
		t.Fatal("bar should not draw into a buffer")
	}

	b.Computed()
	b.Cached()
	b.Cached()
	b.Failed()
	b.Finish()

	computed, cached, failed := b.Stats()
	if computed != 1 || cached != 2 || failed != 1 {
		t.Errorf("Stats() = %d, %d, %d", computed, cached, failed)
	}
	if buf.Len() != 0 {
		t.Errorf("disabled bar wrote %q", buf.String())
	}
	if s := b.Summary(); !strings.HasPrefix(s, "1 upscaled, 2 from cache, 1 failed of 4") {
		t.Errorf("Summary() = %q", s)
	}
}

func TestPrintfWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	b := New(Options{Total: 1, Writer: &buf})
	b.Printf("failed %s\n", "a.png")
	if buf.String() != "failed a.png\n" {
		t.Errorf("Printf wrote %q", buf.String())
	}
}

func TestBarConcurrentUpdates(t *testing.T) {
	b := New(Options{Total: 100, Disabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Computed()
		}()
	}
	wg.Wait()

	if computed, _, _ := b.Stats(); computed != 100 {
		t.Errorf("computed = %d, want 100", computed)
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
}
