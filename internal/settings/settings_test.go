package settings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"upscale-viewer/internal/fingerprint"
	"upscale-viewer/internal/upscaler"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("Defaults().Validate() error = %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"settings.json", "settings.yaml", "settings.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			s := Defaults()
			s.ScaleFactor = 2.5
			s.EnabledUpscale = true
			s.Tile = 0
			s.Backend = "lanczos"

			if err := Save(path, s); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if loaded != s {
				t.Errorf("Load() = %+v, want %+v", loaded, s)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Errorf("Load() error = %v, want nil for missing file", err)
	}
	if s != Defaults() {
		t.Error("missing file should yield defaults")
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"corrupt json", "s.json", "{not json"},
		{"corrupt yaml", "s.yaml", "tile: [1, 2"},
		{"wrong type", "s.json", `{"tile": "big"}`},
		{"out of range tile", "s.json", `{"tile": 5000}`},
		{"bad scale", "s.yaml", "scale: 0\n"},
		{"unknown backend", "s.json", `{"backend": "waifu2x"}`},
		{"bad page mode", "s.json", `{"page_mode": "triple"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			s, err := Load(path)
			if err == nil {
				t.Error("Load() error = nil, want reason for defaults")
			}
			if s != Defaults() {
				t.Errorf("Load() = %+v, want defaults", s)
			}
		})
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	if err := os.WriteFile(path, []byte(`{"scale_factor": 2.5, "language": "en"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Defaults()
	want.ScaleFactor = 2.5
	want.Language = "en"
	if s != want {
		t.Errorf("Load() = %+v, want %+v", s, want)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	s := Defaults()
	s.Scale = 12
	if err := Save(path, s); err == nil {
		t.Error("Save() of invalid settings should fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid settings were written")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.json")
	for i := 0; i < 3; i++ {
		if err := Save(path, Defaults()); err != nil {
			t.Fatal(err)
		}
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestUpscalerConfig(t *testing.T) {
	s := Defaults()
	s.Backend = "Real-ESRGAN"
	s.ScaleFactor = 2
	s.Tile = 256
	s.TilePad = 4
	s.PrePad = 8
	s.Half = true
	s.TuningFlags = true
	s.Device = "cuda"
	s.ModelPath = "/models/x4.pth"

	cfg, err := s.UpscalerConfig()
	if err != nil {
		t.Fatalf("UpscalerConfig() error = %v", err)
	}
	if cfg.Backend != upscaler.BackendRealESRGAN || cfg.OutScale != 2 || cfg.Tile != 256 ||
		cfg.TilePad != 4 || cfg.PrePad != 8 || !cfg.Half || !cfg.TuningFlags || cfg.Device != "cuda" || cfg.WeightsPath != "/models/x4.pth" {
		t.Errorf("UpscalerConfig() = %+v", cfg)
	}
	if cfg.Command != upscaler.DefaultCommand {
		t.Errorf("Command = %q, want default", cfg.Command)
	}

	s.Backend = "nope"
	if _, err := s.UpscalerConfig(); !errors.Is(err, upscaler.ErrUnknownBackend) {
		t.Errorf("UpscalerConfig() error = %v, want ErrUnknownBackend", err)
	}
}

func TestSet(t *testing.T) {
	s := Defaults()
	for key, value := range map[string]string{
		"tile":               "64",
		"scale_factor":       "1.5",
		"half":               "true",
		"pre_pad":            "2",
		"tuning_flags":       "true",
		"sequential_upscale": "false",
		"backend":            "lanczos",
		"key_strategy":       "content",
	} {
		if err := s.Set(key, value); err != nil {
			t.Fatalf("Set(%s, %s) error = %v", key, value, err)
		}
	}
	if s.Tile != 64 || s.PrePad != 2 || s.ScaleFactor != 1.5 || !s.Half || !s.TuningFlags || s.SequentialUpscale || s.Backend != "lanczos" {
		t.Errorf("Set produced %+v", s)
	}
	if s.Strategy() != fingerprint.ByContent {
		t.Errorf("Strategy() = %v", s.Strategy())
	}

	if err := s.Set("tile", "many"); err == nil {
		t.Error("Set(tile, many) should fail")
	}
	if err := s.Set("colour", "red"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Set(colour) error = %v, want ErrUnknownKey", err)
	}
}

func TestEveryKeyIsSettable(t *testing.T) {
	for _, key := range Keys {
		s := Defaults()
		err := s.Set(key, "1")
		if errors.Is(err, ErrUnknownKey) {
			t.Errorf("key %q listed but not settable", key)
		}
	}
}

func TestResolveCacheDir(t *testing.T) {
	s := Defaults()
	s.CacheDir = "relative/cache"
	dir, err := s.ResolveCacheDir()
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ResolveCacheDir() = %q, want absolute", dir)
	}
	up, err := s.UpscaledDir()
	if err != nil || up != filepath.Join(dir, "upscaled") {
		t.Errorf("UpscaledDir() = %q, %v", up, err)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	changes [][2]Settings
}

func (r *recordingObserver) SettingsChanged(old, current Settings) {
	r.mu.Lock()
	r.changes = append(r.changes, [2]Settings{old, current})
	r.mu.Unlock()
}

func TestStoreUpdateNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := Open(path)
	obs := &recordingObserver{}
	unsubscribe := store.Subscribe(obs)

	updated, err := store.Update(func(s *Settings) error {
		s.SequentialUpscale = false
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.SequentialUpscale || store.Get().SequentialUpscale {
		t.Error("update not applied")
	}
	if len(obs.changes) != 1 || !obs.changes[0][0].SequentialUpscale || obs.changes[0][1].SequentialUpscale {
		t.Errorf("observer saw %+v", obs.changes)
	}

	onDisk, err := Load(path)
	if err != nil || onDisk != updated {
		t.Errorf("saved settings = %+v, %v", onDisk, err)
	}

	// A no-op update does not notify.
	if _, err := store.Update(func(*Settings) error { return nil }); err != nil {
		t.Fatal(err)
	}
	unsubscribe()
	unsubscribe()
	if _, err := store.Update(func(s *Settings) error { s.Tile = 32; return nil }); err != nil {
		t.Fatal(err)
	}
	if len(obs.changes) != 1 {
		t.Errorf("observer notified %d times, want 1", len(obs.changes))
	}
}

func TestStoreRejectsInvalidUpdate(t *testing.T) {
	store := NewStore("", Defaults())
	obs := &recordingObserver{}
	store.Subscribe(obs)

	if _, err := store.Update(func(s *Settings) error { s.Tile = -1; return nil }); err == nil {
		t.Error("invalid update should fail")
	}
	if _, err := store.Update(func(*Settings) error { return errors.New("abort") }); err == nil {
		t.Error("failing fn should fail the update")
	}
	if store.Get() != Defaults() || len(obs.changes) != 0 {
		t.Error("failed updates must not change state or notify")
	}
}

func TestStoreWatchKeepsLatest(t *testing.T) {
	store := NewStore("", Defaults())
	ch, stop := store.Watch()
	defer stop()

	for _, tile := range []int{16, 32, 64} {
		if _, err := store.Update(func(s *Settings) error { s.Tile = tile; return nil }); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case s := <-ch:
		if s.Tile != 64 {
			t.Errorf("Watch delivered tile %d, want latest 64", s.Tile)
		}
	case <-time.After(time.Second):
		t.Fatal("no settings delivered")
	}
}

func TestMarshal(t *testing.T) {
	data, err := Marshal("x.yaml", Defaults())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "model_path: ") {
		t.Errorf("yaml output missing model_path:\n%s", data)
	}
	data, err = Marshal("x.json", Defaults())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"sequential_upscale": true`) {
		t.Errorf("json output missing sequential_upscale:\n%s", data)
	}
}
