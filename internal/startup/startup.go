package startup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/memory"
	"upscale-viewer/internal/settings"
	"upscale-viewer/internal/upscaler"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Options control LoadConfig.
type Options struct {
	// SettingsPath overrides UPSCALE_SETTINGS and the default location.
	SettingsPath string
	// Verbose prints the banner and configuration dump at Info level.
	Verbose bool
}

// Config holds the resolved runtime configuration.
type Config struct {
	SettingsPath string
	// Settings are the file settings with environment overrides applied.
	Settings    settings.Settings
	MetricsAddr string

	// Derived paths
	CacheDir     string
	UpscaledDir  string
	DatabasePath string

	// Feature flags based on directory availability
	ManifestEnabled bool
	VipsEnabled     bool

	Memory memory.ConfigResult
}

// envOverrides maps environment variables onto settings keys.
var envOverrides = []struct{ env, key string }{
	{"CACHE_DIR", "cache_dir"},
	{"MODEL_PATH", "model_path"},
	{"UPSCALE_BACKEND", "backend"},
	{"UPSCALE_COMMAND", "command"},
	{"SEQUENTIAL_UPSCALE", "sequential_upscale"},
}

// LoadEnvFile loads .env from the working directory if present. Variables
// already set in the environment win.
func LoadEnvFile() {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Failed to load .env: %v", err)
		}
		return
	}
	logging.Debug("Loaded environment from .env")
}

// DefaultSettingsPath returns UPSCALE_SETTINGS, or settings.json under the
// user configuration directory.
func DefaultSettingsPath() string {
	if p := getEnv("UPSCALE_SETTINGS", ""); p != "" {
		return p
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "upscale-viewer", settings.DefaultFile)
	}
	return settings.DefaultFile
}

// LoadConfig loads settings, applies environment overrides and prepares
// the cache directories.
func LoadConfig(opts Options) (*Config, error) {
	info := logging.Debug
	if opts.Verbose {
		info = logging.Info
		printBanner()
		logSystemInfo()
	}

	settingsPath := opts.SettingsPath
	if settingsPath == "" {
		settingsPath = DefaultSettingsPath()
	}

	s, err := settings.Load(settingsPath)
	if err != nil {
		logging.Warn("Settings: %v", err)
	}
	if err := applyEnvOverrides(&s); err != nil {
		return nil, err
	}

	info("------------------------------------------------------------")
	info("CONFIGURATION")
	info("------------------------------------------------------------")
	info("  SETTINGS:            %s", settingsPath)
	info("  BACKEND:             %s", s.Backend)
	info("  MODEL_PATH:          %s", s.ModelPath)
	info("  SCALE:               %d (outscale %v)", s.Scale, s.ScaleFactor)
	info("  TILE:                %d (pad %d)", s.Tile, s.TilePad)
	info("  SEQUENTIAL_UPSCALE:  %v", s.SequentialUpscale)
	info("  KEY_STRATEGY:        %s", s.KeyStrategy)
	info("  LOG_LEVEL:           %s", logging.GetLevel())

	cacheDir, err := s.ResolveCacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	info("  Cache directory (absolute): %s", cacheDir)

	config := &Config{
		SettingsPath: settingsPath,
		Settings:     s,
		MetricsAddr:  getEnv("METRICS_ADDR", ""),
		CacheDir:     cacheDir,
		UpscaledDir:  filepath.Join(cacheDir, "upscaled"),
		DatabasePath: filepath.Join(cacheDir, "manifest.db"),
		Memory:       memory.ConfigureFromEnv(),
	}
	info("  MEMORY_LIMIT:        %s", config.Memory)

	// The upscaled cache is required
	if err := ensureDirectory(config.UpscaledDir, "upscaled cache"); err != nil {
		return nil, fmt.Errorf("cache directory error: %w", err)
	}
	if err := testWriteAccess(config.UpscaledDir); err != nil {
		return nil, fmt.Errorf("cache directory is not writable: %w", err)
	}

	// The manifest is optional
	if getEnvBool("MANIFEST_ENABLED", true) {
		config.ManifestEnabled = setupOptionalDir(cacheDir, "manifest")
	}
	info("  Manifest:            %s", enabledString(config.ManifestEnabled))

	config.VipsEnabled = getEnvBool("VIPS_ENABLED", true)
	info("  libvips:             %s", enabledString(config.VipsEnabled))

	return config, nil
}

func applyEnvOverrides(s *settings.Settings) error {
	for _, o := range envOverrides {
		value := getEnv(o.env, "")
		if value == "" {
			continue
		}
		if err := s.Set(o.key, value); err != nil {
			return fmt.Errorf("invalid %s: %w", o.env, err)
		}
		logging.Debug("  %s overrides %s", o.env, o.key)
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid configuration after environment overrides: %w", err)
	}
	return nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogUpscalerInit reports the configured backend and whether its external
// command can be found.
func LogUpscalerInit(cfg upscaler.Config) {
	logging.Debug("------------------------------------------------------------")
	logging.Debug("UPSCALER INITIALIZATION")
	logging.Debug("------------------------------------------------------------")
	logging.Debug("  Backend: %s", cfg.Backend)

	if cfg.Backend != upscaler.BackendRealESRGAN {
		return
	}
	if err := checkCommand(cfg.Command); err != nil {
		logging.Warn("  Upscaler command check failed: %v", err)
		logging.Warn("  Upscaling will fall back to the source image")
	} else {
		logging.Debug("  [OK] Upscaler command is available")
	}
	if _, err := os.Stat(cfg.WeightsPath); err != nil {
		logging.Warn("  Model weights not found: %s", cfg.WeightsPath)
	}
}

// LogMetricsServerStarted logs the metrics endpoint.
func LogMetricsServerStarted(addr string) {
	logging.Info("  Metrics:       http://%s/metrics", displayAddr(addr))
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
  _   _                      _       __     ___
 | | | |_ __  ___  ___ __ _| | ___  \ \   / (_) _____      _____ _ __
 | | | | '_ \/ __|/ __/ _' | |/ _ \  \ \ / /| |/ _ \ \ /\ / / _ \ '__|
 | |_| | |_) \__ \ (_| (_| | |  __/   \ V / | |  __/\ V  V /  __/ |
  \___/| .__/|___/\___\__,_|_|\___|    \_/  |_|\___| \_/\_/ \___|_|
       |_|
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkCommand(command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fmt.Errorf("no upscaler command configured")
	}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		return fmt.Errorf("%s not found in PATH", fields[0])
	}
	logging.Debug("  Upscaler path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Not every wrapper supports --help; only a missing binary is fatal.
	if out, err := exec.CommandContext(ctx, path, "--help").CombinedOutput(); err == nil {
		if lines := strings.Split(strings.TrimSpace(string(out)), "\n"); len(lines) > 0 {
			logging.Debug("  Upscaler usage: %s", strings.TrimSpace(lines[0]))
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
