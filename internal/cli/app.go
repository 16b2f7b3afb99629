package cli

import (
	"context"
	"fmt"
	"time"

	"upscale-viewer/internal/database"
	"upscale-viewer/internal/diskcache"
	"upscale-viewer/internal/filesystem"
	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/media"
	"upscale-viewer/internal/memory"
	"upscale-viewer/internal/metrics"
	"upscale-viewer/internal/startup"
	"upscale-viewer/internal/task"
	"upscale-viewer/internal/upscaler"
)

const collectInterval = 30 * time.Second

// app holds the components shared by the commands. Fields past cache are
// only set by withRunner.
type app struct {
	cfg      *startup.Config
	manifest *database.Database
	cache    *diskcache.Cache

	monitor *memory.Monitor
	runner  *task.Runner
	vips    bool

	status *statusServer
}

// newApp loads the configuration and opens the disk cache and manifest.
func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := startup.LoadConfig(startup.Options{
		SettingsPath: opts.settingsPath,
		Verbose:      opts.verbose,
	})
	if err != nil {
		return nil, err
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"cache": cfg.CacheDir,
	}))

	a := &app{cfg: cfg}

	if cfg.ManifestEnabled {
		dbStart := time.Now()
		db, err := database.New(ctx, cfg.DatabasePath)
		if err != nil {
			// The cache works without its manifest.
			logging.Warn("Manifest disabled: %v", err)
		} else {
			a.manifest = db
			logging.Debug("Manifest opened in %v", time.Since(dbStart).Round(time.Millisecond))
		}
	}

	var recorder diskcache.Recorder
	if a.manifest != nil {
		recorder = a.manifest
	}
	a.cache = diskcache.New(diskcache.Options{
		Root:     cfg.UpscaledDir,
		Strategy: cfg.Settings.Strategy(),
		Retry:    filesystem.DefaultRetryConfig(),
		Recorder: recorder,
	})

	return a, nil
}

// withRunner prepares inference: libvips, the memory gate, the enhancer and
// the task runner.
func (a *app) withRunner() error {
	upCfg, err := a.cfg.Settings.UpscalerConfig()
	if err != nil {
		return fmt.Errorf("invalid upscaler settings: %w", err)
	}
	startup.LogUpscalerInit(upCfg)

	enhancer, err := upscaler.New(upCfg)
	if err != nil {
		return err
	}

	if a.cfg.VipsEnabled {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, using pure Go decoders: %v", err)
		} else {
			a.vips = true
		}
	}

	a.monitor = memory.NewMonitor(memory.DefaultConfig())
	a.monitor.Start()

	a.runner = task.NewRunner(a.cache, enhancer, a.monitor)
	return nil
}

// CacheStats implements metrics.StatsProvider.
func (a *app) CacheStats() (metrics.Stats, error) {
	bytes, entries, err := a.cache.Size()
	if err != nil {
		return metrics.Stats{}, err
	}
	stats := metrics.Stats{DiskBytes: bytes, DiskEntries: int64(entries)}

	if a.manifest != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ms, err := a.manifest.Stats(ctx)
		if err != nil {
			return stats, err
		}
		stats.ManifestEntries = ms.Entries
		stats.ManifestHits = ms.Hits
		a.manifest.UpdateDBMetrics()
	}
	return stats, nil
}

// serveStatus starts the status server when a metrics address is set.
// q may be nil.
func (a *app) serveStatus(q queueStatus) {
	if a.cfg.MetricsAddr == "" {
		return
	}

	backends := make([]string, 0, len(upscaler.Backends))
	for _, b := range upscaler.Backends {
		backends = append(backends, b.String())
	}
	metrics.InitializeMetrics(backends)
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	a.status = startStatusServer(a.cfg.MetricsAddr, a, q, a.manifest)
}

// Close releases everything newApp and withRunner acquired.
func (a *app) Close() {
	if a.status != nil {
		startup.LogShutdownStep("Stopping status server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.status.Shutdown(ctx); err != nil {
			logging.Warn("Status server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Status server stopped")
		}
		cancel()
	}

	if a.monitor != nil {
		a.monitor.Stop()
	}

	if a.vips {
		media.ShutdownVips()
	}

	if a.manifest != nil {
		if err := a.manifest.Close(); err != nil {
			logging.Warn("Failed to close manifest: %v", err)
		}
	}
}
