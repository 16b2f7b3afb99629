package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/startup"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	settingsPath string
	metricsAddr  string
	logLevel     string
	verbose      bool
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "upscale-viewer",
		Short: "Super-resolution image viewer with a persistent upscale cache",
		Long: `upscale-viewer shows images and replaces them with super-resolved versions
as soon as inference finishes. Results are cached on disk, keyed by the
source path, so an image is only upscaled once.

Examples:
  # Upscale a batch into the cache
  upscale-viewer upscale photos/*.png

  # Use the Lanczos backend without a GPU
  UPSCALE_BACKEND=lanczos upscale-viewer upscale scan.jpg

  # Step through images as the viewer would
  upscale-viewer view comic/*.jpg

  # Show cache usage and latency quantiles
  upscale-viewer cache stats`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logLevel != "" {
				level, ok := logging.ParseLevel(opts.logLevel)
				if !ok {
					return fmt.Errorf("unknown log level %q", opts.logLevel)
				}
				logging.SetLevel(level)
			} else if opts.verbose {
				logging.SetLevel(logging.LevelDebug)
			}
			startup.LoadEnvFile()
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.settingsPath, "settings", "", "Settings file (default $UPSCALE_SETTINGS or the user config dir)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address (default $METRICS_ADDR)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Print the banner and configuration")

	rootCmd.AddCommand(newUpscaleCmd(opts))
	rootCmd.AddCommand(newViewCmd(opts))
	rootCmd.AddCommand(newThumbsCmd(opts))
	rootCmd.AddCommand(newCacheCmd(opts))
	rootCmd.AddCommand(newSettingsCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			startup.LogShutdownInitiated(sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}
