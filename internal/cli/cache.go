package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"upscale-viewer/internal/database"
	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/metrics"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the upscale cache",
	}

	cmd.AddCommand(newCachePathCmd(root))
	cmd.AddCommand(newCacheStatsCmd(root))
	cmd.AddCommand(newCacheVerifyCmd(root))
	cmd.AddCommand(newCacheClearCmd(root))

	return cmd
}

func newCachePathCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path [files...]",
		Short: "Print the cache directory, or the entry path of each file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				fmt.Fprintln(out, a.cache.Root())
				return nil
			}

			var failed int
			for _, p := range uniquePaths(args) {
				entry, err := a.cache.Path(p)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", p, err)
					failed++
					continue
				}
				state := "missing"
				if a.cache.Exists(p) {
					state = "cached"
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", p, entry, state)
			}
			if failed > 0 {
				return fmt.Errorf("%d paths could not be resolved", failed)
			}
			return nil
		},
	}
}

func newCacheStatsCmd(root *rootOptions) *cobra.Command {
	var showEntries bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache size, manifest totals and stale entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			defer a.Close()

			stats, err := a.CacheStats()
			if err != nil {
				return fmt.Errorf("failed to read cache stats: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache directory: %s\n", a.cache.Root())
			fmt.Fprintf(out, "Key strategy:    %s\n", a.cfg.Settings.Strategy())
			fmt.Fprintf(out, "Entries:         %d\n", stats.DiskEntries)
			fmt.Fprintf(out, "Size:            %s\n", formatBytes(stats.DiskBytes))

			if a.manifest == nil {
				fmt.Fprintln(out, "Manifest:        disabled")
				return nil
			}
			fmt.Fprintf(out, "Manifest:        %d records, %d hits\n", stats.ManifestEntries, stats.ManifestHits)

			stale, err := a.manifest.Stale(ctx)
			if err != nil {
				return fmt.Errorf("failed to check stale entries: %w", err)
			}
			fmt.Fprintf(out, "Stale:           %d\n", len(stale))
			for _, s := range stale {
				fmt.Fprintf(out, "  %-8s %s\n", s.Reason, s.SourcePath)
			}

			if showEntries {
				entries, err := a.manifest.Entries(ctx)
				if err != nil {
					return err
				}
				printEntries(out, entries)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showEntries, "entries", false, "List manifest records, most recently hit first")
	return cmd
}

func printEntries(out io.Writer, entries []database.Entry) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tHITS\tSIZE\tLAST HIT\tSOURCE")
	for _, e := range entries {
		lastHit := "-"
		if !e.LastHitAt.IsZero() {
			lastHit = e.LastHitAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", e.Key, e.Hits, formatBytes(e.EntrySize), lastHit, e.SourcePath)
	}
	_ = tw.Flush()
}

func newCacheVerifyCmd(root *rootOptions) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check every entry and reconcile the manifest",
		Long: `Decode-check every cache entry, drop manifest records whose file is gone,
and report entries whose source was modified or deleted. With --remove,
corrupt and stale entries are deleted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, root)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			defer a.Close()

			report, err := a.cache.Verify(ctx, remove)
			if err != nil {
				return fmt.Errorf("verify failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Checked %d entries, %d corrupt, %d removed\n", report.Checked, len(report.Corrupt), report.Removed)
			for _, p := range report.Corrupt {
				fmt.Fprintf(out, "  corrupt  %s\n", p)
			}

			if a.manifest == nil {
				return nil
			}

			entries, err := a.cache.Entries()
			if err != nil {
				return err
			}
			present := make(map[string]bool, len(entries))
			for _, e := range entries {
				present[e.Key] = true
			}
			dropped, err := a.manifest.Reconcile(ctx, present)
			if err != nil {
				return fmt.Errorf("manifest reconcile failed: %w", err)
			}
			fmt.Fprintf(out, "Manifest: dropped %d orphaned records\n", dropped)

			stale, err := a.manifest.Stale(ctx)
			if err != nil {
				return fmt.Errorf("failed to check stale entries: %w", err)
			}
			removedStale := 0
			for _, s := range stale {
				fmt.Fprintf(out, "  %-8s %s\n", s.Reason, s.SourcePath)
				if !remove {
					continue
				}
				if err := removeStale(a.manifest, s); err != nil {
					logging.Warn("Failed to remove stale entry %s: %v", s.EntryPath, err)
					continue
				}
				removedStale++
			}
			fmt.Fprintf(out, "Stale: %d found, %d removed\n", len(stale), removedStale)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "Delete corrupt and stale entries")
	return cmd
}

func removeStale(manifest *database.Database, s database.StaleEntry) error {
	if err := os.Remove(s.EntryPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return manifest.Forget(s.Key)
}

func newCacheClearCmd(root *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear the cache without --yes")
			}

			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			defer a.Close()

			removed, err := a.cache.Clear()
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries from %s\n", removed, a.cache.Root())
			if err != nil {
				return err
			}
			metrics.DiskCacheEntries.Set(0)
			metrics.DiskCacheSizeBytes.Set(0)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

// formatBytes formats bytes into human readable format
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
