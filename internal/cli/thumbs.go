package cli

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"upscale-viewer/internal/filesystem"
	"upscale-viewer/internal/fingerprint"
	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/media"
	"upscale-viewer/internal/mediatypes"
	"upscale-viewer/internal/progress"
	"upscale-viewer/internal/settings"
	"upscale-viewer/internal/thumbcache"
	"upscale-viewer/internal/workers"
)

type thumbsOptions struct {
	outDir     string
	size       int
	noProgress bool
}

func newThumbsCmd(root *rootOptions) *cobra.Command {
	opts := &thumbsOptions{}

	cmd := &cobra.Command{
		Use:   "thumbs <dir>",
		Short: "Generate thumbnails for the images in a directory",
		Long: `Decode every image in dir into the in-memory thumbnail cache, as the viewer
does for its thumbnail strip. With --out the thumbnails are also written as
PNG files named after the fingerprint of the source and box.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThumbs(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.outDir, "out", "", "Write thumbnails to this directory")
	cmd.Flags().IntVar(&opts.size, "size", 0, "Thumbnail box edge (default thumbnail_size)")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}

func runThumbs(cmd *cobra.Command, root *rootOptions, opts *thumbsOptions, dir string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	start := time.Now()

	s, err := settings.Load(settingsPath(root))
	if err != nil {
		logging.Warn("Settings: %v", err)
	}

	size := opts.size
	if size == 0 {
		size = s.ThumbnailSize
	}

	paths, err := listImages(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No images in %s\n", dir)
		return nil
	}

	// Keep every thumbnail of the directory resident.
	thumbs, err := thumbcache.NewThumbnails(max(len(paths), s.ThumbnailCacheSize), size, size)
	if err != nil {
		return err
	}

	bar := progress.New(progress.Options{
		Total:       int64(len(paths)),
		Description: "Thumbnails",
		Disabled:    opts.noProgress,
		Writer:      cmd.ErrOrStderr(),
	})

	err = workers.Run(ctx, workers.ForMixed(8), paths, func(_ context.Context, p string) {
		img, err := thumbs.Get(p)
		if err != nil {
			bar.Failed()
			bar.Printf("FAILED %s: %v\n", p, err)
			return
		}
		if opts.outDir != "" {
			out := filepath.Join(opts.outDir, fingerprint.Thumbnail(p, size, size)+".png")
			if err := writeThumbnail(out, img); err != nil {
				bar.Failed()
				bar.Printf("FAILED %s: %v\n", p, err)
				return
			}
		}
		bar.Computed()
	})
	bar.Finish()
	if err != nil {
		return err
	}

	computed, _, failed := bar.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "%d thumbnails (%dx%d box), %d failed in %v\n",
		computed, size, size, failed, since(start))
	if failed > 0 {
		return fmt.Errorf("%d thumbnails failed", failed)
	}
	return nil
}

func writeThumbnail(path string, img image.Image) error {
	return filesystem.WriteFileAtomic(path, func(w io.Writer) error {
		return media.Encode(w, img, mediatypes.FormatPNG)
	})
}

// listImages returns the image files directly inside dir, sorted by name.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !mediatypes.IsImageFile(e.Name()) {
			continue
		}
		p, err := filepath.Abs(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}
