package upscaler

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
)

// lanczos upsamples with a Lanczos filter. Tile settings do not apply.
type lanczos struct {
	cfg Config
}

func (l *lanczos) Enhance(ctx context.Context, img image.Image) (image.Image, Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, Metadata{}, err
	}
	size := targetSize(img.Bounds().Size(), l.cfg.EffectiveOutScale())
	return imaging.Resize(img, size.X, size.Y, imaging.Lanczos), Metadata{}, nil
}
