package codecs

import (
	"context"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP decoding

	"transmute/internal/converter"
	"transmute/internal/fileutil"
	"transmute/internal/formats"
)

const (
	defaultImageQuality = 90

	// maxImageDimension bounds the width or height of resize requests.
	maxImageDimension = 16384
)

// imageEncoder re-encodes raster images, optionally resizing them.
type imageEncoder struct {
	quality int
}

func newImageEncoder(quality int) *imageEncoder {
	if quality <= 0 || quality > 100 {
		quality = defaultImageQuality
	}
	return &imageEncoder{quality: quality}
}

// convert decodes sourcePath honoring EXIF orientation and encodes it in the
// target format.
//
// Options:
//   - width, height: resize target; a zero side preserves the aspect ratio
//   - fit: scale down to fit within width x height instead of resizing exactly
//   - quality: JPEG quality 1-100 (default from configuration)
func (e *imageEncoder) convert(ctx context.Context, pair formats.Pair, sourcePath, targetPath string, opts converter.Options) error {
	target, err := imaging.FormatFromExtension(string(pair.Target))
	if err != nil {
		return fmt.Errorf("image codec cannot write %s: %w", pair.Target, err)
	}

	img, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	width := opts.Int("width", 0)
	height := opts.Int("height", 0)
	if width < 0 || height < 0 || width > maxImageDimension || height > maxImageDimension {
		return fmt.Errorf("invalid resize %dx%d", width, height)
	}
	switch {
	case width == 0 && height == 0:
	case opts.Bool("fit", false) && width > 0 && height > 0:
		img = imaging.Fit(img, width, height, imaging.Lanczos)
	default:
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}

	quality := opts.Int("quality", e.quality)
	if quality <= 0 || quality > 100 {
		quality = e.quality
	}
	return fileutil.WriteFileAtomic(targetPath, func(w io.Writer) error {
		if err := imaging.Encode(w, img, target, imaging.JPEGQuality(quality)); err != nil {
			return fmt.Errorf("encode %s: %w", pair.Target, err)
		}
		return nil
	})
}
