// Package selection decides which sampled frames are distinct enough to keep.
//
// Every candidate is compared against the last kept frame rather than the
// previous sample, so slow drift still crosses the threshold eventually.
package selection

import (
	"fmt"
	"image"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
)

// Compare returns the mean normalized absolute difference over the red, green
// and blue channels of two equally sized rasters. Alpha is ignored. The result
// is in [0, 1]: 0 for identical rasters, 1 for maximal divergence everywhere.
func Compare(a, b *image.RGBA) (float64, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("compare nil raster: %w", entity.ErrInvalidArgument)
	}
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, fmt.Errorf("compare %dx%d with %dx%d: %w",
			ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy(), entity.ErrInvalidArgument)
	}
	w, h := ab.Dx(), ab.Dy()
	if w == 0 || h == 0 {
		return 0, fmt.Errorf("compare empty raster: %w", entity.ErrInvalidArgument)
	}

	// Integer sum keeps the score exact and order independent.
	var sum uint64
	for y := 0; y < h; y++ {
		ra := a.Pix[a.PixOffset(ab.Min.X, ab.Min.Y+y):]
		rb := b.Pix[b.PixOffset(bb.Min.X, bb.Min.Y+y):]
		for x := 0; x < w*4; x += 4 {
			sum += absDiff(ra[x], rb[x])
			sum += absDiff(ra[x+1], rb[x+1])
			sum += absDiff(ra[x+2], rb[x+2])
		}
	}

	return float64(sum) / (255 * 3 * float64(w) * float64(h)), nil
}

func absDiff(x, y uint8) uint64 {
	if x > y {
		return uint64(x - y)
	}
	return uint64(y - x)
}
