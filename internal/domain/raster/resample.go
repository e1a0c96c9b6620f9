// Package raster holds the pixel-level helpers shared by video sources and
// the selection engine.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
)

// Resample scales src to a width x height RGBA raster with a bilinear filter.
// The same filter is applied to every sample, so results are deterministic.
func Resample(src image.Image, width, height int) (*image.RGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("resample nil image: %w", entity.ErrInvalidArgument)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("resample to %dx%d: %w", width, height, entity.ErrInvalidArgument)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	sb := src.Bounds()
	if sb.Dx() == width && sb.Dy() == height {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
		return dst, nil
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
	return dst, nil
}

// EncodeJPEG encodes a kept still at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
