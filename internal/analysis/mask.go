package analysis

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/dmattli/go-exopticon/internal/model"
)

// jpegQuality matches a typical capture-quality default; re-encoding
// happens whenever at least one mask is configured, even if none of
// them overlaps the image.
const jpegQuality = 85

// ApplyMasks decodes jpegData, paints each rect black, and re-encodes
// it, treating the frame as a plain image.Image. Masks with no overlap with the image bounds are
// silently skipped. If masks is empty, jpegData is returned unchanged
// so frames with no configured mask skip the decode/encode round trip
// entirely.
func ApplyMasks(jpegData []byte, masks []model.Rect) ([]byte, error) {
	if len(masks) == 0 {
		return jpegData, nil
	}

	img, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, err
	}

	rgba, ok := img.(draw.Image)
	if !ok {
		b := img.Bounds()
		dst := image.NewRGBA(b)
		draw.Draw(dst, b, img, b.Min, draw.Src)
		rgba = dst
	}

	black := image.NewUniform(color.Black)
	for _, r := range masks {
		rect := image.Rect(int(r.ULX), int(r.ULY), int(r.LRX), int(r.LRY)).Intersect(rgba.Bounds())
		if rect.Empty() {
			continue
		}
		draw.Draw(rgba, rect, black, image.Point{}, draw.Src)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, rgba, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
