package analysis

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/dmattli/go-exopticon/internal/model"
)

func solidJPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestApplyMasksReturnsInputUnchangedWhenNoMasks(t *testing.T) {
	t.Parallel()
	data := solidJPEG(t, 4, 4, color.White)
	out, err := ApplyMasks(data, nil)
	if err != nil {
		t.Fatalf("ApplyMasks: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("expected unchanged bytes when no masks are configured")
	}
}

func TestApplyMasksPaintsRegionBlack(t *testing.T) {
	t.Parallel()
	data := solidJPEG(t, 10, 10, color.White)
	masked, err := ApplyMasks(data, []model.Rect{{ULX: 0, ULY: 0, LRX: 5, LRY: 5}})
	if err != nil {
		t.Fatalf("ApplyMasks: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(masked))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	r, g, b, _ := img.At(1, 1).RGBA()
	if r > 0x1000 || g > 0x1000 || b > 0x1000 {
		t.Fatalf("expected masked region to be near-black, got r=%d g=%d b=%d", r, g, b)
	}
	r, g, b, _ = img.At(8, 8).RGBA()
	if r < 0xE000 {
		t.Fatalf("expected unmasked region to remain near-white, got r=%d g=%d b=%d", r, g, b)
	}
}

func TestApplyMasksIgnoresOutOfBoundsRect(t *testing.T) {
	t.Parallel()
	data := solidJPEG(t, 4, 4, color.White)
	_, err := ApplyMasks(data, []model.Rect{{ULX: 100, ULY: 100, LRX: 200, LRY: 200}})
	if err != nil {
		t.Fatalf("ApplyMasks should not error on an out-of-bounds mask: %v", err)
	}
}
