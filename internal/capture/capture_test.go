package capture

import (
	"encoding/base64"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkukic/margo/pkg/geometry"
)

func testPages() []Page {
	// Two US Letter pages rendered at R=2, Z=1, stacked with a 10px gap.
	return []Page{
		{Number: 1, ScreenRect: geometry.NewRect(0, 0, 1224, 1584), Size: geometry.NewSize(612, 792)},
		{Number: 2, ScreenRect: geometry.NewRect(0, 1594, 1224, 1584), Size: geometry.NewSize(612, 792)},
	}
}

func TestFinalizeRegionMinimumSize(t *testing.T) {
	pages := testPages()

	// 19x19 drag: discarded.
	_, ok := FinalizeRegion(geometry.NewPoint2D(100, 100), geometry.NewPoint2D(119, 119), pages, 2.0, 1.0)
	assert.False(t, ok)

	// 20x20 drag: accepted.
	r, ok := FinalizeRegion(geometry.NewPoint2D(100, 100), geometry.NewPoint2D(120, 120), pages, 2.0, 1.0)
	require.True(t, ok)
	assert.Equal(t, 1, r.PageNumber)
}

func TestFinalizeRegionReversedDrag(t *testing.T) {
	pages := testPages()

	forward, ok := FinalizeRegion(geometry.NewPoint2D(100, 100), geometry.NewPoint2D(200, 180), pages, 2.0, 1.0)
	require.True(t, ok)
	backward, ok := FinalizeRegion(geometry.NewPoint2D(200, 180), geometry.NewPoint2D(100, 100), pages, 2.0, 1.0)
	require.True(t, ok)
	assert.Equal(t, forward, backward)
}

func TestFinalizeRegionOwningPage(t *testing.T) {
	pages := testPages()

	// Drag centered on page 2.
	r, ok := FinalizeRegion(geometry.NewPoint2D(100, 1700), geometry.NewPoint2D(300, 1900), pages, 2.0, 1.0)
	require.True(t, ok)
	assert.Equal(t, 2, r.PageNumber)

	// Center in the gap between pages: discarded.
	_, ok = FinalizeRegion(geometry.NewPoint2D(100, 1558), geometry.NewPoint2D(300, 1620), pages, 2.0, 1.0)
	assert.False(t, ok)
}

func TestFinalizeRegionNormalization(t *testing.T) {
	pages := testPages()

	// At Z=1, R=2 the full page is 1224x1584 on screen; a drag over the
	// page's top-left quadrant normalizes to {0,0,0.5,0.5}.
	r, ok := FinalizeRegion(geometry.NewPoint2D(0, 0), geometry.NewPoint2D(612, 792), pages, 2.0, 1.0)
	require.True(t, ok)
	assert.InDelta(t, 0, r.Normalized.X, 1e-9)
	assert.InDelta(t, 0, r.Normalized.Y, 1e-9)
	assert.InDelta(t, 0.5, r.Normalized.Width, 1e-9)
	assert.InDelta(t, 0.5, r.Normalized.Height, 1e-9)

	// Render-space rect divides zoom out but keeps R.
	assert.InDelta(t, 612, r.RenderRect.Width, 1e-9)
	assert.InDelta(t, 792, r.RenderRect.Height, 1e-9)
}

func TestFinalizeRegionZoomed(t *testing.T) {
	// Page 1 at Z=2 occupies 2448x3168 starting at the same origin.
	pages := []Page{
		{Number: 1, ScreenRect: geometry.NewRect(0, 0, 2448, 3168), Size: geometry.NewSize(612, 792)},
	}

	r, ok := FinalizeRegion(geometry.NewPoint2D(0, 0), geometry.NewPoint2D(2448, 3168), pages, 2.0, 2.0)
	require.True(t, ok)
	assert.InDelta(t, 1.0, r.Normalized.Width, 1e-9)
	assert.InDelta(t, 1.0, r.Normalized.Height, 1e-9)
}

func TestFinalizeTextSpan(t *testing.T) {
	pages := testPages()

	rects := []geometry.Rect{
		geometry.NewRect(100, 300, 400, 18),
		geometry.NewRect(100, 320, 250, 18),
	}
	span, ok := FinalizeTextSpan("the attention mechanism", rects, pages, 2.0, 1.0)
	require.True(t, ok)
	assert.Equal(t, 1, span.PageNumber)
	assert.Equal(t, "the attention mechanism", span.Text)

	// The union covers both lines.
	assert.InDelta(t, 400.0/1224.0, span.Normalized.Width, 1e-9)
	assert.InDelta(t, 38.0/1584.0, span.Normalized.Height, 1e-9)
}

func TestFinalizeTextSpanRejectsEmpty(t *testing.T) {
	pages := testPages()
	rects := []geometry.Rect{geometry.NewRect(100, 300, 40, 18)}

	_, ok := FinalizeTextSpan("   ", rects, pages, 2.0, 1.0)
	assert.False(t, ok)

	_, ok = FinalizeTextSpan("text", nil, pages, 2.0, 1.0)
	assert.False(t, ok)
}

// solidImage builds a bitmap with a distinct color in the target region so
// extraction can be verified by sampling.
func solidImage(w, h int, marked image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if image.Pt(x, y).In(marked) {
				img.Set(x, y, color.RGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{B: 255, A: 255})
			}
		}
	}
	return img
}

func TestExtractBitmap(t *testing.T) {
	// Backing bitmap at pixel ratio 1: device == render.
	src := solidImage(400, 400, image.Rect(100, 100, 200, 200))

	out, err := ExtractBitmap(src, geometry.NewRect(100, 100, 100, 100), 1.0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 100), out.Bounds())

	r, _, _, _ := out.At(50, 50).RGBA()
	assert.NotZero(t, r, "center of extraction is the marked region")
}

func TestExtractBitmapHighDPI(t *testing.T) {
	// Pixel ratio 2: the backing bitmap has twice the render resolution, but
	// the output stays sized in render pixels.
	src := solidImage(800, 800, image.Rect(200, 200, 400, 400))

	out, err := ExtractBitmap(src, geometry.NewRect(100, 100, 100, 100), 2.0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 100), out.Bounds())

	r, _, _, _ := out.At(50, 50).RGBA()
	assert.NotZero(t, r)
}

func TestExtractBitmapOutOfBounds(t *testing.T) {
	src := solidImage(100, 100, image.Rectangle{})

	_, err := ExtractBitmap(src, geometry.NewRect(500, 500, 50, 50), 1.0)
	assert.Error(t, err)

	_, err = ExtractBitmap(src, geometry.Rect{}, 1.0)
	assert.Error(t, err)
}

func TestEncodePNGBase64(t *testing.T) {
	img := solidImage(10, 10, image.Rect(0, 0, 10, 10))
	payload, err := EncodePNGBase64(img)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, raw[:4])
}
