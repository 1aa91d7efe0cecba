package pdfdoc

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkukic/margo/pkg/geometry"
)

func newTestDocument(sizes []geometry.Size, imager PageImager) *Document {
	return &Document{
		path:      "/docs/fixture.pdf",
		name:      "fixture.pdf",
		pageSizes: sizes,
		imager:    imager,
		bitmap:    map[int]*PageBitmap{},
		runs:      map[int][]TextRun{},
		links:     map[int][]Link{},
	}
}

func TestPageSize(t *testing.T) {
	d := newTestDocument([]geometry.Size{{Width: 612, Height: 792}, {Width: 500, Height: 700}}, nil)

	assert.Equal(t, 2, d.PageCount())
	assert.Equal(t, geometry.Size{Width: 500, Height: 700}, d.PageSize(2))

	// Out of range falls back to US Letter.
	assert.Equal(t, geometry.Size{Width: 612, Height: 792}, d.PageSize(0))
	assert.Equal(t, geometry.Size{Width: 612, Height: 792}, d.PageSize(3))
}

func TestMergeRunsJoinsAdjacentGlyphs(t *testing.T) {
	// "Hello world" on one line: per-word show operations with a small gap,
	// page 100x200 points.
	texts := []pdf.Text{
		{S: "Hello", X: 10, Y: 180, W: 28, FontSize: 12},
		{S: " world", X: 38.5, Y: 180, W: 30, FontSize: 12},
	}
	runs := mergeRuns(texts, geometry.Size{Width: 100, Height: 200})
	require.Len(t, runs, 1)
	assert.Equal(t, "Hello world", runs[0].Text)

	// x spans 10..68.5 points, baseline 180 with 12pt glyphs.
	assert.InDelta(t, 0.10, runs[0].Rect.X, 1e-9)
	assert.InDelta(t, 0.585, runs[0].Rect.Width, 1e-9)
	assert.InDelta(t, 1-192.0/200.0, runs[0].Rect.Y, 1e-9)
	assert.InDelta(t, 12.0/200.0, runs[0].Rect.Height, 1e-9)
}

func TestMergeRunsSplitsOnGapsAndLines(t *testing.T) {
	texts := []pdf.Text{
		// Second line comes first in the content stream; sorting fixes order.
		{S: "below", X: 10, Y: 100, W: 25, FontSize: 10},
		{S: "left", X: 10, Y: 180, W: 20, FontSize: 10},
		// 40pt gap: a separate column on the same line.
		{S: "right", X: 70, Y: 180, W: 22, FontSize: 10},
	}
	runs := mergeRuns(texts, geometry.Size{Width: 100, Height: 200})
	require.Len(t, runs, 3)
	assert.Equal(t, "left", runs[0].Text)
	assert.Equal(t, "right", runs[1].Text)
	assert.Equal(t, "below", runs[2].Text)
}

func TestMergeRunsEmpty(t *testing.T) {
	assert.Nil(t, mergeRuns(nil, geometry.Size{Width: 100, Height: 200}))
	assert.Nil(t, mergeRuns([]pdf.Text{{S: "x"}}, geometry.Size{}))
	assert.Empty(t, mergeRuns([]pdf.Text{{S: "   ", X: 1, Y: 1, W: 1, FontSize: 10}},
		geometry.Size{Width: 100, Height: 200}))
}

func TestTextInRect(t *testing.T) {
	d := newTestDocument([]geometry.Size{{Width: 100, Height: 200}}, nil)
	d.runs[1] = []TextRun{
		{Text: "alpha", Rect: geometry.Rect{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.05}},
		{Text: "beta", Rect: geometry.Rect{X: 0.1, Y: 0.2, Width: 0.2, Height: 0.05}},
		{Text: "gamma", Rect: geometry.Rect{X: 0.1, Y: 0.8, Width: 0.2, Height: 0.05}},
	}

	got := d.TextInRect(1, geometry.Rect{X: 0, Y: 0, Width: 1, Height: 0.3})
	assert.Equal(t, "alpha beta", got)

	assert.Empty(t, d.TextInRect(1, geometry.Rect{X: 0.5, Y: 0.5, Width: 0.1, Height: 0.1}))
}

func TestAnnotRectFallbacks(t *testing.T) {
	_, ok := annotRect(pdf.Value{}, geometry.Size{Width: 100, Height: 200})
	assert.False(t, ok)
}

func TestDestPageNonArray(t *testing.T) {
	assert.Zero(t, destPage(pdf.Value{}))
}

// fakeImager serves solid PNGs and counts requests per page.
type fakeImager struct {
	mu    sync.Mutex
	calls map[int]int
	fail  bool
}

func (f *fakeImager) ExtractPageImage(_ context.Context, _ string, pageNumber int, scale float64) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[int]int{}
	}
	f.calls[pageNumber]++
	f.mu.Unlock()

	if f.fail {
		return "", fmt.Errorf("renderer down")
	}

	img := image.NewRGBA(image.Rect(0, 0, int(10*scale), int(20*scale)))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func TestRenderPageCaches(t *testing.T) {
	imager := &fakeImager{}
	d := newTestDocument([]geometry.Size{{Width: 10, Height: 20}}, imager)

	bm, err := d.RenderPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, RenderScale, bm.Scale)
	assert.Equal(t, 20, bm.Image.Bounds().Dx())
	assert.Equal(t, 40, bm.Image.Bounds().Dy())

	again, err := d.RenderPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Same(t, bm, again)
	assert.Equal(t, 1, imager.calls[1])

	assert.Same(t, bm, d.CachedBitmap(1))
	d.InvalidateBitmaps()
	assert.Nil(t, d.CachedBitmap(1))
}

func TestRenderPageErrors(t *testing.T) {
	d := newTestDocument([]geometry.Size{{Width: 10, Height: 20}}, nil)
	_, err := d.RenderPage(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoImager)

	d = newTestDocument([]geometry.Size{{Width: 10, Height: 20}}, &fakeImager{fail: true})
	_, err = d.RenderPage(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render page 1")
}

func TestRenderCacheEvictsDistantPages(t *testing.T) {
	sizes := make([]geometry.Size, maxCachedBitmaps+5)
	for i := range sizes {
		sizes[i] = geometry.Size{Width: 10, Height: 20}
	}
	d := newTestDocument(sizes, &fakeImager{})

	for page := 1; page <= maxCachedBitmaps+5; page++ {
		_, err := d.RenderPage(context.Background(), page)
		require.NoError(t, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.LessOrEqual(t, len(d.bitmap), maxCachedBitmaps)
	// The most recent page always survives eviction.
	assert.Contains(t, d.bitmap, maxCachedBitmaps+5)
}
