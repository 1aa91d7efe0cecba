package pdfview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkukic/margo/pkg/geometry"
)

func letterPages(n int) []geometry.Size {
	sizes := make([]geometry.Size, n)
	for i := range sizes {
		sizes[i] = geometry.Size{Width: 612, Height: 792}
	}
	return sizes
}

func TestComputeLayoutStacksAndCenters(t *testing.T) {
	boxes, total := computeLayout(letterPages(3), 1.0, 0)
	require.Len(t, boxes, 3)

	// 612pt at 2x render scale and 100% zoom.
	assert.Equal(t, 1224.0, boxes[0].ScreenRect.Width)
	assert.Equal(t, 1584.0, boxes[0].ScreenRect.Height)

	// Pages start after a gap and stack with gaps between.
	assert.Equal(t, pageGap, boxes[0].ScreenRect.Y)
	assert.Equal(t, boxes[0].ScreenRect.Y+boxes[0].ScreenRect.Height+pageGap, boxes[1].ScreenRect.Y)

	// Total height covers the last page plus the trailing gap.
	last := boxes[2].ScreenRect
	assert.Equal(t, last.Y+last.Height+pageGap, total.Height)
	assert.Equal(t, 1224.0, total.Width)
}

func TestComputeLayoutCentersNarrowPages(t *testing.T) {
	sizes := []geometry.Size{
		{Width: 612, Height: 792},
		{Width: 306, Height: 792},
	}
	boxes, _ := computeLayout(sizes, 1.0, 0)
	assert.Equal(t, 0.0, boxes[0].ScreenRect.X)
	// The narrow page is centered within the widest page's extent.
	assert.Equal(t, (1224.0-612.0)/2, boxes[1].ScreenRect.X)
}

func TestComputeLayoutScalesWithZoom(t *testing.T) {
	at1, _ := computeLayout(letterPages(1), 1.0, 0)
	at2, _ := computeLayout(letterPages(1), 2.0, 0)
	assert.Equal(t, at1[0].ScreenRect.Width*2, at2[0].ScreenRect.Width)
	assert.Equal(t, at1[0].ScreenRect.Height*2, at2[0].ScreenRect.Height)
	assert.Equal(t, pageGap*2, at2[0].ScreenRect.Y)
}

func TestComputeLayoutWideViewportCenters(t *testing.T) {
	boxes, total := computeLayout(letterPages(1), 1.0, 3000)
	assert.Equal(t, 3000.0, total.Width)
	assert.Equal(t, (3000.0-1224.0)/2, boxes[0].ScreenRect.X)
}

func TestPageAt(t *testing.T) {
	boxes, _ := computeLayout(letterPages(2), 1.0, 0)

	inFirst := pageAt(boxes, geometry.Point2D{X: 100, Y: boxes[0].ScreenRect.Y + 10})
	require.NotNil(t, inFirst)
	assert.Equal(t, 1, inFirst.Number)

	// A point in the gap belongs to no page.
	gapY := boxes[0].ScreenRect.Y + boxes[0].ScreenRect.Height + pageGap/2
	assert.Nil(t, pageAt(boxes, geometry.Point2D{X: 100, Y: gapY}))
}

func TestAnchorScreenRect(t *testing.T) {
	box := PageBox{
		Number:     1,
		ScreenRect: geometry.Rect{X: 100, Y: 200, Width: 1000, Height: 2000},
	}
	r := anchorScreenRect(box, geometry.Rect{X: 0.25, Y: 0.1, Width: 0.5, Height: 0.2})
	assert.Equal(t, geometry.Rect{X: 350, Y: 400, Width: 500, Height: 400}, r)
}

func TestPageLayoutsMatchBoxes(t *testing.T) {
	boxes, _ := computeLayout(letterPages(2), 1.0, 0)
	layouts := pageLayouts(boxes)
	require.Len(t, layouts, 2)
	assert.Equal(t, 1, layouts[0].Number)
	assert.Equal(t, boxes[1].ScreenRect.Y, layouts[1].Top)
	assert.Equal(t, boxes[1].ScreenRect.Height, layouts[1].Height)
}

func TestDragRectFromReversedCorners(t *testing.T) {
	r := dragRectFrom(geometry.Point2D{X: 50, Y: 60}, geometry.Point2D{X: 10, Y: 20})
	assert.Equal(t, geometry.Rect{X: 10, Y: 20, Width: 40, Height: 40}, r)
}
