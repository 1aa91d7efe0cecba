package pdfview

import (
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"

	"github.com/pkukic/margo/internal/app"
	"github.com/pkukic/margo/pkg/geometry"
)

// pageStack sits inside the scroll container, so pointer events arrive
// content-relative: the scroll offset is already folded in and must not be
// applied again.
func TestDragCoordinatesIgnoreScrollOffset(t *testing.T) {
	test.NewApp()
	state := app.NewState(nil, nil)
	v := NewView(state)

	v.mu.Lock()
	v.boxes = []PageBox{
		{Number: 1, ScreenRect: geometry.NewRect(0, 0, 1224, 1584), Size: geometry.NewSize(612, 792)},
		{Number: 2, ScreenRect: geometry.NewRect(0, 1600, 1224, 1584), Size: geometry.NewSize(612, 792)},
	}
	v.mu.Unlock()

	state.ArmCapture(app.ModeRegion)
	v.scroll.scroll.Offset = fyne.NewPos(0, 500)

	drag := func(x, y float32) {
		v.content.Dragged(&fyne.DragEvent{
			PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)},
		})
	}
	drag(100, 700)
	drag(300, 900)

	v.mu.Lock()
	start, end := v.dragStart, v.dragEnd
	v.mu.Unlock()

	assert.Equal(t, geometry.Point2D{X: 100, Y: 700}, start,
		"drag start must not shift with the scroll offset")
	assert.Equal(t, geometry.Point2D{X: 300, Y: 900}, end)
}
