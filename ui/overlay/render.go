// Package overlay draws annotation markers, focus arrows, and ink strokes
// over rendered pages.
package overlay

import (
	"image"
	"image/color"
	"math"

	"github.com/pkukic/margo/internal/focus"
	"github.com/pkukic/margo/pkg/geometry"
)

// Marker is one annotation anchor placed in screen space.
type Marker struct {
	ID         string
	ScreenRect geometry.Rect
	Focused    bool
	Badge      string // short text shown at the marker corner
}

// Ink is a freehand note stroke in screen space, already smoothed.
type Ink struct {
	Points []geometry.Point2D
	Width  float64
}

// Frame is everything the renderer paints on top of the pages for one
// redraw.
type Frame struct {
	Markers []Marker
	Arrows  []focus.CubicPath
	Inks    []Ink
	// DragRect is the in-progress rubber band, nil when idle.
	DragRect *geometry.Rect
}

var (
	markerColor    = color.RGBA{R: 0x1A, G: 0x73, B: 0xE8, A: 0xFF}
	focusedColor   = color.RGBA{R: 0xE8, G: 0x71, B: 0x1A, A: 0xFF}
	selectionColor = color.RGBA{R: 0xFF, G: 0xD5, B: 0x00, A: 0xFF}
	inkColor       = color.RGBA{R: 0xD3, G: 0x2F, B: 0x2F, A: 0xFF}
)

// arrowSegments is how finely cubic focus arrows are flattened before
// rasterizing.
const arrowSegments = 24

// Draw paints the frame onto the output bitmap.
func Draw(output *image.RGBA, frame Frame) {
	for _, ink := range frame.Inks {
		drawPolyline(output, ink.Points, inkColor, int(ink.Width))
	}
	for _, m := range frame.Markers {
		col := markerColor
		thickness := 2
		if m.Focused {
			col = focusedColor
			thickness = 3
		}
		drawRectOutline(output, m.ScreenRect, col, thickness)
		if m.Badge != "" {
			drawBadge(output, m.ScreenRect, m.Badge, col)
		}
	}
	for _, arrow := range frame.Arrows {
		drawPolyline(output, arrow.Flatten(arrowSegments), focusedColor, 2)
		drawArrowHead(output, arrow, focusedColor)
	}
	if frame.DragRect != nil {
		drawDashedRect(output, *frame.DragRect, selectionColor)
	}
}

func drawRectOutline(output *image.RGBA, r geometry.Rect, col color.RGBA, thickness int) {
	x1, y1 := int(r.X), int(r.Y)
	x2, y2 := int(r.X+r.Width), int(r.Y+r.Height)
	bounds := output.Bounds()

	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			setPx(output, bounds, x, y1+t, col)
			setPx(output, bounds, x, y2-t, col)
		}
		for y := y1; y <= y2; y++ {
			setPx(output, bounds, x1+t, y, col)
			setPx(output, bounds, x2-t, y, col)
		}
	}
}

func drawDashedRect(output *image.RGBA, r geometry.Rect, col color.RGBA) {
	x1, y1 := int(r.X), int(r.Y)
	x2, y2 := int(r.X+r.Width), int(r.Y+r.Height)
	bounds := output.Bounds()

	for x := x1; x <= x2; x++ {
		if (x+y1)%6 < 3 {
			setPx(output, bounds, x, y1, col)
		}
		if (x+y2)%6 < 3 {
			setPx(output, bounds, x, y2, col)
		}
	}
	for y := y1; y <= y2; y++ {
		if (x1+y)%6 < 3 {
			setPx(output, bounds, x1, y, col)
		}
		if (x2+y)%6 < 3 {
			setPx(output, bounds, x2, y, col)
		}
	}
}

func drawPolyline(output *image.RGBA, points []geometry.Point2D, col color.RGBA, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	for i := 1; i < len(points); i++ {
		drawLine(output,
			int(points[i-1].X), int(points[i-1].Y),
			int(points[i].X), int(points[i].Y), col, thickness)
	}
}

// drawArrowHead draws a small V at the arrow's end, oriented along the final
// curve tangent.
func drawArrowHead(output *image.RGBA, path focus.CubicPath, col color.RGBA) {
	const size = 8.0
	tip := path.End
	// tangent from a point just before the end
	prev := path.At(0.95)
	dx, dy := tip.X-prev.X, tip.Y-prev.Y
	length := dx*dx + dy*dy
	if length == 0 {
		return
	}
	// two barbs at ±150 degrees from the tangent
	for _, side := range []float64{1, -1} {
		bx := -dx*0.866 - side*dy*0.5
		by := -dy*0.866 + side*dx*0.5
		scale := size / math.Hypot(bx, by)
		drawLine(output, int(tip.X), int(tip.Y),
			int(tip.X+bx*scale), int(tip.Y+by*scale), col, 2)
	}
}

// drawBadge draws a small filled tag above the marker's top-left corner with
// the badge text.
func drawBadge(output *image.RGBA, r geometry.Rect, text string, col color.RGBA) {
	scale := 2
	w := (len(text)*4 + 3) * scale
	h := 7 * scale
	x := int(r.X)
	y := int(r.Y) - h - 2
	if y < 0 {
		y = int(r.Y) + 2
	}
	bounds := output.Bounds()
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			setPx(output, bounds, x+dx, y+dy, col)
		}
	}
	drawText(output, text, x+scale, y+scale, color.RGBA{R: 255, G: 255, B: 255, A: 255}, scale)
}

// drawLine draws a line between two points using Bresenham's algorithm.
func drawLine(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA, thickness int) {
	bounds := output.Bounds()

	dx := x2 - x1
	dy := y2 - y1
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		for t := -thickness / 2; t <= thickness/2; t++ {
			for s := -thickness / 2; s <= thickness/2; s++ {
				setPx(output, bounds, x1+s, y1+t, col)
			}
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func setPx(output *image.RGBA, bounds image.Rectangle, x, y int, col color.RGBA) {
	if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
		output.SetRGBA(x, y, col)
	}
}

