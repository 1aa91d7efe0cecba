package focus

import (
	"github.com/pkukic/margo/pkg/geometry"
)

// CubicPath is a cubic Bezier connector from an overlay anchor to a list row
// or floating bubble.
type CubicPath struct {
	Start, C1, C2, End geometry.Point2D
}

// ArrowPath builds the connector curve between an anchor rectangle and its
// target rectangle, both in screen space. The curve leaves the edge of the
// anchor facing the target and lands on the target's facing edge; both
// control points share the horizontal midpoint of the endpoints, giving a
// symmetric S-curve. Returns false when either rectangle is not currently
// laid out (zero size), in which case the arrow is skipped for the frame.
func ArrowPath(anchor, target geometry.Rect) (CubicPath, bool) {
	if anchor.IsEmpty() || target.IsEmpty() {
		return CubicPath{}, false
	}

	var start, end geometry.Point2D
	if target.Center().X >= anchor.Center().X {
		start = geometry.Point2D{X: anchor.X + anchor.Width, Y: anchor.Y + anchor.Height/2}
		end = geometry.Point2D{X: target.X, Y: target.Y + target.Height/2}
	} else {
		start = geometry.Point2D{X: anchor.X, Y: anchor.Y + anchor.Height/2}
		end = geometry.Point2D{X: target.X + target.Width, Y: target.Y + target.Height/2}
	}

	midX := (start.X + end.X) / 2
	return CubicPath{
		Start: start,
		C1:    geometry.Point2D{X: midX, Y: start.Y},
		C2:    geometry.Point2D{X: midX, Y: end.Y},
		End:   end,
	}, true
}

// At evaluates the curve at parameter t in [0,1].
func (c CubicPath) At(t float64) geometry.Point2D {
	u := 1 - t
	b0 := u * u * u
	b1 := 3 * u * u * t
	b2 := 3 * u * t * t
	b3 := t * t * t
	return geometry.Point2D{
		X: b0*c.Start.X + b1*c.C1.X + b2*c.C2.X + b3*c.End.X,
		Y: b0*c.Start.Y + b1*c.C1.Y + b2*c.C2.Y + b3*c.End.Y,
	}
}

// Flatten samples the curve into n+1 polyline points for drawing.
func (c CubicPath) Flatten(n int) []geometry.Point2D {
	if n < 1 {
		n = 1
	}
	points := make([]geometry.Point2D, 0, n+1)
	for i := 0; i <= n; i++ {
		points = append(points, c.At(float64(i)/float64(n)))
	}
	return points
}
