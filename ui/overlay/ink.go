package overlay

import (
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/pkukic/margo/pkg/geometry"
)

// inkSamplesPerPoint controls how densely smoothed strokes are resampled.
const inkSamplesPerPoint = 4

// SmoothStroke fits an Akima spline through the raw pen samples and
// resamples it, so hand-drawn strokes render without polyline corners.
// Strokes with fewer than three distinct points pass through unchanged.
func SmoothStroke(points []geometry.Point2D) []geometry.Point2D {
	pts := dedupePoints(points)
	if len(pts) < 3 {
		return pts
	}

	// Parametrize by cumulative chord length.
	ts := make([]float64, len(pts))
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		if i > 0 {
			ts[i] = ts[i-1] + math.Hypot(p.X-pts[i-1].X, p.Y-pts[i-1].Y)
		}
		xs[i] = p.X
		ys[i] = p.Y
	}

	var sx, sy interp.AkimaSpline
	if err := sx.Fit(ts, xs); err != nil {
		return pts
	}
	if err := sy.Fit(ts, ys); err != nil {
		return pts
	}

	n := len(pts) * inkSamplesPerPoint
	out := make([]geometry.Point2D, 0, n+1)
	total := ts[len(ts)-1]
	for i := 0; i <= n; i++ {
		t := total * float64(i) / float64(n)
		out = append(out, geometry.Point2D{X: sx.Predict(t), Y: sy.Predict(t)})
	}
	return out
}

// dedupePoints drops consecutive duplicates, which would break the strictly
// increasing parametrization.
func dedupePoints(points []geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, 0, len(points))
	for _, p := range points {
		if len(out) > 0 {
			last := out[len(out)-1]
			if math.Hypot(p.X-last.X, p.Y-last.Y) < 1e-9 {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}
