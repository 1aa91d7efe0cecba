package focus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkukic/margo/internal/viewport"
	"github.com/pkukic/margo/pkg/geometry"
)

func metric(id string, ratio, distance float64) viewport.AnchorMetric {
	return viewport.AnchorMetric{ID: id, VisibilityRatio: ratio, DistanceFromCenter: distance}
}

func TestRankingVisibilityDominates(t *testing.T) {
	e := NewEngine()
	d := e.Update([]viewport.AnchorMetric{
		metric("far-but-visible", 1.0, 390),
		metric("close-but-clipped", 0.5, 10),
	}, 800)

	require.Len(t, d.Visible, 2)
	assert.Equal(t, "far-but-visible", d.Visible[0].ID)
	assert.InDelta(t, 610, d.Visible[0].Score, 1e-9)
	assert.InDelta(t, 490, d.Visible[1].Score, 1e-9)
}

func TestRankingTopN(t *testing.T) {
	e := NewEngine()
	d := e.Update([]viewport.AnchorMetric{
		metric("a", 1.0, 10),
		metric("b", 1.0, 20),
		metric("c", 1.0, 30),
		metric("d", 1.0, 40),
		metric("hidden", 0, 5),
	}, 800)

	require.Len(t, d.Visible, VisibleSetSize)
	assert.Equal(t, "a", d.Visible[0].ID)
	assert.Equal(t, "c", d.Visible[2].ID)
}

func TestRankingDeterministic(t *testing.T) {
	metrics := []viewport.AnchorMetric{
		metric("b", 1.0, 100),
		metric("a", 1.0, 100), // identical score, ordered by identifier
		metric("c", 0.8, 40),
	}

	var firstOrder []string
	for i := 0; i < 5; i++ {
		e := NewEngine()
		d := e.Update(metrics, 800)
		var order []string
		for _, r := range d.Visible {
			order = append(order, r.ID)
		}
		if firstOrder == nil {
			firstOrder = order
		}
		assert.Equal(t, firstOrder, order)
	}
}

func TestAutoOpenWhenCentered(t *testing.T) {
	// Viewport 800px; anchor centered 10px away from the 400px center.
	// 10 < 0.2*800 = 160, so the panel auto-opens.
	e := NewEngine()
	d := e.Update([]viewport.AnchorMetric{metric("ann_1", 1.0, 10)}, 800)

	assert.Equal(t, ActionOpen, d.Action)
	assert.Equal(t, "ann_1", d.Target)
	assert.Equal(t, "ann_1", e.FocusedID())
}

func TestNoAutoOpenOutsideThreshold(t *testing.T) {
	e := NewEngine()
	d := e.Update([]viewport.AnchorMetric{metric("ann_1", 1.0, 200)}, 800)
	assert.Equal(t, ActionNone, d.Action)
}

func TestAutoCloseWhenScrolledAway(t *testing.T) {
	e := NewEngine()
	e.Update([]viewport.AnchorMetric{metric("ann_1", 1.0, 10)}, 800)
	require.Equal(t, "ann_1", e.FocusedID())

	// Scrolled so its center is 300px from the viewport center and it is no
	// longer visible at all: the panel closes.
	d := e.Update([]viewport.AnchorMetric{metric("ann_1", 0, 300)}, 800)
	assert.Equal(t, ActionClose, d.Action)
	assert.Equal(t, "", e.FocusedID())
}

func TestManualOpenAlsoClosesOnExit(t *testing.T) {
	e := NewEngine()
	e.NotePanelOpened("ann_manual", false)

	d := e.Update([]viewport.AnchorMetric{metric("other", 1.0, 500)}, 800)
	assert.Equal(t, ActionClose, d.Action)
}

func TestAutoOpenedSwitchesToBetterAnchor(t *testing.T) {
	e := NewEngine()
	e.Update([]viewport.AnchorMetric{metric("ann_1", 1.0, 10)}, 800)

	// A different anchor becomes best within 25% of viewport height.
	d := e.Update([]viewport.AnchorMetric{
		metric("ann_1", 0.6, 350),
		metric("ann_2", 1.0, 50),
	}, 800)
	assert.Equal(t, ActionSwitch, d.Action)
	assert.Equal(t, "ann_2", d.Target)
}

func TestManualOpenDoesNotAutoSwitch(t *testing.T) {
	e := NewEngine()
	e.NotePanelOpened("ann_manual", false)

	d := e.Update([]viewport.AnchorMetric{
		metric("ann_manual", 0.9, 300),
		metric("ann_2", 1.0, 20),
	}, 800)
	assert.Equal(t, ActionNone, d.Action)
	assert.Equal(t, "ann_manual", e.FocusedID())
}

func TestPinnedFollowsScrollEvenWhenManuallyFocused(t *testing.T) {
	e := NewEngine()
	e.SetPinned(true)
	e.NotePanelOpened("ann_manual", false)

	d := e.Update([]viewport.AnchorMetric{
		metric("ann_manual", 1.0, 390),
		metric("ann_2", 1.0, 100), // 100 < 0.25*800 = 200
	}, 800)
	assert.Equal(t, ActionSwitch, d.Action)
	assert.Equal(t, "ann_2", d.Target)
}

func TestMembershipVsRankingChange(t *testing.T) {
	e := NewEngine()

	d := e.Update([]viewport.AnchorMetric{
		metric("a", 1.0, 300),
		metric("b", 1.0, 350),
	}, 800)
	assert.True(t, d.MembershipChanged)

	// Same members, different order: reposition only.
	d = e.Update([]viewport.AnchorMetric{
		metric("a", 1.0, 360),
		metric("b", 1.0, 310),
	}, 800)
	assert.False(t, d.MembershipChanged)
	assert.Equal(t, "b", d.Visible[0].ID)

	// One member disappears: full rebuild.
	d = e.Update([]viewport.AnchorMetric{
		metric("b", 1.0, 310),
	}, 800)
	assert.True(t, d.MembershipChanged)
}

func TestArrowPath(t *testing.T) {
	anchor := geometry.NewRect(100, 100, 40, 20)
	target := geometry.NewRect(400, 300, 200, 50)

	path, ok := ArrowPath(anchor, target)
	require.True(t, ok)

	// Leaves the anchor's right edge, lands on the target's left edge.
	assert.Equal(t, geometry.NewPoint2D(140, 110), path.Start)
	assert.Equal(t, geometry.NewPoint2D(400, 325), path.End)

	// Symmetric S-curve: both control points at the horizontal midpoint.
	assert.Equal(t, 270.0, path.C1.X)
	assert.Equal(t, 270.0, path.C2.X)
	assert.Equal(t, path.Start.Y, path.C1.Y)
	assert.Equal(t, path.End.Y, path.C2.Y)
}

func TestArrowPathLeftward(t *testing.T) {
	anchor := geometry.NewRect(500, 100, 40, 20)
	target := geometry.NewRect(100, 100, 50, 50)

	path, ok := ArrowPath(anchor, target)
	require.True(t, ok)
	assert.Equal(t, geometry.NewPoint2D(500, 110), path.Start)
	assert.Equal(t, geometry.NewPoint2D(150, 125), path.End)
}

func TestArrowPathSkipsUnlaidOut(t *testing.T) {
	_, ok := ArrowPath(geometry.Rect{}, geometry.NewRect(0, 0, 10, 10))
	assert.False(t, ok)

	_, ok = ArrowPath(geometry.NewRect(0, 0, 10, 10), geometry.Rect{})
	assert.False(t, ok)
}

func TestCubicFlatten(t *testing.T) {
	path, ok := ArrowPath(geometry.NewRect(0, 0, 10, 10), geometry.NewRect(100, 100, 10, 10))
	require.True(t, ok)

	points := path.Flatten(16)
	require.Len(t, points, 17)
	assert.Equal(t, path.Start, points[0])
	assert.Equal(t, path.End, points[16])
}
