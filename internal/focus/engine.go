// Package focus ranks anchor visibility and drives the auto-open/auto-close
// behavior of the detail panel.
package focus

import (
	"sort"

	"github.com/pkukic/margo/internal/viewport"
)

// VisibleSetSize is the number of top-ranked anchors kept as the visible set.
const VisibleSetSize = 3

const (
	// visibilityWeight makes visibility dominate the score; distance from
	// center only breaks ties among visible anchors.
	visibilityWeight = 1000

	// switchFraction of the viewport height: how centered the best anchor
	// must be before focus follows it while a panel is already open.
	switchFraction = 0.25

	// openFraction of the viewport height: tighter threshold for opening a
	// panel from nothing.
	openFraction = 0.20
)

// Action tells the UI what the focus engine decided on this pass.
type Action int

const (
	ActionNone Action = iota
	ActionOpen
	ActionSwitch
	ActionClose
)

// Ranked is one anchor with its computed score, ordered best-first in a
// Decision's visible set.
type Ranked struct {
	viewport.AnchorMetric
	Score float64
}

// Decision is the output of one visibility pass. MembershipChanged is true
// when the identity of the visible set changed (not merely its ordering);
// the UI rebuilds bubbles and arrows on membership changes and only
// repositions them otherwise.
type Decision struct {
	Visible           []Ranked
	MembershipChanged bool
	Action            Action
	Target            string // focused identifier for open/switch
}

// Engine applies the auto-focus policy. It remembers whether the current
// panel was opened automatically so it can be reassigned or closed as the
// user scrolls.
type Engine struct {
	focusedID  string
	panelOpen  bool
	autoOpened bool
	pinned     bool

	lastVisible map[string]struct{}
}

// NewEngine creates an engine with no focus.
func NewEngine() *Engine {
	return &Engine{lastVisible: make(map[string]struct{})}
}

// SetPinned toggles pinned mode. A pinned panel always follows scroll.
func (e *Engine) SetPinned(pinned bool) { e.pinned = pinned }

// Pinned returns whether the panel is pinned open.
func (e *Engine) Pinned() bool { return e.pinned }

// FocusedID returns the identifier of the currently focused anchor, or "".
func (e *Engine) FocusedID() string { return e.focusedID }

// NotePanelOpened records a panel open performed by the UI. auto marks opens
// initiated by this engine as opposed to explicit user clicks.
func (e *Engine) NotePanelOpened(id string, auto bool) {
	e.focusedID = id
	e.panelOpen = true
	e.autoOpened = auto
}

// NotePanelClosed records that the panel was closed.
func (e *Engine) NotePanelClosed() {
	e.focusedID = ""
	e.panelOpen = false
	e.autoOpened = false
}

// Update runs one visibility pass over the tracker's anchor metrics and
// returns the resulting decision. The engine applies the decision to its own
// state; the caller is responsible for the corresponding UI changes.
func (e *Engine) Update(metrics []viewport.AnchorMetric, viewportHeight float64) Decision {
	visible := rank(metrics)

	members := make(map[string]struct{}, len(visible))
	for _, r := range visible {
		members[r.ID] = struct{}{}
	}
	changed := membershipChanged(e.lastVisible, members)
	e.lastVisible = members

	decision := Decision{
		Visible:           visible,
		MembershipChanged: changed,
	}

	var best *Ranked
	if len(visible) > 0 {
		best = &visible[0]
	}

	switch {
	case e.panelOpen && e.pinned:
		// Pinned mode always follows scroll.
		if best != nil && best.DistanceFromCenter < switchFraction*viewportHeight && best.ID != e.focusedID {
			e.focusedID = best.ID
			decision.Action = ActionSwitch
			decision.Target = best.ID
			return decision
		}

	case !e.panelOpen:
		// Opening from nothing requires more centering.
		if best != nil && best.DistanceFromCenter < openFraction*viewportHeight {
			e.focusedID = best.ID
			e.panelOpen = true
			e.autoOpened = true
			decision.Action = ActionOpen
			decision.Target = best.ID
			return decision
		}

	case e.autoOpened:
		if best != nil && best.ID != e.focusedID && best.DistanceFromCenter < switchFraction*viewportHeight {
			e.focusedID = best.ID
			decision.Action = ActionSwitch
			decision.Target = best.ID
			return decision
		}
	}

	// Whatever opened the panel, losing the focused anchor closes it.
	if e.panelOpen && e.focusedID != "" {
		if _, ok := members[e.focusedID]; !ok {
			e.NotePanelClosed()
			decision.Action = ActionClose
			return decision
		}
	}

	return decision
}

// rank scores and orders anchor metrics, keeping the top VisibleSetSize of
// those with any visibility.
func rank(metrics []viewport.AnchorMetric) []Ranked {
	ranked := make([]Ranked, 0, len(metrics))
	for _, m := range metrics {
		if m.VisibilityRatio <= 0 {
			continue
		}
		ranked = append(ranked, Ranked{
			AnchorMetric: m,
			Score:        m.VisibilityRatio*visibilityWeight - m.DistanceFromCenter,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})

	if len(ranked) > VisibleSetSize {
		ranked = ranked[:VisibleSetSize]
	}
	return ranked
}

func membershipChanged(prev, next map[string]struct{}) bool {
	if len(prev) != len(next) {
		return true
	}
	for id := range next {
		if _, ok := prev[id]; !ok {
			return true
		}
	}
	return false
}
