package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkukic/margo/internal/backend"
)

func TestZoomClampAndEvents(t *testing.T) {
	s := NewState(nil, nil)

	var events []float64
	s.On(EventZoomChanged, func(data interface{}) {
		events = append(events, data.(float64))
	})

	s.SetZoom(1.5)
	s.SetZoom(1.5) // no change, no event
	s.SetZoom(99)  // clamps to max
	s.SetZoom(0.01)

	assert.Equal(t, []float64{1.5, 3.0, 0.25}, events)
	assert.Equal(t, 0.25, s.Zoom())
}

func TestZoomStepping(t *testing.T) {
	s := NewState(nil, nil)
	s.ZoomIn()
	assert.InDelta(t, 1.1, s.Zoom(), 1e-9)
	s.ZoomOut()
	s.ZoomOut()
	assert.InDelta(t, 0.9, s.Zoom(), 1e-9)
	s.ResetZoom()
	assert.Equal(t, 1.0, s.Zoom())
}

func TestCurrentPageDefaultsToOne(t *testing.T) {
	s := NewState(nil, nil)
	assert.Equal(t, 1, s.CurrentPage())

	var pages []int
	s.On(EventPageChanged, func(data interface{}) {
		pages = append(pages, data.(int))
	})
	s.SetCurrentPage(3)
	s.SetCurrentPage(3)
	s.SetCurrentPage(4)
	assert.Equal(t, []int{3, 4}, pages)
}

func TestCaptureModeIsOneShot(t *testing.T) {
	s := NewState(nil, nil)
	assert.Equal(t, ModeNone, s.CaptureMode())

	var modes []CaptureMode
	s.On(EventCaptureModeChanged, func(data interface{}) {
		modes = append(modes, data.(CaptureMode))
	})

	s.ArmCapture(ModeRegion)
	assert.Equal(t, ModeRegion, s.CaptureMode())
	s.DisarmCapture()
	assert.Equal(t, ModeNone, s.CaptureMode())
	assert.Equal(t, []CaptureMode{ModeRegion, ModeNone}, modes)
}

func TestEnsureConnected(t *testing.T) {
	s := NewState(nil, nil)
	require.ErrorIs(t, s.EnsureConnected(), backend.ErrDisconnected)

	s.setConnected(true)
	assert.NoError(t, s.EnsureConnected())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://127.0.0.1:8765", cfg.Backend.URL)
	assert.Equal(t, 5, cfg.Backend.PollSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 120, cfg.Backend.TimeoutSeconds)
}
