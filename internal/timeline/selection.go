package timeline

import (
	"fmt"
	"math"
	"time"
)

// Selection is the resolved target of a user selection: the wall-clock
// timestamp and its seek offset in the loaded segment index.
type Selection struct {
	Timestamp time.Time
	Offset    time.Duration
}

// SelectionMapper translates UI selections into timestamps and seek offsets
// for one loaded window.
type SelectionMapper struct {
	window Window
	index  *SegmentIndex
}

// NewSelectionMapper returns a mapper for window. A nil index behaves like an
// empty one.
func NewSelectionMapper(window Window, index *SegmentIndex) *SelectionMapper {
	if index == nil {
		index = &SegmentIndex{}
	}
	return &SelectionMapper{window: window, index: index}
}

// Window returns the window the mapper was built for.
func (m *SelectionMapper) Window() Window {
	return m.window
}

// Index returns the segment index the mapper resolves offsets against.
func (m *SelectionMapper) Index() *SegmentIndex {
	return m.index
}

// FromDragPosition interpolates a scrubber position within the mapper's window.
func (m *SelectionMapper) FromDragPosition(fraction float64) (time.Time, error) {
	return FromDragPosition(m.window.After, m.window.Before, fraction)
}

// FromEvent returns the event's timestamp after checking it belongs to the
// loaded window.
func (m *SelectionMapper) FromEvent(ev TimelineEvent) (time.Time, error) {
	if ev.Camera != m.window.Camera {
		return time.Time{}, fmt.Errorf("%w: event %s is for camera %q, loaded %q", ErrStaleSelection, ev.ID, ev.Camera, m.window.Camera)
	}
	if !m.window.Contains(ev.Timestamp) {
		return time.Time{}, fmt.Errorf("%w: event %s at %s is outside the loaded window", ErrStaleSelection, ev.ID, ev.Timestamp.Format(time.RFC3339))
	}
	return ev.Timestamp, nil
}

// Resolve pairs t with its seek offset.
func (m *SelectionMapper) Resolve(t time.Time) Selection {
	return Selection{Timestamp: t, Offset: m.index.TimestampToOffset(t)}
}

// FromDragPosition linearly interpolates fraction between windowStart and
// windowEnd. fraction must already be clamped to [0,1] by the caller.
func FromDragPosition(windowStart, windowEnd time.Time, fraction float64) (time.Time, error) {
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return time.Time{}, fmt.Errorf("%w: fraction %v", ErrOutOfRange, fraction)
	}
	span := windowEnd.Sub(windowStart)
	return windowStart.Add(time.Duration(fraction * float64(span))), nil
}
