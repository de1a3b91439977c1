package playback

import (
	"time"

	"nvr-timeline/internal/timeline"
)

// Mode is the coordinator's current state.
type Mode int

const (
	// ModeNormal: main player visible, playing or paused normally.
	ModeNormal Mode = iota
	// ModeScrubbing: preview visible, main paused and hidden, no seek in flight.
	ModeScrubbing
	// ModeSeeking: scrubbing with a preview seek in flight.
	ModeSeeking
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeScrubbing:
		return "scrubbing"
	case ModeSeeking:
		return "seeking"
	default:
		return "unknown"
	}
}

// PlaybackSession is the coordinator-owned state of one mounted timeline
// view. It is replaced wholesale when the loaded window changes.
type PlaybackSession struct {
	ID           string
	Mode         Mode
	Window       timeline.Window
	TimelineTime time.Time

	index   *timeline.SegmentIndex
	preview *timeline.SegmentIndex // time base of the current preview clip

	// A preview seek is outstanding until its "seeked" signal (or the
	// watchdog) arrives; it can outlive the scrub that issued it.
	inFlight bool
	seekGen  uint64

	pending    time.Time
	hasPending bool

	windowEnded bool
}

// Index returns the segment index the session seeks against.
func (s PlaybackSession) Index() *timeline.SegmentIndex {
	return s.index
}

func newSession(id string, window timeline.Window, index *timeline.SegmentIndex) PlaybackSession {
	if index == nil {
		index, _ = timeline.BuildIndex(nil)
	}
	return PlaybackSession{
		ID:           id,
		Mode:         ModeNormal,
		Window:       window,
		TimelineTime: window.After,
		index:        index,
	}
}
