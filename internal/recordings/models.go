package recordings

import (
	"time"

	"nvr-timeline/internal/playback"
	"nvr-timeline/internal/timeline"
)

// Recording is one stored video file for a camera.
type Recording struct {
	Camera string
	Start  time.Time
	End    time.Time
	Path   string
}

// Duration returns the recording's length.
func (r Recording) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Segment returns the recording's interval on the timeline.
func (r Recording) Segment() timeline.Segment {
	return timeline.Segment{Start: r.Start, End: r.End}
}

// EventPosition is a timeline event together with its seek offset in the
// window it was queried for. Recorded is false when the event fell in a gap
// between recordings; its offset then points at the next recording.
type EventPosition struct {
	timeline.TimelineEvent
	Offset   time.Duration
	Recorded bool
}

// CameraState is the in-memory representation of everything stored for one
// camera. Recordings and previews are kept sorted by start time.
type CameraState struct {
	Camera     string
	Recordings []Recording
	Activity   []timeline.ActivitySample
	Events     []timeline.TimelineEvent
	Previews   []playback.PreviewClip
}
