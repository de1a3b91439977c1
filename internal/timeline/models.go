package timeline

import "time"

// Segment is a contiguous interval of recorded video for one camera.
type Segment struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the segment.
func (s Segment) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Contains reports whether t lies within [Start, End].
func (s Segment) Contains(t time.Time) bool {
	return !t.Before(s.Start) && !t.After(s.End)
}

// Window is the (camera, time range) pair a timeline view has loaded.
type Window struct {
	Camera string    `json:"camera"`
	After  time.Time `json:"after"`
	Before time.Time `json:"before"`
}

// Contains reports whether t lies within [After, Before].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.After) && !t.After(w.Before)
}

// TimelineEvent is a discrete moment of interest, such as an object detection.
type TimelineEvent struct {
	ID        string    `json:"id"`
	Camera    string    `json:"camera"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
}

// ActivitySample is the activity measured over one recording sub-interval.
type ActivitySample struct {
	Date       time.Time `json:"date"`
	Count      float64   `json:"count"`
	HasObjects bool      `json:"has_objects"`
}
