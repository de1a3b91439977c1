package timeline

import (
	"fmt"
	"sort"
	"time"
)

// SegmentIndex maps wall-clock timestamps to seek offsets inside the virtual
// concatenation of a camera's recorded segments. Gaps between segments are
// excluded from the concatenated stream.
//
// A SegmentIndex is immutable once built and safe for concurrent readers.
type SegmentIndex struct {
	segments []Segment
	prefix   []time.Duration // prefix[i] is the offset at which segments[i] starts
	total    time.Duration
}

// BuildIndex precomputes the cumulative offsets for segments, which must be
// sorted ascending by Start and must not overlap. Adjacent and zero-length
// segments are accepted.
func BuildIndex(segments []Segment) (*SegmentIndex, error) {
	idx := &SegmentIndex{
		segments: make([]Segment, len(segments)),
		prefix:   make([]time.Duration, len(segments)),
	}
	copy(idx.segments, segments)

	var running time.Duration
	for i, seg := range idx.segments {
		if seg.End.Before(seg.Start) {
			return nil, fmt.Errorf("%w: segment %d ends before it starts", ErrInvalidInput, i)
		}
		if i > 0 && seg.Start.Before(idx.segments[i-1].End) {
			return nil, fmt.Errorf("%w: segment %d overlaps or precedes segment %d", ErrInvalidInput, i, i-1)
		}
		idx.prefix[i] = running
		running += seg.Duration()
	}
	idx.total = running

	return idx, nil
}

// Len returns the number of segments in the index.
func (x *SegmentIndex) Len() int {
	return len(x.segments)
}

// Segments returns a copy of the indexed segments.
func (x *SegmentIndex) Segments() []Segment {
	out := make([]Segment, len(x.segments))
	copy(out, x.segments)
	return out
}

// TotalDuration returns the summed duration of all segments, gaps excluded.
func (x *SegmentIndex) TotalDuration() time.Duration {
	return x.total
}

// TimestampToOffset returns the seek offset of t in the concatenated stream.
// A timestamp inside a gap snaps forward to the start of the next segment,
// one before the first segment maps to 0 and one after the last maps to the
// end of the stream.
func (x *SegmentIndex) TimestampToOffset(t time.Time) time.Duration {
	n := len(x.segments)
	if n == 0 {
		return 0
	}

	// First segment that has not ended before t.
	i := sort.Search(n, func(i int) bool {
		return !x.segments[i].End.Before(t)
	})
	if i == n {
		return x.total
	}

	seg := x.segments[i]
	if t.Before(seg.Start) {
		return x.prefix[i]
	}
	return x.prefix[i] + t.Sub(seg.Start)
}

// OffsetToTimestamp is the inverse of TimestampToOffset. Offsets outside
// [0, TotalDuration] are clamped. An offset on a segment boundary resolves to
// the start of the next recorded segment. An empty index returns the zero time.
func (x *SegmentIndex) OffsetToTimestamp(offset time.Duration) time.Time {
	n := len(x.segments)
	if n == 0 {
		return time.Time{}
	}

	offset = max(offset, 0)
	offset = min(offset, x.total)

	i := sort.Search(n, func(i int) bool {
		return x.prefix[i]+x.segments[i].Duration() > offset
	})
	if i == n {
		return x.segments[n-1].End
	}
	return x.segments[i].Start.Add(offset - x.prefix[i])
}

// SegmentAt returns the position of the segment containing t.
func (x *SegmentIndex) SegmentAt(t time.Time) (int, bool) {
	n := len(x.segments)
	i := sort.Search(n, func(i int) bool {
		return !x.segments[i].End.Before(t)
	})
	if i == n || t.Before(x.segments[i].Start) {
		return 0, false
	}
	return i, true
}
