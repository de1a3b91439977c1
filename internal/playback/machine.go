package playback

import (
	"fmt"
	"math"
	"time"

	"nvr-timeline/internal/timeline"
)

// Inputs to step. Each corresponds to one host event.
type input interface{ isInput() }

type scrubStart struct {
	clip PreviewClip
	ok   bool
	err  error
}

type scrubMove struct{ t time.Time }

type seekSettled struct{}

type seekTimeout struct{ gen uint64 }

type previewSeekFailed struct {
	gen uint64
	err error
}

type scrubEnd struct{ t time.Time }

type playheadAdvance struct{ seconds float64 }

type eventSelected struct{ ev timeline.TimelineEvent }

func (scrubStart) isInput()        {}
func (scrubMove) isInput()         {}
func (seekSettled) isInput()       {}
func (seekTimeout) isInput()       {}
func (previewSeekFailed) isInput() {}
func (scrubEnd) isInput()          {}
func (playheadAdvance) isInput()   {}
func (eventSelected) isInput()     {}

// Effects returned by step, applied in order by the coordinator.
type effect interface{ isEffect() }

type seekPreview struct {
	offset time.Duration
	gen    uint64
}

type seekMain struct {
	offset time.Duration
	limit  time.Duration // fallback clamp bound when the player reports no duration
}

type pauseMain struct{}

type playMain struct{}

type showPreview struct{}

type showMain struct{}

type notifyTime struct{ t time.Time }

type notifyMode struct{ m Mode }

type notifyWindowEnded struct{ w timeline.Window }

type armWatchdog struct{ gen uint64 }

type coalesced struct{}

type watchdogFired struct{ gen uint64 }

type previewMissing struct{ err error }

type warn struct {
	msg string
	err error
}

func (seekPreview) isEffect()       {}
func (seekMain) isEffect()          {}
func (pauseMain) isEffect()         {}
func (playMain) isEffect()          {}
func (showPreview) isEffect()       {}
func (showMain) isEffect()          {}
func (notifyTime) isEffect()        {}
func (notifyMode) isEffect()        {}
func (notifyWindowEnded) isEffect() {}
func (armWatchdog) isEffect()       {}
func (coalesced) isEffect()         {}
func (watchdogFired) isEffect()     {}
func (previewMissing) isEffect()    {}
func (warn) isEffect()              {}

// step is the transition function. It never touches players; it returns the
// next session and the side effects to perform.
func step(s PlaybackSession, in input) (PlaybackSession, []effect) {
	switch in := in.(type) {
	case scrubStart:
		return onScrubStart(s, in)
	case scrubMove:
		return onScrubMove(s, in.t)
	case seekSettled:
		return onSettled(s, nil)
	case seekTimeout:
		if !s.inFlight || in.gen != s.seekGen {
			return s, nil
		}
		return onSettled(s, []effect{watchdogFired{gen: in.gen}})
	case previewSeekFailed:
		if !s.inFlight || in.gen != s.seekGen {
			return s, nil
		}
		return onSettled(s, []effect{warn{msg: "preview seek failed", err: in.err}})
	case scrubEnd:
		return onScrubEnd(s, in.t)
	case playheadAdvance:
		return onPlayhead(s, in.seconds)
	case eventSelected:
		return onEvent(s, in.ev)
	}
	return s, nil
}

func onScrubStart(s PlaybackSession, in scrubStart) (PlaybackSession, []effect) {
	if s.Mode != ModeNormal {
		return s, nil
	}
	if in.err != nil {
		return s, []effect{previewMissing{err: fmt.Errorf("%w: %v", ErrPreviewUnavailable, in.err)}}
	}
	if !in.ok {
		return s, []effect{previewMissing{err: fmt.Errorf("%w: camera %q at %s", ErrPreviewUnavailable, s.Window.Camera, s.TimelineTime.Format(time.RFC3339))}}
	}
	base, err := timeline.BuildIndex([]timeline.Segment{{Start: in.clip.Start, End: in.clip.End}})
	if err != nil {
		return s, []effect{previewMissing{err: fmt.Errorf("%w: %v", ErrPreviewUnavailable, err)}}
	}

	s.preview = base
	s.Mode = ModeScrubbing
	// The preview source was just (re)loaded, which cancels any seek left over
	// from the previous scrub. Bumping the generation drops its late signals.
	s.inFlight = false
	s.hasPending = false
	s.seekGen++
	return s, []effect{pauseMain{}, showPreview{}, notifyMode{m: ModeScrubbing}}
}

func onScrubMove(s PlaybackSession, t time.Time) (PlaybackSession, []effect) {
	if s.Mode == ModeNormal {
		return s, nil
	}

	s.TimelineTime = t
	effects := []effect{notifyTime{t: t}}

	if s.inFlight {
		if s.hasPending {
			effects = append(effects, coalesced{})
		}
		s.pending, s.hasPending = t, true
		if s.Mode != ModeSeeking {
			s.Mode = ModeSeeking
			effects = append(effects, notifyMode{m: ModeSeeking})
		}
		return s, effects
	}

	return issuePreviewSeek(s, t, effects)
}

func issuePreviewSeek(s PlaybackSession, t time.Time, effects []effect) (PlaybackSession, []effect) {
	if s.Mode != ModeSeeking {
		s.Mode = ModeSeeking
		effects = append(effects, notifyMode{m: ModeSeeking})
	}
	// The preview seek goes last: its failure re-enters step synchronously.
	s.seekGen++
	s.inFlight = true
	return s, append(effects,
		armWatchdog{gen: s.seekGen},
		seekPreview{offset: s.preview.TimestampToOffset(t), gen: s.seekGen},
	)
}

func onSettled(s PlaybackSession, effects []effect) (PlaybackSession, []effect) {
	if !s.inFlight {
		return s, effects
	}
	s.inFlight = false

	if s.Mode == ModeNormal {
		s.hasPending = false
		return s, effects
	}

	if s.hasPending {
		t := s.pending
		s.hasPending = false
		return issuePreviewSeek(s, t, effects)
	}

	if s.Mode != ModeScrubbing {
		s.Mode = ModeScrubbing
		effects = append(effects, notifyMode{m: ModeScrubbing})
	}
	return s, effects
}

func onScrubEnd(s PlaybackSession, t time.Time) (PlaybackSession, []effect) {
	wasScrubbing := s.Mode != ModeNormal

	s.hasPending = false
	s.TimelineTime = t
	s.windowEnded = false
	s.Mode = ModeNormal

	// Without a preview the drag degrades to a single full-resolution seek.
	effects := []effect{
		seekMain{offset: s.index.TimestampToOffset(t), limit: s.index.TotalDuration()},
		showMain{},
		playMain{},
		notifyTime{t: t},
	}
	if wasScrubbing {
		effects = append(effects, notifyMode{m: ModeNormal})
	}
	return s, effects
}

// onPlayhead maps the main player's position, which is an offset into the
// window's VOD playlist (recordings concatenated with gaps removed), back to
// wall-clock time.
func onPlayhead(s PlaybackSession, seconds float64) (PlaybackSession, []effect) {
	if s.Mode != ModeNormal || math.IsNaN(seconds) || s.Window.Before.IsZero() {
		return s, nil
	}

	offset := time.Duration(seconds * float64(time.Second))
	var t time.Time
	if s.index.Len() == 0 {
		t = s.Window.After.Add(offset)
	} else {
		t = s.index.OffsetToTimestamp(offset)
	}
	s.TimelineTime = t
	effects := []effect{notifyTime{t: t}}

	exhausted := !t.Before(s.Window.Before)
	if s.index.Len() > 0 && offset >= s.index.TotalDuration() {
		exhausted = true
	}
	if exhausted && !s.windowEnded {
		s.windowEnded = true
		effects = append(effects, pauseMain{}, notifyWindowEnded{w: s.Window})
	}
	return s, effects
}

func onEvent(s PlaybackSession, ev timeline.TimelineEvent) (PlaybackSession, []effect) {
	if s.Mode != ModeNormal {
		return s, nil
	}

	mapper := timeline.NewSelectionMapper(s.Window, s.index)
	ts, err := mapper.FromEvent(ev)
	if err != nil {
		return s, []effect{warn{msg: "ignoring stale event selection", err: err}}
	}
	sel := mapper.Resolve(ts)

	s.TimelineTime = sel.Timestamp
	s.windowEnded = false
	return s, []effect{
		pauseMain{},
		seekMain{offset: sel.Offset, limit: s.index.TotalDuration()},
		notifyTime{t: sel.Timestamp},
	}
}
