package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"nvr-timeline/internal/timeline"
)

// DefaultSeekTimeout bounds how long a preview seek may stay unanswered.
const DefaultSeekTimeout = 5 * time.Second

// Coordinator drives the main and preview players for one mounted timeline
// view. It is the only component allowed to set a player's current time.
type Coordinator struct {
	main     Player
	preview  Player
	previews PreviewLookup

	listener    Listener
	observer    Observer
	log         *slog.Logger
	seekTimeout time.Duration
	afterFunc   func(d time.Duration, f func()) (stop func() bool)

	mu           sync.Mutex
	session      PlaybackSession
	stopWatchdog func() bool
	closed       bool
}

type Option func(*Coordinator)

// WithListener sets the receiver of timeline time, mode and error updates.
func WithListener(l Listener) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.listener = l
		}
	}
}

// WithObserver sets the receiver of seek counters.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// WithSeekTimeout sets the watchdog for unanswered preview seeks. Zero or a
// negative value disables it.
func WithSeekTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.seekTimeout = d
	}
}

func withAfterFunc(f func(time.Duration, func()) func() bool) Option {
	return func(c *Coordinator) {
		c.afterFunc = f
	}
}

// NewCoordinator creates a coordinator owning main and preview. previews may
// be nil, in which case scrubbing always falls back to full-resolution seeks.
func NewCoordinator(main, preview Player, previews PreviewLookup, opts ...Option) *Coordinator {
	c := &Coordinator{
		main:        main,
		preview:     preview,
		previews:    previews,
		listener:    nopListener{},
		observer:    nopObserver{},
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		seekTimeout: DefaultSeekTimeout,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.session = newSession(uuid.NewString(), timeline.Window{}, nil)
	return c
}

// Load replaces the session with a fresh one for window. Any scrub in
// progress is abandoned and the main player becomes visible.
func (c *Coordinator) Load(window timeline.Window, index *timeline.SegmentIndex) string {
	c.mu.Lock()
	c.cancelWatchdogLocked()
	prev := c.session.Mode
	c.session = newSession(uuid.NewString(), window, index)
	s := c.session
	c.mu.Unlock()

	c.log.Info("timeline window loaded",
		slog.String("session", s.ID),
		slog.String("camera", window.Camera),
		slog.Time("after", window.After),
		slog.Time("before", window.Before),
		slog.Int("segments", s.index.Len()),
	)

	effects := []effect{showMain{}, notifyTime{t: s.TimelineTime}}
	if prev != ModeNormal {
		effects = append(effects, notifyMode{m: ModeNormal})
	}
	c.apply(s.ID, effects)
	return s.ID
}

// OnScrubStart switches to the preview player if a preview clip covers the
// current timeline time. Otherwise it stays in ModeNormal and reports
// ErrPreviewUnavailable to the observer and the log.
func (c *Coordinator) OnScrubStart(ctx context.Context) {
	c.mu.Lock()
	s := c.session
	closed := c.closed
	c.mu.Unlock()
	if closed || s.Mode != ModeNormal {
		return
	}

	in := scrubStart{}
	if c.previews != nil {
		in.clip, in.ok, in.err = c.previews.Preview(ctx, s.Window.Camera, s.TimelineTime)
	}
	if in.ok && in.err == nil {
		if loader, ok := c.preview.(SourceLoader); ok {
			if err := loader.LoadSource(in.clip.Src); err != nil {
				in.err = fmt.Errorf("load %s: %w", in.clip.Src, err)
			}
		}
	}
	c.dispatch(s.ID, in)
}

// OnScrubMove moves the timeline time to t immediately and seeks the preview
// player, coalescing with any seek still in flight.
func (c *Coordinator) OnScrubMove(t time.Time) {
	c.dispatch(c.sessionID(), scrubMove{t: t})
}

// OnSeekSettled is forwarded from the preview player's "seeked" signal.
func (c *Coordinator) OnSeekSettled() {
	c.dispatch(c.sessionID(), seekSettled{})
}

// OnScrubEnd seeks the main player to t, hands visibility back to it and
// resumes playback.
func (c *Coordinator) OnScrubEnd(t time.Time) {
	c.dispatch(c.sessionID(), scrubEnd{t: t})
}

// OnPlayheadAdvance is forwarded from the main player's "timeupdate" signal.
func (c *Coordinator) OnPlayheadAdvance(seconds float64) {
	c.dispatch(c.sessionID(), playheadAdvance{seconds: seconds})
}

// OnEventSelected jumps the paused main player to the event's position.
// Events outside the loaded window are ignored.
func (c *Coordinator) OnEventSelected(ev timeline.TimelineEvent) {
	c.dispatch(c.sessionID(), eventSelected{ev: ev})
}

func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Mode
}

func (c *Coordinator) TimelineTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.TimelineTime
}

// Session returns a snapshot of the current session.
func (c *Coordinator) Session() PlaybackSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Close stops the watchdog. Events received afterwards are dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelWatchdogLocked()
	c.closed = true
}

func (c *Coordinator) sessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

// dispatch runs one transition under the lock and applies its effects after
// releasing it, so player callbacks may re-enter the coordinator.
func (c *Coordinator) dispatch(sessionID string, in input) {
	c.mu.Lock()
	if c.closed || c.session.ID != sessionID {
		c.mu.Unlock()
		return
	}
	next, effects := step(c.session, in)
	c.session = next
	c.mu.Unlock()

	c.apply(sessionID, effects)
}

func (c *Coordinator) apply(sessionID string, effects []effect) {
	for _, e := range effects {
		switch e := e.(type) {
		case seekPreview:
			c.observer.SeekIssued("preview")
			if err := c.preview.SetCurrentTime(e.offset.Seconds()); err != nil {
				c.dispatch(sessionID, previewSeekFailed{gen: e.gen, err: err})
			}
		case seekMain:
			c.seekMain(e.offset, e.limit)
		case pauseMain:
			c.main.Pause()
		case playMain:
			if err := c.main.Play(); err != nil {
				c.log.Warn("main player refused to play", slog.String("session", sessionID), slog.Any("error", err))
			}
		case showPreview:
			c.preview.SetVisible(true)
			c.main.SetVisible(false)
		case showMain:
			c.main.SetVisible(true)
			c.preview.SetVisible(false)
		case notifyTime:
			c.listener.TimelineTimeChanged(e.t)
		case notifyMode:
			c.log.Debug("playback mode changed", slog.String("session", sessionID), slog.String("mode", e.m.String()))
			c.listener.ModeChanged(e.m)
		case notifyWindowEnded:
			c.log.Info("playback reached end of window",
				slog.String("session", sessionID),
				slog.String("camera", e.w.Camera),
				slog.Time("before", e.w.Before),
			)
			c.listener.WindowEnded(e.w)
		case armWatchdog:
			c.armWatchdog(sessionID, e.gen)
		case coalesced:
			c.observer.SeekCoalesced()
		case watchdogFired:
			c.observer.WatchdogFired()
			c.log.Warn("preview seek timed out", slog.String("session", sessionID), slog.Uint64("generation", e.gen))
		case previewMissing:
			c.observer.PreviewUnavailable()
			c.log.Warn("scrub preview unavailable, using full-resolution seeks", slog.String("session", sessionID), slog.Any("error", e.err))
		case warn:
			if e.err != nil {
				c.log.Warn(e.msg, slog.String("session", sessionID), slog.Any("error", e.err))
			} else {
				c.log.Warn(e.msg, slog.String("session", sessionID))
			}
		}
	}
}

// seekMain sets the main player's position, clamping to [0, duration] and
// retrying once if the player rejects the target.
func (c *Coordinator) seekMain(offset, limit time.Duration) {
	c.observer.SeekIssued("main")
	target := offset.Seconds()
	err := c.main.SetCurrentTime(target)
	if err == nil {
		return
	}

	upper := c.main.Duration()
	if math.IsNaN(upper) || math.IsInf(upper, 0) || upper <= 0 {
		upper = limit.Seconds()
	}
	clamped := math.Min(math.Max(target, 0), upper)
	c.log.Warn("main seek rejected, retrying clamped",
		slog.Float64("target", target),
		slog.Float64("clamped", clamped),
		slog.Any("error", err),
	)

	if err := c.main.SetCurrentTime(clamped); err != nil {
		perr := fmt.Errorf("%w: %.3fs: %v", ErrPlaybackTarget, clamped, err)
		c.observer.PlaybackError()
		c.log.Error("main seek failed", slog.Any("error", perr))
		c.listener.PlaybackError(perr)
	}
}

func (c *Coordinator) armWatchdog(sessionID string, gen uint64) {
	if c.seekTimeout <= 0 {
		return
	}
	stop := c.afterFunc(c.seekTimeout, func() {
		c.dispatch(sessionID, seekTimeout{gen: gen})
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.session.ID != sessionID || c.session.seekGen != gen {
		stop()
		return
	}
	c.cancelWatchdogLocked()
	c.stopWatchdog = stop
}

func (c *Coordinator) cancelWatchdogLocked() {
	if c.stopWatchdog != nil {
		c.stopWatchdog()
		c.stopWatchdog = nil
	}
}
