package playback

import (
	"context"
	"errors"
	"time"

	"nvr-timeline/internal/timeline"
)

var (
	// ErrPlaybackTarget is reported when the main player rejects a seek target
	// even after clamping.
	ErrPlaybackTarget = errors.New("playback target rejected")

	// ErrPreviewUnavailable is reported when no scrub preview covers the
	// requested moment.
	ErrPreviewUnavailable = errors.New("preview unavailable")
)

// Player is a handle to one video element. Implementations forward the
// element's "seeked" event to Coordinator.OnSeekSettled and its "timeupdate"
// event to Coordinator.OnPlayheadAdvance.
type Player interface {
	CurrentTime() float64
	SetCurrentTime(seconds float64) error
	Duration() float64
	Play() error
	Pause()
	SetVisible(visible bool)
}

// SourceLoader is implemented by players that can switch asset. The preview
// clip is loaded through it before scrubbing starts.
type SourceLoader interface {
	LoadSource(src string) error
}

// PreviewClip is a lightweight clip used as the scrub-preview asset.
type PreviewClip struct {
	Src   string    `json:"src"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PreviewLookup finds the preview clip covering t for camera. ok is false
// when no clip exists.
type PreviewLookup interface {
	Preview(ctx context.Context, camera string, t time.Time) (clip PreviewClip, ok bool, err error)
}

// Listener receives the state the host UI renders.
type Listener interface {
	// TimelineTimeChanged is called whenever the represented wall-clock time moves.
	TimelineTimeChanged(t time.Time)
	// ModeChanged is called on every mode transition.
	ModeChanged(m Mode)
	// WindowEnded is called once when normal playback runs past the loaded window.
	WindowEnded(w timeline.Window)
	// PlaybackError is called with a non-fatal error to surface as a banner.
	PlaybackError(err error)
}

// Observer receives counters about coordinator behaviour.
type Observer interface {
	SeekIssued(player string)
	SeekCoalesced()
	PreviewUnavailable()
	PlaybackError()
	WatchdogFired()
}

type nopListener struct{}

func (nopListener) TimelineTimeChanged(time.Time) {}
func (nopListener) ModeChanged(Mode) {}
func (nopListener) WindowEnded(timeline.Window) {}
func (nopListener) PlaybackError(error) {}

type nopObserver struct{}

func (nopObserver) SeekIssued(string) {}
func (nopObserver) SeekCoalesced() {}
func (nopObserver) PreviewUnavailable() {}
func (nopObserver) PlaybackError() {}
func (nopObserver) WatchdogFired() {}
