package recordings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nvr-timeline/internal/playback"
	"nvr-timeline/internal/timeline"
)

// DefaultMaxWindow caps how much time a single query may span.
const DefaultMaxWindow = 24 * time.Hour

// Service applies the timeline rules on top of a Repository: validation,
// segment indexing, offset mapping, activity aggregation and playlists.
type Service struct {
	repo      Repository
	maxWindow time.Duration
	locations map[string]*time.Location
}

// NewService returns a Service that uses repo. Windows longer than maxWindow
// are rejected; if maxWindow <= 0, DefaultMaxWindow is used. locations is
// the camera catalogue: when non-empty, cameras missing from it are unknown,
// and their zone is the default activity timezone.
func NewService(repo Repository, maxWindow time.Duration, locations map[string]*time.Location) *Service {
	if maxWindow <= 0 {
		maxWindow = DefaultMaxWindow
	}
	return &Service{repo: repo, maxWindow: maxWindow, locations: locations}
}

func (s *Service) checkCamera(camera string) error {
	if camera == "" {
		return fmt.Errorf("%w: camera is required", timeline.ErrInvalidInput)
	}
	if len(s.locations) > 0 {
		if _, ok := s.locations[camera]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCamera, camera)
		}
	}
	return nil
}

func (s *Service) checkWindow(w timeline.Window) error {
	if err := s.checkCamera(w.Camera); err != nil {
		return err
	}
	if w.Before.Before(w.After) {
		return fmt.Errorf("%w: window ends before it starts", timeline.ErrInvalidInput)
	}
	if w.Before.Sub(w.After) > s.maxWindow {
		return fmt.Errorf("%w: window longer than %s", timeline.ErrInvalidInput, s.maxWindow)
	}
	return nil
}

// RegisterRecording stores a recording after validating its interval.
func (s *Service) RegisterRecording(ctx context.Context, rec Recording) error {
	if err := s.checkCamera(rec.Camera); err != nil {
		return err
	}
	if rec.Path == "" {
		return fmt.Errorf("%w: path is required", timeline.ErrInvalidInput)
	}
	if rec.End.Before(rec.Start) {
		return fmt.Errorf("%w: recording ends before it starts", timeline.ErrInvalidInput)
	}
	rec.Start, rec.End = rec.Start.UTC(), rec.End.UTC()
	return s.repo.AddRecording(ctx, rec)
}

// Recordings returns the recordings overlapping w.
func (s *Service) Recordings(ctx context.Context, w timeline.Window) ([]Recording, error) {
	if err := s.checkWindow(w); err != nil {
		return nil, err
	}
	return s.repo.FindRecordings(ctx, w.Camera, w.After, w.Before)
}

// Index builds the segment index for w along with the recordings behind it.
func (s *Service) Index(ctx context.Context, w timeline.Window) (*timeline.SegmentIndex, []Recording, error) {
	recs, err := s.Recordings(ctx, w)
	if err != nil {
		return nil, nil, err
	}
	segments := make([]timeline.Segment, 0, len(recs))
	for _, rec := range recs {
		segments = append(segments, rec.Segment())
	}
	index, err := timeline.BuildIndex(segments)
	if err != nil {
		return nil, nil, fmt.Errorf("camera %s: %w", w.Camera, err)
	}
	return index, recs, nil
}

// Mapper returns the selection mapper for w.
func (s *Service) Mapper(ctx context.Context, w timeline.Window) (*timeline.SelectionMapper, error) {
	index, _, err := s.Index(ctx, w)
	if err != nil {
		return nil, err
	}
	return timeline.NewSelectionMapper(w, index), nil
}

// Offset resolves t to its seek offset within w's recordings.
func (s *Service) Offset(ctx context.Context, w timeline.Window, t time.Time) (timeline.Selection, error) {
	m, err := s.Mapper(ctx, w)
	if err != nil {
		return timeline.Selection{}, err
	}
	return m.Resolve(t), nil
}

// DragOffset maps a scrubber fraction within w to a timestamp and offset.
func (s *Service) DragOffset(ctx context.Context, w timeline.Window, fraction float64) (timeline.Selection, error) {
	m, err := s.Mapper(ctx, w)
	if err != nil {
		return timeline.Selection{}, err
	}
	t, err := m.FromDragPosition(fraction)
	if err != nil {
		return timeline.Selection{}, err
	}
	return m.Resolve(t), nil
}

// Timestamp maps a seek offset within w's recordings back to wall-clock time.
func (s *Service) Timestamp(ctx context.Context, w timeline.Window, offset time.Duration) (timeline.Selection, error) {
	index, _, err := s.Index(ctx, w)
	if err != nil {
		return timeline.Selection{}, err
	}
	if index.Len() == 0 {
		return timeline.Selection{}, fmt.Errorf("%w: no recordings for %s", ErrNotFound, w.Camera)
	}
	t := index.OffsetToTimestamp(offset)
	return timeline.Selection{Timestamp: t, Offset: index.TimestampToOffset(t)}, nil
}

// Playlist returns the VOD playlist covering w's recordings.
func (s *Service) Playlist(ctx context.Context, w timeline.Window, token string) (string, error) {
	recs, err := s.Recordings(ctx, w)
	if err != nil {
		return "", err
	}
	return BuildVODPlaylist(recs, token)
}

// RecordActivity stores activity samples for camera.
func (s *Service) RecordActivity(ctx context.Context, camera string, samples []timeline.ActivitySample) error {
	if err := s.checkCamera(camera); err != nil {
		return err
	}
	utc := make([]timeline.ActivitySample, len(samples))
	for i, sample := range samples {
		sample.Date = sample.Date.UTC()
		utc[i] = sample
	}
	return s.repo.AddActivity(ctx, camera, utc)
}

// Activity returns w's activity graph bucketed by hour of day in tz. An
// empty tz falls back to the camera's catalogue zone, then UTC.
func (s *Service) Activity(ctx context.Context, w timeline.Window, tz string) (timeline.ActivityGraph, error) {
	if err := s.checkWindow(w); err != nil {
		return nil, err
	}
	loc := s.locations[w.Camera]
	if tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("%w: timezone %q", timeline.ErrInvalidInput, tz)
		}
	}

	samples, err := s.repo.FindActivity(ctx, w.Camera, w.After, w.Before)
	if err != nil {
		return nil, err
	}
	return timeline.Aggregate(samples, timeline.HourOfDayKey(loc)), nil
}

// AddEvent stores ev, assigning an ID when it has none.
func (s *Service) AddEvent(ctx context.Context, ev timeline.TimelineEvent) (timeline.TimelineEvent, error) {
	if err := s.checkCamera(ev.Camera); err != nil {
		return ev, err
	}
	if ev.Timestamp.IsZero() {
		return ev, fmt.Errorf("%w: event timestamp is required", timeline.ErrInvalidInput)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Timestamp = ev.Timestamp.UTC()
	if err := s.repo.AddEvent(ctx, ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// Timeline returns the events inside w with their seek offsets.
func (s *Service) Timeline(ctx context.Context, w timeline.Window) ([]EventPosition, error) {
	m, err := s.Mapper(ctx, w)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.FindEvents(ctx, w.Camera, w.After, w.Before)
	if err != nil {
		return nil, err
	}

	out := make([]EventPosition, 0, len(events))
	for _, ev := range events {
		t, err := m.FromEvent(ev)
		if err != nil {
			continue
		}
		_, recorded := m.Index().SegmentAt(t)
		out = append(out, EventPosition{TimelineEvent: ev, Offset: m.Resolve(t).Offset, Recorded: recorded})
	}
	return out, nil
}

// AddPreview stores a scrub-preview clip for camera.
func (s *Service) AddPreview(ctx context.Context, camera string, clip playback.PreviewClip) error {
	if err := s.checkCamera(camera); err != nil {
		return err
	}
	if clip.Src == "" {
		return fmt.Errorf("%w: preview src is required", timeline.ErrInvalidInput)
	}
	if !clip.End.After(clip.Start) {
		return fmt.Errorf("%w: preview clip must end after it starts", timeline.ErrInvalidInput)
	}
	clip.Start, clip.End = clip.Start.UTC(), clip.End.UTC()
	return s.repo.AddPreview(ctx, camera, clip)
}

// Preview implements playback.PreviewLookup.
func (s *Service) Preview(ctx context.Context, camera string, t time.Time) (playback.PreviewClip, bool, error) {
	if err := s.checkCamera(camera); err != nil {
		return playback.PreviewClip{}, false, err
	}
	return s.repo.FindPreview(ctx, camera, t)
}

// ActiveCameras returns the number of cameras with recordings.
func (s *Service) ActiveCameras(ctx context.Context) (int, error) {
	return s.repo.CameraCount(ctx)
}
