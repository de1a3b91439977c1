package recordings

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"nvr-timeline/internal/playback"
	"nvr-timeline/internal/timeline"
)

// Repository defines the concurrency-safe contract for storing and querying
// per-camera timeline data. Range queries treat (after, before) as the
// loaded window; results are ordered by time ascending.
type Repository interface {
	// AddRecording stores rec. It returns ErrOverlap if rec overlaps a
	// recording already stored for the same camera. Touching endpoints are
	// not an overlap.
	AddRecording(ctx context.Context, rec Recording) error

	// FindRecordings returns the recordings that overlap (after, before),
	// unclipped, ordered by start.
	FindRecordings(ctx context.Context, camera string, after, before time.Time) ([]Recording, error)

	AddActivity(ctx context.Context, camera string, samples []timeline.ActivitySample) error

	// FindActivity returns samples dated within [after, before] in insertion
	// order for equal dates.
	FindActivity(ctx context.Context, camera string, after, before time.Time) ([]timeline.ActivitySample, error)

	// AddEvent stores ev. Re-adding an existing ID replaces it.
	AddEvent(ctx context.Context, ev timeline.TimelineEvent) error

	FindEvents(ctx context.Context, camera string, after, before time.Time) ([]timeline.TimelineEvent, error)

	AddPreview(ctx context.Context, camera string, clip playback.PreviewClip) error

	// FindPreview returns the latest-starting preview clip covering t.
	FindPreview(ctx context.Context, camera string, t time.Time) (playback.PreviewClip, bool, error)

	// CameraCount returns the number of cameras with at least one recording.
	// Used for metrics.
	CameraCount(ctx context.Context) (int, error)
}

var (
	// ErrOverlap is returned when a recording overlaps one already stored for
	// the same camera.
	ErrOverlap = errors.New("recording overlaps an existing recording")

	// ErrNotFound is returned when a query has nothing to serve.
	ErrNotFound = errors.New("not found")

	// ErrUnknownCamera is returned for cameras missing from a non-empty
	// camera catalogue.
	ErrUnknownCamera = errors.New("unknown camera")
)

// InMemoryRepository is a concurrency-safe in-memory implementation of Repository.
// It uses a Store for persistence; by default that is an InMemoryStore.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// AddRecording implements Repository.AddRecording.
func (r *InMemoryRepository) AddRecording(_ context.Context, rec Recording) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cam := r.getOrCreateCameraLocked(rec.Camera)
	for _, existing := range cam.Recordings {
		if !existing.Start.Before(rec.End) {
			break
		}
		if overlaps(existing, rec) {
			return ErrOverlap
		}
	}

	// Order by (start, end) so a zero-length recording precedes one starting
	// at the same instant.
	j := sort.Search(len(cam.Recordings), func(j int) bool {
		x := cam.Recordings[j]
		return x.Start.After(rec.Start) || x.Start.Equal(rec.Start) && x.End.After(rec.End)
	})
	cam.Recordings = append(cam.Recordings, Recording{})
	copy(cam.Recordings[j+1:], cam.Recordings[j:])
	cam.Recordings[j] = rec
	return nil
}

// FindRecordings implements Repository.FindRecordings.
func (r *InMemoryRepository) FindRecordings(_ context.Context, camera string, after, before time.Time) ([]Recording, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cam, ok := r.store.GetCamera(camera)
	if !ok {
		return nil, nil
	}

	var out []Recording
	for _, rec := range cam.Recordings {
		if !rec.Start.Before(before) {
			break
		}
		if rec.End.After(after) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AddActivity implements Repository.AddActivity.
func (r *InMemoryRepository) AddActivity(_ context.Context, camera string, samples []timeline.ActivitySample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cam := r.getOrCreateCameraLocked(camera)
	cam.Activity = append(cam.Activity, samples...)
	sort.SliceStable(cam.Activity, func(i, j int) bool {
		return cam.Activity[i].Date.Before(cam.Activity[j].Date)
	})
	return nil
}

// FindActivity implements Repository.FindActivity.
func (r *InMemoryRepository) FindActivity(_ context.Context, camera string, after, before time.Time) ([]timeline.ActivitySample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cam, ok := r.store.GetCamera(camera)
	if !ok {
		return nil, nil
	}

	w := timeline.Window{After: after, Before: before}
	var out []timeline.ActivitySample
	for _, s := range cam.Activity {
		if w.Contains(s.Date) {
			out = append(out, s)
		}
	}
	return out, nil
}

// AddEvent implements Repository.AddEvent.
func (r *InMemoryRepository) AddEvent(_ context.Context, ev timeline.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// IDs are unique across cameras, so a re-added event may move camera.
	r.removeEventLocked(ev.ID)
	cam := r.getOrCreateCameraLocked(ev.Camera)
	cam.Events = append(cam.Events, ev)
	sort.SliceStable(cam.Events, func(i, j int) bool {
		return cam.Events[i].Timestamp.Before(cam.Events[j].Timestamp)
	})
	return nil
}

// FindEvents implements Repository.FindEvents.
func (r *InMemoryRepository) FindEvents(_ context.Context, camera string, after, before time.Time) ([]timeline.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cam, ok := r.store.GetCamera(camera)
	if !ok {
		return nil, nil
	}

	w := timeline.Window{Camera: camera, After: after, Before: before}
	var out []timeline.TimelineEvent
	for _, ev := range cam.Events {
		if w.Contains(ev.Timestamp) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// AddPreview implements Repository.AddPreview.
func (r *InMemoryRepository) AddPreview(_ context.Context, camera string, clip playback.PreviewClip) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cam := r.getOrCreateCameraLocked(camera)
	cam.Previews = append(cam.Previews, clip)
	sort.SliceStable(cam.Previews, func(i, j int) bool {
		return cam.Previews[i].Start.Before(cam.Previews[j].Start)
	})
	return nil
}

// FindPreview implements Repository.FindPreview.
func (r *InMemoryRepository) FindPreview(_ context.Context, camera string, t time.Time) (playback.PreviewClip, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cam, ok := r.store.GetCamera(camera)
	if !ok {
		return playback.PreviewClip{}, false, nil
	}
	for i := len(cam.Previews) - 1; i >= 0; i-- {
		clip := cam.Previews[i]
		if !t.Before(clip.Start) && !t.After(clip.End) {
			return clip, true, nil
		}
	}
	return playback.PreviewClip{}, false, nil
}

// CameraCount implements Repository.CameraCount.
func (r *InMemoryRepository) CameraCount(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, name := range r.store.ListCameras() {
		if cam, ok := r.store.GetCamera(name); ok && len(cam.Recordings) > 0 {
			n++
		}
	}
	return n, nil
}

// getOrCreateCameraLocked returns an existing camera or creates a new one.
// Caller must hold r.mu in write mode.
func (r *InMemoryRepository) getOrCreateCameraLocked(camera string) *CameraState {
	if cam, ok := r.store.GetCamera(camera); ok {
		return cam
	}
	cam := &CameraState{Camera: camera}
	r.store.SetCamera(cam)
	return cam
}

// overlaps reports whether a and b share more than an endpoint.
func (r *InMemoryRepository) removeEventLocked(id string) {
	for _, name := range r.store.ListCameras() {
		cam, ok := r.store.GetCamera(name)
		if !ok {
			continue
		}
		for i := range cam.Events {
			if cam.Events[i].ID == id {
				cam.Events = append(cam.Events[:i], cam.Events[i+1:]...)
				return
			}
		}
	}
}

func overlaps(a, b Recording) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}
