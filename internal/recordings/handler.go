package recordings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"nvr-timeline/internal/platform/metrics"
	"nvr-timeline/internal/playback"
	"nvr-timeline/internal/timeline"
)

// Handler exposes the timeline HTTP endpoints using go-chi. Timestamps on
// the wire are unix seconds and offsets are seconds, both as floats.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Mount registers the camera routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/cameras/{camera}", func(r chi.Router) {
		r.Route("/recordings", func(r chi.Router) {
			r.Post("/", h.RegisterRecording)
			r.Get("/", h.ListRecordings)
			r.Get("/offset", h.GetOffset)
			r.Get("/timestamp", h.GetTimestamp)
			r.Get("/playlist.m3u8", h.GetPlaylist)
		})
		r.Post("/activity", h.RecordActivity)
		r.Get("/activity", h.GetActivity)
		r.Post("/events", h.AddEvent)
		r.Get("/timeline", h.GetTimeline)
		r.Post("/previews", h.AddPreview)
		r.Get("/preview", h.GetPreview)
	})
}

type recordingJSON struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
	Path      string  `json:"path"`
}

type recordingsResponse struct {
	Recordings    []recordingJSON `json:"recordings"`
	TotalDuration float64         `json:"total_duration"`
}

type selectionJSON struct {
	Timestamp float64 `json:"timestamp"`
	Offset    float64 `json:"offset"`
}

type activityJSON struct {
	Date       float64 `json:"date"`
	Count      float64 `json:"count"`
	HasObjects bool    `json:"has_objects"`
}

type eventJSON struct {
	ID        string   `json:"id,omitempty"`
	Label     string   `json:"label"`
	Timestamp float64  `json:"timestamp"`
	Offset    *float64 `json:"offset,omitempty"`
	Recorded  *bool    `json:"recorded,omitempty"`
}

type previewJSON struct {
	Src       string  `json:"src"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// RegisterRecording handles POST /cameras/{camera}/recordings.
// Body: { "start_time": 1700000000, "end_time": 1700000010, "path": "/front/1.mp4" }.
func (h *Handler) RegisterRecording(w http.ResponseWriter, r *http.Request) {
	camera := chi.URLParam(r, "camera")

	var body recordingJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Debug("invalid recording body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	rec := Recording{
		Camera: camera,
		Start:  fromUnix(body.StartTime),
		End:    fromUnix(body.EndTime),
		Path:   body.Path,
	}
	if err := h.svc.RegisterRecording(r.Context(), rec); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.log.Debug("recording registered",
		slog.String("camera", camera),
		slog.Time("start", rec.Start),
		slog.Duration("duration", rec.Duration()))
	w.WriteHeader(http.StatusCreated)
	if h.metrics != nil {
		h.metrics.IncRecordingsRegistered()
	}
}

// ListRecordings handles GET /cameras/{camera}/recordings?after&before.
func (h *Handler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	win, err := windowParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	index, recs, err := h.svc.Index(r.Context(), win)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := recordingsResponse{
		Recordings:    make([]recordingJSON, 0, len(recs)),
		TotalDuration: index.TotalDuration().Seconds(),
	}
	for _, rec := range recs {
		resp.Recordings = append(resp.Recordings, recordingJSON{
			StartTime: toUnix(rec.Start),
			EndTime:   toUnix(rec.End),
			Duration:  rec.Duration().Seconds(),
			Path:      rec.Path,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetOffset handles GET /cameras/{camera}/recordings/offset?after&before&t.
// A position parameter in [0,1] may be given instead of t to map a scrubber
// drag position.
func (h *Handler) GetOffset(w http.ResponseWriter, r *http.Request) {
	win, err := windowParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var sel timeline.Selection
	if r.URL.Query().Has("position") {
		var fraction float64
		if fraction, err = strconv.ParseFloat(r.URL.Query().Get("position"), 64); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		sel, err = h.svc.DragOffset(r.Context(), win, fraction)
	} else {
		var t time.Time
		if t, err = timeParam(r, "t"); err != nil {
			h.writeError(w, r, err)
			return
		}
		sel, err = h.svc.Offset(r.Context(), win, t)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, selectionJSON{Timestamp: toUnix(sel.Timestamp), Offset: sel.Offset.Seconds()})
}

// GetTimestamp handles GET /cameras/{camera}/recordings/timestamp?after&before&offset.
func (h *Handler) GetTimestamp(w http.ResponseWriter, r *http.Request) {
	win, err := windowParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	seconds, err := floatParam(r, "offset")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sel, err := h.svc.Timestamp(r.Context(), win, time.Duration(seconds*float64(time.Second)))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, selectionJSON{Timestamp: toUnix(sel.Timestamp), Offset: sel.Offset.Seconds()})
}

// GetPlaylist handles GET /cameras/{camera}/recordings/playlist.m3u8?after&before[&token].
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	win, err := windowParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	playlist, err := h.svc.Playlist(r.Context(), win, r.URL.Query().Get("token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", playlistContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(playlist))
}

// RecordActivity handles POST /cameras/{camera}/activity.
// Body: [{ "date": 1700000000, "count": 3, "has_objects": true }].
func (h *Handler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	camera := chi.URLParam(r, "camera")

	var body []activityJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Debug("invalid activity body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	samples := make([]timeline.ActivitySample, 0, len(body))
	for _, s := range body {
		samples = append(samples, timeline.ActivitySample{Date: fromUnix(s.Date), Count: s.Count, HasObjects: s.HasObjects})
	}
	if err := h.svc.RecordActivity(r.Context(), camera, samples); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// GetActivity handles GET /cameras/{camera}/activity?after&before[&timezone].
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	win, err := windowParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	graph, err := h.svc.Activity(r.Context(), win, r.URL.Query().Get("timezone"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, graph)
}

// AddEvent handles POST /cameras/{camera}/events.
// Body: { "label": "person", "timestamp": 1700000005 }; "id" is optional.
func (h *Handler) AddEvent(w http.ResponseWriter, r *http.Request) {
	camera := chi.URLParam(r, "camera")

	var body eventJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Debug("invalid event body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if body.Timestamp == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ev, err := h.svc.AddEvent(r.Context(), timeline.TimelineEvent{
		ID:        body.ID,
		Camera:    camera,
		Label:     body.Label,
		Timestamp: fromUnix(body.Timestamp),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, eventJSON{ID: ev.ID, Label: ev.Label, Timestamp: toUnix(ev.Timestamp)})
}

// GetTimeline handles GET /cameras/{camera}/timeline?after&before.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	win, err := windowParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	events, err := h.svc.Timeline(r.Context(), win)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]eventJSON, 0, len(events))
	for _, ev := range events {
		offset, recorded := ev.Offset.Seconds(), ev.Recorded
		out = append(out, eventJSON{ID: ev.ID, Label: ev.Label, Timestamp: toUnix(ev.Timestamp), Offset: &offset, Recorded: &recorded})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// AddPreview handles POST /cameras/{camera}/previews.
// Body: { "src": "/previews/front-1700000000.mp4", "start_time": ..., "end_time": ... }.
func (h *Handler) AddPreview(w http.ResponseWriter, r *http.Request) {
	camera := chi.URLParam(r, "camera")

	var body previewJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Debug("invalid preview body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	clip := playback.PreviewClip{Src: body.Src, Start: fromUnix(body.StartTime), End: fromUnix(body.EndTime)}
	if err := h.svc.AddPreview(r.Context(), camera, clip); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// GetPreview handles GET /cameras/{camera}/preview?t.
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	camera := chi.URLParam(r, "camera")
	t, err := timeParam(r, "t")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	clip, ok, err := h.svc.Preview(r.Context(), camera, t)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, previewJSON{Src: clip.Src, StartTime: toUnix(clip.Start), EndTime: toUnix(clip.End)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", slog.String("error", err.Error()))
	}
}

// writeError maps service errors to bare status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	camera := chi.URLParam(r, "camera")
	switch {
	case errors.Is(err, timeline.ErrInvalidInput), errors.Is(err, timeline.ErrOutOfRange):
		h.log.Debug("rejected request", slog.String("camera", camera), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, ErrUnknownCamera), errors.Is(err, ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrOverlap), errors.Is(err, timeline.ErrStaleSelection):
		h.log.Info("request conflicts with stored data", slog.String("camera", camera), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusConflict)
	default:
		h.log.Error("request failed",
			slog.String("camera", camera),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func windowParams(r *http.Request) (timeline.Window, error) {
	after, err := timeParam(r, "after")
	if err != nil {
		return timeline.Window{}, err
	}
	before, err := timeParam(r, "before")
	if err != nil {
		return timeline.Window{}, err
	}
	return timeline.Window{Camera: chi.URLParam(r, "camera"), After: after, Before: before}, nil
}

func timeParam(r *http.Request, name string) (time.Time, error) {
	f, err := floatParam(r, name)
	if err != nil {
		return time.Time{}, err
	}
	return fromUnix(f), nil
}

func floatParam(r *http.Request, name string) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, fmt.Errorf("%w: %s is required", timeline.ErrInvalidInput, name)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s=%q", timeline.ErrInvalidInput, name, s)
	}
	return f, nil
}

func toUnix(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func fromUnix(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}
