package recordings

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"nvr-timeline/internal/platform/metrics"
)

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	svc := NewService(NewInMemoryRepository(), 0, nil)
	log := slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	h := NewHandler(svc, log, metrics.New())
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

func do(t *testing.T, r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func seedRecordings(t *testing.T, r http.Handler) {
	t.Helper()
	for _, body := range []map[string]any{
		{"start_time": 1000, "end_time": 1010, "path": "/front/1.mp4"},
		{"start_time": 1020, "end_time": 1040, "path": "/front/2.mp4"},
	} {
		if rec := do(t, r, http.MethodPost, "/cameras/front/recordings", body); rec.Code != http.StatusCreated {
			t.Fatalf("setup: expected 201, got %d", rec.Code)
		}
	}
}

func TestHandler_RegisterRecording(t *testing.T) {
	r := newTestRouter(t)
	seedRecordings(t, r)

	cases := []struct {
		name string
		body any
		want int
	}{
		{"bad json", "not json", http.StatusBadRequest},
		{"no path", map[string]any{"start_time": 2000, "end_time": 2010}, http.StatusBadRequest},
		{"inverted", map[string]any{"start_time": 2010, "end_time": 2000, "path": "/x.mp4"}, http.StatusBadRequest},
		{"overlap", map[string]any{"start_time": 1005, "end_time": 1025, "path": "/x.mp4"}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := do(t, r, http.MethodPost, "/cameras/front/recordings", tc.body); rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestHandler_ListRecordings(t *testing.T) {
	r := newTestRouter(t)
	seedRecordings(t, r)

	rec := do(t, r, http.MethodGet, "/cameras/front/recordings?after=1005&before=1040", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp recordingsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Recordings) != 2 || resp.TotalDuration != 30 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Recordings[0].StartTime != 1000 || resp.Recordings[0].Duration != 10 {
		t.Errorf("first recording = %+v", resp.Recordings[0])
	}

	if rec := do(t, r, http.MethodGet, "/cameras/front/recordings?after=1005", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing before: expected 400, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/cameras/front/recordings?after=x&before=1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad after: expected 400, got %d", rec.Code)
	}
}

func TestHandler_GetOffset(t *testing.T) {
	r := newTestRouter(t)
	seedRecordings(t, r)

	cases := []struct {
		name       string
		query      string
		wantCode   int
		wantTime   float64
		wantOffset float64
	}{
		{"inside segment", "t=1030", http.StatusOK, 1030, 20},
		{"in gap", "t=1015", http.StatusOK, 1015, 10},
		{"drag position", "position=0.5", http.StatusOK, 1020, 10},
		{"position out of range", "position=1.5", http.StatusBadRequest, 0, 0},
		{"missing t", "", http.StatusBadRequest, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, http.MethodGet, "/cameras/front/recordings/offset?after=1000&before=1040&"+tc.query, nil)
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			if tc.wantCode != http.StatusOK {
				return
			}
			var sel selectionJSON
			if err := json.NewDecoder(rec.Body).Decode(&sel); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if sel.Timestamp != tc.wantTime || sel.Offset != tc.wantOffset {
				t.Errorf("got %+v, want timestamp %v offset %v", sel, tc.wantTime, tc.wantOffset)
			}
		})
	}
}

func TestHandler_GetTimestamp(t *testing.T) {
	r := newTestRouter(t)
	seedRecordings(t, r)

	rec := do(t, r, http.MethodGet, "/cameras/front/recordings/timestamp?after=1000&before=1040&offset=25", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sel selectionJSON
	if err := json.NewDecoder(rec.Body).Decode(&sel); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sel.Timestamp != 1035 || sel.Offset != 25 {
		t.Errorf("got %+v, want 1035 at 25", sel)
	}

	if rec := do(t, r, http.MethodGet, "/cameras/front/recordings/timestamp?after=5000&before=6000&offset=1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("no recordings: expected 404, got %d", rec.Code)
	}
}

func TestHandler_GetPlaylist(t *testing.T) {
	r := newTestRouter(t)
	seedRecordings(t, r)

	rec := do(t, r, http.MethodGet, "/cameras/front/recordings/playlist.m3u8?after=1000&before=1040&token=abc", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != playlistContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "#EXT-X-ENDLIST") || !strings.Contains(body, "/front/2.mp4?token=abc") {
		t.Errorf("unexpected playlist:\n%s", body)
	}

	if rec := do(t, r, http.MethodGet, "/cameras/back/recordings/playlist.m3u8?after=1000&before=1040", nil); rec.Code != http.StatusNotFound {
		t.Errorf("empty window: expected 404, got %d", rec.Code)
	}
}

func TestHandler_Activity(t *testing.T) {
	r := newTestRouter(t)

	samples := []map[string]any{
		{"date": 0, "count": 1, "has_objects": true},
		{"date": 60, "count": 2},
	}
	if rec := do(t, r, http.MethodPost, "/cameras/front/activity", samples); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/cameras/front/activity", "{"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: expected 400, got %d", rec.Code)
	}

	rec := do(t, r, http.MethodGet, "/cameras/front/activity?after=0&before=3600&timezone=UTC", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var graph map[string]struct {
		Indices []int `json:"indices"`
		Series  []struct {
			X int64   `json:"x"`
			Y float64 `json:"y"`
		} `json:"series"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&graph); err != nil {
		t.Fatalf("decode: %v", err)
	}
	hour := graph["00"]
	if len(hour.Series) != 2 || len(hour.Indices) != 1 || hour.Series[1].X != 60_000 {
		t.Errorf("hour 00 = %+v", hour)
	}

	if rec := do(t, r, http.MethodGet, "/cameras/front/activity?after=0&before=3600&timezone=Nowhere", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad timezone: expected 400, got %d", rec.Code)
	}
}

func TestHandler_EventsAndTimeline(t *testing.T) {
	r := newTestRouter(t)
	seedRecordings(t, r)

	rec := do(t, r, http.MethodPost, "/cameras/front/events", map[string]any{"label": "person", "timestamp": 1030})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created eventJSON
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Label != "person" || created.Offset != nil {
		t.Errorf("created = %+v", created)
	}

	if rec := do(t, r, http.MethodPost, "/cameras/front/events", map[string]any{"label": "car"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing timestamp: expected 400, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodGet, "/cameras/front/timeline?after=1000&before=1040", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var events []eventJSON
	if err := json.NewDecoder(rec.Body).Decode(&events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].ID != created.ID || events[0].Offset == nil || *events[0].Offset != 20 {
		t.Errorf("timeline = %+v", events)
	}
	if len(events) == 1 && (events[0].Recorded == nil || !*events[0].Recorded) {
		t.Errorf("event inside a recording should be marked recorded: %+v", events[0])
	}
}

func TestHandler_Previews(t *testing.T) {
	r := newTestRouter(t)

	clip := map[string]any{"src": "/previews/front.mp4", "start_time": 1000, "end_time": 4600}
	if rec := do(t, r, http.MethodPost, "/cameras/front/previews", clip); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec := do(t, r, http.MethodGet, "/cameras/front/preview?t=2000", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got previewJSON
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Src != "/previews/front.mp4" || got.StartTime != 1000 || got.EndTime != 4600 {
		t.Errorf("preview = %+v", got)
	}

	if rec := do(t, r, http.MethodGet, "/cameras/front/preview?t=9000", nil); rec.Code != http.StatusNotFound {
		t.Errorf("no clip: expected 404, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/cameras/front/previews", map[string]any{"src": "/p.mp4", "start_time": 5, "end_time": 5}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty clip: expected 400, got %d", rec.Code)
	}
}

func TestHandler_unknown_camera(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), 0, map[string]*time.Location{"front": time.UTC})
	h := NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	r := chi.NewRouter()
	h.Mount(r)

	body := map[string]any{"start_time": 0, "end_time": 10, "path": "/a.mp4"}
	if rec := do(t, r, http.MethodPost, "/cameras/garage/recordings", body); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/cameras/front/recordings", body); rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestFromUnix_roundTrip(t *testing.T) {
	for _, f := range []float64{0, 1700000000, 1700000000.25, -1.5} {
		if got := toUnix(fromUnix(f)); got != f {
			t.Errorf("toUnix(fromUnix(%v)) = %v", f, got)
		}
	}
}
