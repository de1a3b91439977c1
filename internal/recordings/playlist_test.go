package recordings

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildVODPlaylist(t *testing.T) {
	recs := []Recording{
		{Camera: "front", Start: at(1000), End: at(1010), Path: "/front/1.mp4"},
		{Camera: "front", Start: at(1020), End: at(1040), Path: "/front/2.mp4"},
		{Camera: "front", Start: at(1040), End: at(1046), Path: "/front/3.mp4"},
	}

	out, err := BuildVODPlaylist(recs, "")
	if err != nil {
		t.Fatalf("BuildVODPlaylist: %v", err)
	}

	for _, want := range []string{"#EXTM3U", "#EXT-X-PLAYLIST-TYPE:VOD", "#EXT-X-ENDLIST", "#EXT-X-PROGRAM-DATE-TIME:", "/front/1.mp4", "/front/3.mp4"} {
		if !strings.Contains(out, want) {
			t.Errorf("playlist missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "#EXT-X-DISCONTINUITY\n"); n != 2 {
		t.Errorf("discontinuities = %d, want 2:\n%s", n, out)
	}

	// The first discontinuity sits between the first and second files.
	first := strings.Index(out, "/front/1.mp4")
	disc := strings.Index(out, "#EXT-X-DISCONTINUITY")
	second := strings.Index(out, "/front/2.mp4")
	if !(first < disc && disc < second) {
		t.Errorf("discontinuity out of place:\n%s", out)
	}
}

func TestBuildVODPlaylist_token(t *testing.T) {
	recs := []Recording{
		{Start: at(0), End: at(10), Path: "/a.mp4"},
		{Start: at(10), End: at(20), Path: "/b.mp4?v=2"},
	}

	out, err := BuildVODPlaylist(recs, "s3cr3t&x")
	if err != nil {
		t.Fatalf("BuildVODPlaylist: %v", err)
	}
	if !strings.Contains(out, "/a.mp4?token=s3cr3t%26x") {
		t.Errorf("token not appended to first uri:\n%s", out)
	}
	if !strings.Contains(out, "/b.mp4?v=2&token=s3cr3t%26x") {
		t.Errorf("token not appended to second uri:\n%s", out)
	}
}

func TestBuildVODPlaylist_empty(t *testing.T) {
	if _, err := BuildVODPlaylist(nil, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildVODPlaylist_skips_zero_length(t *testing.T) {
	recs := []Recording{
		{Start: at(0), End: at(10), Path: "/a.mp4"},
		{Start: at(10), End: at(10), Path: "/empty.mp4"},
		{Start: at(20), End: at(30), Path: "/b.mp4"},
	}

	out, err := BuildVODPlaylist(recs, "")
	if err != nil {
		t.Fatalf("BuildVODPlaylist: %v", err)
	}
	if strings.Contains(out, "/empty.mp4") || strings.Contains(out, "#EXTINF:0.000") {
		t.Errorf("zero-length recording in playlist:\n%s", out)
	}
	if n := strings.Count(out, "#EXT-X-DISCONTINUITY\n"); n != 1 {
		t.Errorf("discontinuities = %d, want 1:\n%s", n, out)
	}

	if _, err := BuildVODPlaylist(recs[1:2], ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("only zero-length: expected ErrNotFound, got %v", err)
	}
}
