package recordings

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/grafov/m3u8"
)

const playlistContentType = "application/vnd.apple.mpegurl"

// BuildVODPlaylist renders recordings (ordered by start ascending) as an HLS
// VOD playlist whose media timeline is the gap-free concatenation that seek
// offsets address. Each file after the first is marked as a discontinuity
// since every file restarts its timestamps at zero. token, when set, is
// appended to every URI as a query parameter. Zero-length recordings cover
// no offsets and are left out.
func BuildVODPlaylist(recs []Recording, token string) (string, error) {
	playable := make([]Recording, 0, len(recs))
	for _, rec := range recs {
		if rec.Duration() > 0 {
			playable = append(playable, rec)
		}
	}
	if len(playable) == 0 {
		return "", ErrNotFound
	}

	pl, err := m3u8.NewMediaPlaylist(0, uint(len(playable)))
	if err != nil {
		return "", fmt.Errorf("new playlist: %w", err)
	}
	pl.MediaType = m3u8.VOD

	for i, rec := range playable {
		if err := pl.Append(segmentURI(rec.Path, token), rec.Duration().Seconds(), ""); err != nil {
			return "", fmt.Errorf("append %s: %w", rec.Path, err)
		}
		if i > 0 {
			if err := pl.SetDiscontinuity(); err != nil {
				return "", err
			}
		}
		if err := pl.SetProgramDateTime(rec.Start); err != nil {
			return "", err
		}
	}
	pl.Close()

	return pl.String(), nil
}

func segmentURI(path, token string) string {
	if token == "" {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "token=" + url.QueryEscape(token)
}
