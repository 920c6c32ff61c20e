package playlist

import (
	"strings"

	"karolbroda.com/lyreplay/internal/lyrics"
)

type Track struct {
	ID              string
	Title           string
	Artist          string
	Album           string
	DurationHint    float64
	AudioCandidates []string
	CoverCandidates []string
	FallbackCover   string
	LyricsPath      string
	NeteaseID       string

	// set by the controller during a load, cleared on reselect
	ResolvedAudioURL string
	ResolvedCoverURL string
}

func (t *Track) IsValid() bool {
	if t == nil {
		return false
	}
	return t.Title != "" && len(t.AudioCandidates) > 0
}

func (t *Track) IsSameTrack(other *Track) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.ID != "" && other.ID != "" {
		return t.ID == other.ID
	}
	return t.Title == other.Title && t.Artist == other.Artist
}

func (t *Track) ClearResolved() {
	t.ResolvedAudioURL = ""
	t.ResolvedCoverURL = ""
}

// Clone copies the track including its candidate slices.
func (t Track) Clone() Track {
	t.AudioCandidates = append([]string(nil), t.AudioCandidates...)
	t.CoverCandidates = append([]string(nil), t.CoverCandidates...)
	return t
}

func (t Track) DisplayName() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

func (t Track) LyricsQuery() lyrics.Query {
	return lyrics.Query{
		Title:        strings.TrimSpace(t.Title),
		Artist:       strings.TrimSpace(t.Artist),
		Album:        strings.TrimSpace(t.Album),
		DurationSecs: int64(t.DurationHint),
		Path:         t.LyricsPath,
	}
}
