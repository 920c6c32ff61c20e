package playlist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"karolbroda.com/lyreplay/internal/logger"
)

// ErrManifest marks a playlist that could not be loaded at all. Unlike a
// single unplayable track it leaves nothing to play.
var ErrManifest = errors.New("manifest load failed")

const DefaultCover = "/img/default-album.svg"

type Manifest struct {
	DefaultCover string
	Tracks       []Track
}

// Fetcher reads a whole manifest body.
type Fetcher interface {
	GetBytes(ctx context.Context, location string) ([]byte, error)
}

func Load(ctx context.Context, client Fetcher, location string) (*Manifest, error) {
	data, err := client.GetBytes(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifest, location, err)
	}

	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifest, location, err)
	}
	return m, nil
}

// flexString accepts ids written as strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// flexDuration accepts seconds as a number or a "m:ss" / "h:mm:ss" string.
type flexDuration float64

func (f *flexDuration) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexDuration(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected duration, got %s", data)
	}

	secs, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*f = flexDuration(secs)
	return nil
}

// ParseDuration reads "222", "3:42" or "1:02:03" as seconds.
func ParseDuration(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	total := 0.0
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

type rawSong struct {
	ID            flexString   `json:"id"`
	Title         string       `json:"title"`
	Artist        string       `json:"artist"`
	Album         string       `json:"album"`
	Duration      flexDuration `json:"duration"`
	URLs          []string     `json:"urls"`
	URL           string       `json:"url"`
	Cover         string       `json:"cover"`
	Covers        []string     `json:"covers"`
	FallbackCover string       `json:"fallbackCover"`
	Lyrics        string       `json:"lyrics"`
	NeteaseID     flexString   `json:"neteaseId"`
}

type rawManifest struct {
	DefaultCover string    `json:"defaultCover"`
	LyricsBase   string    `json:"lyricsBase"`
	Songs        []rawSong `json:"songs"`
}

// Decode parses a manifest object or a bare array of songs. Entries with no
// title or no audio candidates are skipped.
func Decode(data []byte) (*Manifest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty manifest")
	}

	var raw rawManifest
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw.Songs); err != nil {
			return nil, fmt.Errorf("decode songs: %w", err)
		}
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	m := &Manifest{DefaultCover: raw.DefaultCover}
	if m.DefaultCover == "" {
		m.DefaultCover = DefaultCover
	}

	for i, s := range raw.Songs {
		t := s.toTrack(m.DefaultCover, raw.LyricsBase)
		if !t.IsValid() {
			logger.Warn("skipping manifest entry",
				logger.Int("index", i),
				logger.String("title", s.Title),
				logger.Int("candidates", len(t.AudioCandidates)))
			continue
		}
		m.Tracks = append(m.Tracks, t)
	}

	return m, nil
}

func (s rawSong) toTrack(defaultCover, lyricsBase string) Track {
	id := string(s.ID)
	neteaseID := string(s.NeteaseID)

	audio := append([]string{s.URL}, s.URLs...)
	audio = append(audio, NeteaseAudioCandidates(neteaseID)...)

	covers := append([]string{s.Cover}, s.Covers...)
	covers = append(covers, NeteaseCoverCandidate(neteaseID))

	fallback := s.FallbackCover
	if fallback == "" {
		fallback = defaultCover
	}

	lyricsPath := s.Lyrics
	if lyricsPath == "" && lyricsBase != "" && id != "" {
		lyricsPath = path.Join(lyricsBase, id+".lrc")
	}

	if id == "" {
		id = uuid.NewString()
	}

	return Track{
		ID:              id,
		Title:           strings.TrimSpace(s.Title),
		Artist:          strings.TrimSpace(s.Artist),
		Album:           strings.TrimSpace(s.Album),
		DurationHint:    float64(s.Duration),
		AudioCandidates: dedupe(audio),
		CoverCandidates: dedupe(covers),
		FallbackCover:   fallback,
		LyricsPath:      lyricsPath,
		NeteaseID:       neteaseID,
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
