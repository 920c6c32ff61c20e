package lyrics

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const DefaultStrategyDelay = 100 * time.Millisecond

type LrclibResponse struct {
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// LrclibSource looks lyrics up on an lrclib compatible /api/get endpoint.
// Several spellings of artist and title are tried since lrclib matches
// exactly.
type LrclibSource struct {
	Client  Fetcher
	BaseURL string
	Delay   time.Duration
}

func (s LrclibSource) Lyrics(ctx context.Context, q Query) (string, error) {
	payload, err := s.Lookup(ctx, q)
	if err != nil {
		return "", err
	}
	if payload.SyncedLyrics == "" {
		return "", fmt.Errorf("%w: %s - %s has no synced lyrics", ErrNoLyrics, q.Artist, q.Title)
	}
	return payload.SyncedLyrics, nil
}

type lookup struct {
	artist   string
	title    string
	album    string
	duration int64
}

func (l lookup) key() string {
	return fmt.Sprintf("%s|%s|%s|%d", l.artist, l.title, l.album, l.duration)
}

// Lookup returns the first lrclib record with any lyrics for q.
func (s LrclibSource) Lookup(ctx context.Context, q Query) (*LrclibResponse, error) {
	if q.Title == "" || q.Artist == "" {
		return nil, fmt.Errorf("%w: title or artist is empty", ErrNoLyrics)
	}
	if s.BaseURL == "" {
		return nil, errors.New("lrclib base url is empty")
	}

	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid lrclib url %q: %w", s.BaseURL, err)
	}

	delay := s.Delay
	if delay == 0 {
		delay = DefaultStrategyDelay
	}

	var lastErr error
	for i, l := range lookups(q) {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		params := base.Query()
		params.Set("artist_name", l.artist)
		params.Set("track_name", l.title)
		if l.album != "" {
			params.Set("album_name", l.album)
		}
		if l.duration > 0 {
			params.Set("duration", strconv.FormatInt(l.duration, 10))
		}
		u := *base
		u.RawQuery = params.Encode()

		var payload LrclibResponse
		err := s.Client.GetJSON(ctx, u.String(), &payload)
		if err != nil {
			lastErr = err
			if isTimeout(err) {
				return nil, fmt.Errorf("lyrics server took too long to respond: %w", err)
			}
			continue
		}

		if payload.PlainLyrics == "" && payload.SyncedLyrics == "" && !payload.Instrumental {
			lastErr = ErrNoLyrics
			continue
		}
		return &payload, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w for %s - %s: %v", ErrNoLyrics, q.Artist, q.Title, lastErr)
	}
	return nil, fmt.Errorf("%w for %s - %s", ErrNoLyrics, q.Artist, q.Title)
}

func lookups(q Query) []lookup {
	artist := normalize(q.Artist)
	title := normalize(q.Title)

	candidates := []lookup{
		{artist, title, q.Album, q.DurationSecs},
		{artist, title, "", q.DurationSecs},
		{artist, title, "", 0},
		{stripVersionInfo(q.Artist), stripVersionInfo(q.Title), "", 0},
		{strings.ToLower(artist), strings.ToLower(title), "", 0},
		{titleCase(artist), titleCase(title), "", 0},
		{q.Artist, q.Title, "", 0},
	}

	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, l := range candidates {
		if l.artist == "" || l.title == "" || seen[l.key()] {
			continue
		}
		seen[l.key()] = true
		out = append(out, l)
	}
	return out
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripVersionInfo drops bracketed suffixes like "(Live)" or "[Remastered]".
func stripVersionInfo(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
			b.WriteRune(' ')
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return normalize(b.String())
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}
