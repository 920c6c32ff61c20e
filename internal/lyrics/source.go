package lyrics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"karolbroda.com/lyreplay/internal/cache"
	"karolbroda.com/lyreplay/internal/logger"
)

var ErrNoLyrics = errors.New("no lyrics available")

// Query describes the track whose lyrics are wanted. Path is the manifest's
// lyric location, if any.
type Query struct {
	Title        string
	Artist       string
	Album        string
	DurationSecs int64
	Path         string
}

// Source produces raw LRC text for a track.
type Source interface {
	Lyrics(ctx context.Context, q Query) (string, error)
}

// Fetcher is the slice of the http client the sources need.
type Fetcher interface {
	GetText(ctx context.Context, path string) (string, error)
	GetJSON(ctx context.Context, path string, v any) error
}

type SourceFunc func(ctx context.Context, q Query) (string, error)

func (f SourceFunc) Lyrics(ctx context.Context, q Query) (string, error) {
	return f(ctx, q)
}

// PathSource loads the lyric file named by the manifest.
type PathSource struct {
	Client Fetcher
}

func (s PathSource) Lyrics(ctx context.Context, q Query) (string, error) {
	if q.Path == "" {
		return "", ErrNoLyrics
	}

	text, err := s.Client.GetText(ctx, q.Path)
	if err != nil {
		return "", fmt.Errorf("load lyrics %s: %w", q.Path, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoLyrics
	}
	return text, nil
}

// Chain tries each source in order and returns the first non-empty result.
func Chain(sources ...Source) Source {
	return SourceFunc(func(ctx context.Context, q Query) (string, error) {
		var errs []error
		for _, src := range sources {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			text, err := src.Lyrics(ctx, q)
			if err == nil && text != "" {
				return text, nil
			}
			if err != nil && !errors.Is(err, ErrNoLyrics) {
				errs = append(errs, err)
			}
		}

		if len(errs) > 0 {
			return "", errors.Join(append([]error{ErrNoLyrics}, errs...)...)
		}
		return "", ErrNoLyrics
	})
}

// Cached wraps src with the lyric cache, keyed by artist and title.
func Cached(src Source, c *cache.Cache) Source {
	return SourceFunc(func(ctx context.Context, q Query) (string, error) {
		if entry, err := c.Get(q.Artist, q.Title); err == nil {
			logger.Debug("lyrics cache hit",
				logger.String("artist", q.Artist),
				logger.String("title", q.Title))
			return entry.SyncedLyrics, nil
		}

		text, err := src.Lyrics(ctx, q)
		if err != nil {
			return "", err
		}

		_ = c.Set(q.Artist, q.Title, &cache.LyricEntry{
			TrackName:    q.Title,
			ArtistName:   q.Artist,
			AlbumName:    q.Album,
			Duration:     float64(q.DurationSecs),
			SyncedLyrics: text,
		})
		return text, nil
	})
}
