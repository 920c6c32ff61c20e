package controller

import (
	"errors"
	"fmt"

	"karolbroda.com/lyreplay/internal/playlist"
)

var (
	// ErrNoPlayableTracks ends auto-advance after a full pass over the
	// playlist in which no track became ready.
	ErrNoPlayableTracks = errors.New("no playable tracks")
	ErrOutOfRange       = playlist.ErrOutOfRange
	ErrInvalidState     = errors.New("command not allowed in current state")
	ErrNotSeekable      = errors.New("duration not known yet")
	ErrEmptyPlaylist    = errors.New("playlist is empty")
	ErrStopped          = errors.New("controller stopped")
)

type Kind int

const (
	KindResourceUnavailable Kind = iota + 1
	KindParseDegraded
	KindPlaybackRejected
	KindManifestLoad
)

func (k Kind) String() string {
	switch k {
	case KindResourceUnavailable:
		return "resource unavailable"
	case KindParseDegraded:
		return "lyrics degraded"
	case KindPlaybackRejected:
		return "playback rejected"
	case KindManifestLoad:
		return "manifest load failed"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Index is -1 when no track is involved.
type Error struct {
	Kind  Kind
	Index int
	Track string
	Err   error
}

func (e *Error) Error() string {
	if e.Track == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Track, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of a classified error, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
