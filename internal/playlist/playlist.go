// Package playlist holds the ordered track list, its current-index cursor
// and the manifest format it is loaded from.
package playlist

import (
	"errors"
	"fmt"
)

var ErrOutOfRange = errors.New("track index out of range")

// Playlist is an ordered list of tracks plus a cursor. The cursor is always
// a valid index when the list is non-empty.
type Playlist struct {
	tracks  []Track
	current int
}

func New(tracks []Track) *Playlist {
	p := &Playlist{tracks: make([]Track, len(tracks))}
	for i, t := range tracks {
		p.tracks[i] = t.Clone()
	}
	return p
}

func (p *Playlist) Len() int {
	return len(p.tracks)
}

func (p *Playlist) CurrentIndex() int {
	if len(p.tracks) == 0 {
		return -1
	}
	return p.current
}

// Current returns the track under the cursor, or nil for an empty list.
func (p *Playlist) Current() *Track {
	if len(p.tracks) == 0 {
		return nil
	}
	return &p.tracks[p.current]
}

func (p *Playlist) At(i int) (*Track, error) {
	if i < 0 || i >= len(p.tracks) {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrOutOfRange, i, len(p.tracks))
	}
	return &p.tracks[i], nil
}

func (p *Playlist) Select(i int) error {
	if _, err := p.At(i); err != nil {
		return err
	}
	p.current = i
	return nil
}

// Step returns the index delta positions away from the cursor, wrapping at
// both ends. It does not move the cursor.
func (p *Playlist) Step(delta int) int {
	n := len(p.tracks)
	if n == 0 {
		return -1
	}
	return ((p.current+delta)%n + n) % n
}

// IndexOf finds a track by identity, or -1.
func (p *Playlist) IndexOf(t *Track) int {
	for i := range p.tracks {
		if p.tracks[i].IsSameTrack(t) {
			return i
		}
	}
	return -1
}

// Tracks returns a copy of every track.
func (p *Playlist) Tracks() []Track {
	out := make([]Track, len(p.tracks))
	for i, t := range p.tracks {
		out[i] = t.Clone()
	}
	return out
}
