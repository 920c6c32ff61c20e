package controller

import (
	"karolbroda.com/lyreplay/internal/lyrics"
	"karolbroda.com/lyreplay/internal/playlist"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Playable reports whether transport commands are accepted.
func (s State) Playable() bool {
	return s == StateReady || s == StatePlaying || s == StatePaused
}

// Renderer receives everything the controller wants shown. Calls arrive on
// the controller loop and must not block or call back into the controller.
type Renderer interface {
	TrackLoaded(index int, track playlist.Track)
	CuesLoaded(cues []lyrics.Cue)
	ActiveCueChanged(index int)
	CoverResolved(url string, fallback bool)
	StateChanged(state State, err error)
	Progress(current, duration float64)
}

type nopRenderer struct{}

func (nopRenderer) TrackLoaded(int, playlist.Track) {}
func (nopRenderer) CuesLoaded([]lyrics.Cue)         {}
func (nopRenderer) ActiveCueChanged(int)            {}
func (nopRenderer) CoverResolved(string, bool)      {}
func (nopRenderer) StateChanged(State, error)       {}
func (nopRenderer) Progress(float64, float64)       {}

// Snapshot is a copy of the observable controller state.
type Snapshot struct {
	State         State
	Err           error
	Index         int
	Len           int
	Track         *playlist.Track
	Cues          []lyrics.Cue
	ActiveCue     int
	LyricsErr     error
	CoverURL      string
	CoverFallback bool
	Position      float64
	Duration      float64
	Volume        int
	Muted         bool
	SyncOffset    float64
	WantPlay      bool
}
