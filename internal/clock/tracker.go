// Package clock maps a stream of playback times onto the active lyric cue.
package clock

import (
	"karolbroda.com/lyreplay/internal/lyrics"
)

// Tracker remembers the last active cue so steady playback only scans
// forward. It is not safe for concurrent use; the controller loop owns it.
type Tracker struct {
	cues     []lyrics.Cue
	last     int
	lastTime float64
	primed   bool
	offset   float64
}

func NewTracker() *Tracker {
	return &Tracker{last: -1}
}

// SetCues replaces the cue sequence and resets the cursor to -1.
func (t *Tracker) SetCues(cues []lyrics.Cue) {
	t.cues = cues
	t.last = -1
	t.primed = false
}

// SetOffset shifts incoming times by seconds. Positive values show lines
// earlier.
func (t *Tracker) SetOffset(seconds float64) {
	t.offset = seconds
	t.primed = false
}

func (t *Tracker) Offset() float64 {
	return t.offset
}

func (t *Tracker) Index() int {
	return t.last
}

func (t *Tracker) Cues() []lyrics.Cue {
	return t.cues
}

// Update feeds a playback time and returns the active index and whether it
// differs from the previous one.
func (t *Tracker) Update(now float64) (int, bool) {
	pos := now + t.offset

	var idx int
	if !t.primed || pos < t.lastTime {
		idx = lyrics.IndexAt(t.cues, pos)
	} else {
		idx = t.last
		for idx+1 < len(t.cues) && t.cues[idx+1].TimeSeconds <= pos {
			idx++
		}
	}

	t.lastTime = pos
	t.primed = true

	if idx == t.last {
		return idx, false
	}
	t.last = idx
	return idx, true
}
