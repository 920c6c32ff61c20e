package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyreplay/internal/controller"
	"karolbroda.com/lyreplay/internal/lyrics"
	"karolbroda.com/lyreplay/internal/playlist"
)

type TrackLoadedMsg struct {
	Index int
	Track playlist.Track
}

type CuesLoadedMsg struct {
	Cues []lyrics.Cue
}

type ActiveCueMsg struct {
	Index int
}

type CoverMsg struct {
	URL      string
	Fallback bool
}

type StateMsg struct {
	State controller.State
	Err   error
}

// PlaylistMsg is sent by the caller after the playlist is replaced.
type PlaylistMsg struct {
	Total int
}

type ProgressMsg struct {
	Current  float64
	Duration float64
}

// Bridge is the controller's Renderer. It queues what the controller reports
// until the bubbletea loop picks it up through Listen.
type Bridge struct {
	msgs chan tea.Msg
	done chan struct{}
	once sync.Once
}

func NewBridge() *Bridge {
	return &Bridge{
		msgs: make(chan tea.Msg, 64),
		done: make(chan struct{}),
	}
}

// Close releases a controller blocked on a full queue once the UI is gone.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

// Listen waits for the next controller message.
func (b *Bridge) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.msgs:
			return msg
		case <-b.done:
			return nil
		}
	}
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.msgs <- msg:
	case <-b.done:
	}
}

// progress is superseded every tick, so it is dropped rather than queued
// behind a slow UI.
func (b *Bridge) sendDroppable(msg tea.Msg) {
	select {
	case b.msgs <- msg:
	default:
	}
}

func (b *Bridge) TrackLoaded(index int, t playlist.Track) {
	b.send(TrackLoadedMsg{Index: index, Track: t})
}

func (b *Bridge) CuesLoaded(cues []lyrics.Cue) {
	b.send(CuesLoadedMsg{Cues: cues})
}

func (b *Bridge) ActiveCueChanged(index int) {
	b.send(ActiveCueMsg{Index: index})
}

func (b *Bridge) CoverResolved(url string, fallback bool) {
	b.send(CoverMsg{URL: url, Fallback: fallback})
}

func (b *Bridge) StateChanged(state controller.State, err error) {
	b.send(StateMsg{State: state, Err: err})
}

func (b *Bridge) Progress(current, duration float64) {
	b.sendDroppable(ProgressMsg{Current: current, Duration: duration})
}
