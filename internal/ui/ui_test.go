package ui

import (
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyreplay/internal/controller"
	"karolbroda.com/lyreplay/internal/lyrics"
	"karolbroda.com/lyreplay/internal/playlist"
)

type fakeControls struct {
	mu      sync.Mutex
	calls   []string
	seeks   []float64
	volume  int
	muted   bool
	offset  float64
	seekErr error
}

func (f *fakeControls) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeControls) Toggle() error   { f.record("toggle"); return nil }
func (f *fakeControls) Next() error     { f.record("next"); return nil }
func (f *fakeControls) Previous() error { f.record("previous"); return nil }
func (f *fakeControls) Retry() error    { f.record("retry"); return nil }

func (f *fakeControls) Seek(fraction float64) error {
	f.record("seek")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, fraction)
	return f.seekErr
}

func (f *fakeControls) AdjustVolume(delta int) error {
	f.record("volume")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = max(0, min(100, f.volume+delta))
	return nil
}

func (f *fakeControls) ToggleMute() error {
	f.record("mute")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = !f.muted
	return nil
}

func (f *fakeControls) AdjustSyncOffset(delta float64) error {
	f.record("offset")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offset += delta
	return nil
}

func (f *fakeControls) SetSyncOffset(seconds float64) error {
	f.record("offset")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offset = seconds
	return nil
}

func (f *fakeControls) Snapshot() (controller.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return controller.Snapshot{Volume: f.volume, Muted: f.muted, SyncOffset: f.offset}, nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press runs the key through Update and feeds any command result back in.
func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	next, cmd := m.Update(key(k))
	m = next.(Model)
	if cmd == nil {
		return m
	}
	if done, ok := cmd().(CommandDoneMsg); ok {
		next, _ = m.Update(done)
		m = next.(Model)
	}
	return m
}

func newTestModel(c Controls) Model {
	return NewModel(ModelConfig{Controls: c, Total: 3, Volume: 80})
}

func TestKeysDispatchCommands(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{" ", "toggle"},
		{"n", "next"},
		{"p", "previous"},
		{"r", "retry"},
		{"+", "volume"},
		{"-", "volume"},
		{"m", "mute"},
		{"k", "offset"},
		{"j", "offset"},
		{"0", "offset"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			c := &fakeControls{volume: 80}
			press(t, newTestModel(c), tt.key)
			if len(c.calls) != 1 || c.calls[0] != tt.expected {
				t.Errorf("key %q called %v, expected %s", tt.key, c.calls, tt.expected)
			}
		})
	}
}

func TestSettingsFollowSnapshot(t *testing.T) {
	c := &fakeControls{volume: 98}
	m := newTestModel(c)

	m = press(t, m, "+")
	if m.Volume() != 100 {
		t.Errorf("Volume() = %d, expected clamped 100", m.Volume())
	}
	if !strings.Contains(m.Status(), "100%") {
		t.Errorf("Status() = %q", m.Status())
	}

	m = press(t, m, "m")
	if !m.Muted() || m.Status() != "muted" {
		t.Errorf("after mute: muted=%v status=%q", m.Muted(), m.Status())
	}

	m = press(t, m, "k")
	m = press(t, m, "k")
	if m.SyncOffset() < 0.19 || m.SyncOffset() > 0.21 {
		t.Errorf("SyncOffset() = %v", m.SyncOffset())
	}

	m = press(t, m, "0")
	if m.SyncOffset() != 0 {
		t.Errorf("SyncOffset() after reset = %v", m.SyncOffset())
	}
}

func TestSeekKeys(t *testing.T) {
	c := &fakeControls{}
	m := newTestModel(c)

	m = press(t, m, "right")
	if len(c.seeks) != 0 || m.Status() != "not seekable yet" {
		t.Fatalf("seek without duration: seeks=%v status=%q", c.seeks, m.Status())
	}

	next, _ := m.Update(ProgressMsg{Current: 50, Duration: 100})
	m = next.(Model)

	press(t, m, "right")
	press(t, m, "left")
	if len(c.seeks) != 2 {
		t.Fatalf("seeks = %v", c.seeks)
	}
	if c.seeks[0] < 0.549 || c.seeks[0] > 0.551 || c.seeks[1] < 0.449 || c.seeks[1] > 0.451 {
		t.Errorf("seeks = %v, expected [0.55 0.45]", c.seeks)
	}

	c.seekErr = controller.ErrNotSeekable
	m = press(t, m, "right")
	if m.Status() != "not seekable yet" {
		t.Errorf("Status() = %q", m.Status())
	}
}

func TestQuitClosesBridge(t *testing.T) {
	b := NewBridge()
	m := NewModel(ModelConfig{Controls: &fakeControls{}, Bridge: b})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !next.(Model).IsQuitting() || cmd == nil {
		t.Fatal("ctrl+c should quit")
	}

	if msg := b.Listen()(); msg != nil {
		t.Errorf("Listen() after close = %#v", msg)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.TrackLoaded(i, playlist.Track{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("renderer calls blocked after close")
	}
}

func TestBridgeDeliversInOrder(t *testing.T) {
	b := NewBridge()
	defer b.Close()

	b.TrackLoaded(1, playlist.Track{ID: "a", Title: "A"})
	b.CuesLoaded([]lyrics.Cue{{TimeSeconds: 1, Text: "x"}})
	b.ActiveCueChanged(0)
	b.StateChanged(controller.StatePlaying, nil)

	listen := b.Listen()
	if msg, ok := listen().(TrackLoadedMsg); !ok || msg.Index != 1 {
		t.Errorf("first = %#v", msg)
	}
	if _, ok := listen().(CuesLoadedMsg); !ok {
		t.Error("second should be CuesLoadedMsg")
	}
	if msg, ok := listen().(ActiveCueMsg); !ok || msg.Index != 0 {
		t.Errorf("third = %#v", msg)
	}
	if msg, ok := listen().(StateMsg); !ok || msg.State != controller.StatePlaying {
		t.Errorf("fourth = %#v", msg)
	}
}

func TestBridgeDropsProgressWhenFull(t *testing.T) {
	b := NewBridge()
	defer b.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			b.Progress(float64(i), 100)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Progress blocked on a full queue")
	}
}

func TestStaleArtworkIgnored(t *testing.T) {
	m := newTestModel(&fakeControls{})
	next, _ := m.Update(CoverMsg{URL: "https://cdn.example/new.jpg"})
	m = next.(Model)

	next, _ = m.Update(ArtworkFetchedMsg{URL: "https://cdn.example/old.jpg", Image: image.NewRGBA(image.Rect(0, 0, 4, 4))})
	m = next.(Model)
	if m.display.Image != nil {
		t.Error("stale artwork should not replace the pending cover")
	}

	next, _ = m.Update(ArtworkFetchedMsg{URL: "https://cdn.example/new.jpg", Err: errors.New("boom")})
	m = next.(Model)
	if m.display.Image != nil || m.Palette() == nil {
		t.Error("failed artwork should leave the default palette")
	}
}

func TestViewStates(t *testing.T) {
	m := newTestModel(&fakeControls{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(Model)

	if !strings.Contains(m.View(), "awaiting playlist") {
		t.Error("empty model should show the waiting screen")
	}

	next, _ = m.Update(TrackLoadedMsg{Index: 1, Track: playlist.Track{ID: "1", Title: "Song Title", Artist: "Some Artist"}})
	m = next.(Model)
	view := m.View()
	if !strings.Contains(view, "Song Title") || !strings.Contains(view, "2/3") {
		t.Errorf("view missing header:\n%s", view)
	}
	if !strings.Contains(view, "loading") {
		t.Error("view should show the lyrics spinner before cues arrive")
	}

	next, _ = m.Update(CuesLoadedMsg{Cues: []lyrics.Cue{{TimeSeconds: 0, Text: "first"}, {TimeSeconds: 5, Text: "second"}}})
	m = next.(Model)
	next, _ = m.Update(ActiveCueMsg{Index: 1})
	m = next.(Model)
	if m.ActiveIndex() != 1 || !strings.Contains(m.View(), "first") {
		t.Error("view should render the cues around the active one")
	}

	next, _ = m.Update(CuesLoadedMsg{})
	m = next.(Model)
	if !strings.Contains(m.View(), "no synced lyrics") {
		t.Error("view should note missing lyrics")
	}

	next, _ = m.Update(StateMsg{State: controller.StateError, Err: &controller.Error{Kind: controller.KindResourceUnavailable, Index: -1, Err: controller.ErrNoPlayableTracks}})
	m = next.(Model)
	view = m.View()
	if !strings.Contains(view, "no playable tracks") || !strings.Contains(view, "press r to retry") {
		t.Errorf("view missing terminal error:\n%s", view)
	}

	if lines := strings.Count(m.View(), "\n") + 1; lines != 30 {
		t.Errorf("view height = %d, expected 30", lines)
	}
}

func TestWrapByDisplayWidth(t *testing.T) {
	s := NewLyricStyler(nil, nil, 18)

	lines := s.wrap("one two three four")
	if len(lines) != 2 || lines[0] != "one two" {
		t.Errorf("wrap() = %q", lines)
	}

	// twelve double-width runes, five to a 10-column line
	cjk := s.wrap("夜に駆けるきみの声が聞こ")
	if len(cjk) != 3 {
		t.Errorf("wrap(cjk) = %q", cjk)
	}
}

func TestAnimSettles(t *testing.T) {
	var a AnimState
	a.TargetScrollY = 3
	a.Update(1, true, 4)
	if a.Settled() {
		t.Fatal("fresh transition should not be settled")
	}
	for i := 2; i < 200; i++ {
		a.Update(i, false, 4)
	}
	if !a.Settled() || a.ScrollPosition != 3 {
		t.Errorf("after settling: %+v", a)
	}
}
