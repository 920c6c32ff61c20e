package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"karolbroda.com/lyreplay/internal/lyrics"
	"karolbroda.com/lyreplay/internal/media"
	"karolbroda.com/lyreplay/internal/playlist"
	"karolbroda.com/lyreplay/internal/resolver"
)

// fakeMedia becomes ready for any source unless noMeta is set, in which case
// it only reports can-play.
type fakeMedia struct {
	mu       sync.Mutex
	events   chan media.Event
	sources  []string
	current  string
	playing  bool
	playErr  error
	noMeta   bool
	duration float64
	volume   float64
	muted    bool
	seeks    []float64
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{events: make(chan media.Event, 64), duration: 200}
}

func (m *fakeMedia) SetSource(url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, url)
	m.current = url
	m.playing = false
	if url == "" {
		return nil
	}
	if !m.noMeta {
		m.events <- media.Event{Type: media.EventMetadataReady, Duration: m.duration}
	}
	m.events <- media.Event{Type: media.EventCanPlay}
	return nil
}

func (m *fakeMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	m.playing = true
	return nil
}

func (m *fakeMedia) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	return nil
}

func (m *fakeMedia) SetCurrentTime(seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeks = append(m.seeks, seconds)
	return nil
}

func (m *fakeMedia) SetVolume(v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
	return nil
}

func (m *fakeMedia) SetMuted(muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	return nil
}

func (m *fakeMedia) Events() <-chan media.Event {
	return m.events
}

func (m *fakeMedia) emit(ev media.Event) {
	m.events <- ev
}

func (m *fakeMedia) setPlayErr(err error) {
	m.mu.Lock()
	m.playErr = err
	m.mu.Unlock()
}

func (m *fakeMedia) sourceHistory() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sources...)
}

type recordingRenderer struct {
	mu      sync.Mutex
	loaded  []int
	states  []State
	covers  []string
	actives []int
}

func (r *recordingRenderer) TrackLoaded(index int, _ playlist.Track) {
	r.mu.Lock()
	r.loaded = append(r.loaded, index)
	r.mu.Unlock()
}

func (r *recordingRenderer) CuesLoaded([]lyrics.Cue) {}

func (r *recordingRenderer) ActiveCueChanged(index int) {
	r.mu.Lock()
	r.actives = append(r.actives, index)
	r.mu.Unlock()
}

func (r *recordingRenderer) CoverResolved(url string, _ bool) {
	r.mu.Lock()
	r.covers = append(r.covers, url)
	r.mu.Unlock()
}

func (r *recordingRenderer) StateChanged(s State, _ error) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recordingRenderer) Progress(float64, float64) {}

func (r *recordingRenderer) loads() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.loaded...)
}

// audio candidates starting with "ok:" probe fine, "slow:" succeeds after a
// delay regardless of context, anything else fails.
var testProbe = resolver.ProbeFunc(func(ctx context.Context, location string) error {
	switch {
	case strings.HasPrefix(location, "ok:"):
		return nil
	case strings.HasPrefix(location, "slow:"):
		time.Sleep(80 * time.Millisecond)
		return nil
	default:
		return errors.New("unreachable")
	}
})

const testLRC = "[00:00.00]intro\n[00:10.00]first\n[00:20.00]second\n"

type harness struct {
	c        *Controller
	media    *fakeMedia
	renderer *recordingRenderer
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, deps Deps) *harness {
	t.Helper()

	h := &harness{media: newFakeMedia(), renderer: &recordingRenderer{}}
	if deps.Media == nil {
		deps.Media = h.media
	}
	if deps.AudioProbe == nil {
		deps.AudioProbe = testProbe
	}
	deps.Renderer = h.renderer

	c, err := New(deps, Options{
		ProbeTimeout: 500 * time.Millisecond,
		FetchTimeout: 500 * time.Millisecond,
		ReadyTimeout: 300 * time.Millisecond,
		AdvanceDelay: 10 * time.Millisecond,
		DefaultCover: "/img/default.svg",
	})
	if err != nil {
		t.Fatal(err)
	}
	h.c = c

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
	return h
}

func (h *harness) waitFor(t *testing.T, what string, cond func(Snapshot) bool) Snapshot {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for {
		snap, err := h.c.Snapshot()
		if err != nil {
			t.Fatalf("Snapshot() err = %v", err)
		}
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; last state %s index %d err %v", what, snap.State, snap.Index, snap.Err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func stateIs(s State) func(Snapshot) bool {
	return func(snap Snapshot) bool { return snap.State == s }
}

func readyAt(i int, s State) func(Snapshot) bool {
	return func(snap Snapshot) bool { return snap.Index == i && snap.State == s }
}

func tracks(candidates ...string) []playlist.Track {
	out := make([]playlist.Track, len(candidates))
	for i, c := range candidates {
		out[i] = playlist.Track{
			ID:              string(rune('a' + i)),
			Title:           "Track " + string(rune('A'+i)),
			AudioCandidates: []string{c},
			FallbackCover:   "/img/fallback.svg",
		}
	}
	return out
}

func TestLoadReachesReady(t *testing.T) {
	h := newHarness(t, Deps{
		Lyrics: lyrics.SourceFunc(func(ctx context.Context, q lyrics.Query) (string, error) {
			return testLRC, nil
		}),
	})

	if err := h.c.SetPlaylist(tracks("ok:a", "ok:b")); err != nil {
		t.Fatal(err)
	}

	snap := h.waitFor(t, "ready with cues", func(s Snapshot) bool {
		return s.State == StateReady && len(s.Cues) == 3
	})
	if snap.Track.ResolvedAudioURL != "ok:a" {
		t.Errorf("ResolvedAudioURL = %q, expected ok:a", snap.Track.ResolvedAudioURL)
	}
	if snap.Duration != 200 {
		t.Errorf("Duration = %v, expected 200", snap.Duration)
	}

	h.media.emit(media.Event{Type: media.EventTimeUpdate, Time: 15})
	h.waitFor(t, "active cue 1", func(s Snapshot) bool { return s.ActiveCue == 1 })
}

func TestNextPreviousWrap(t *testing.T) {
	tests := []struct {
		name      string
		playing   bool
		next      bool
		expected  int
		wantState State
	}{
		{"next from playing wraps", true, true, 0, StatePlaying},
		{"previous from playing wraps", true, false, 2, StatePlaying},
		{"next from paused wraps", false, true, 0, StateReady},
		{"previous from paused wraps", false, false, 2, StateReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Deps{})
			if err := h.c.SetPlaylist(tracks("ok:a", "ok:b", "ok:c")); err != nil {
				t.Fatal(err)
			}

			start := 2
			if !tt.next {
				start = 0
			}
			if err := h.c.SelectTrack(start); err != nil {
				t.Fatal(err)
			}
			h.waitFor(t, "ready", readyAt(start, StateReady))

			if err := h.c.Play(); err != nil {
				t.Fatal(err)
			}
			if !tt.playing {
				if err := h.c.Pause(); err != nil {
					t.Fatal(err)
				}
				h.waitFor(t, "paused", stateIs(StatePaused))
			}

			var err error
			if tt.next {
				err = h.c.Next()
			} else {
				err = h.c.Previous()
			}
			if err != nil {
				t.Fatal(err)
			}

			h.waitFor(t, tt.wantState.String(), readyAt(tt.expected, tt.wantState))
		})
	}
}

func TestAutoAdvanceGivesUpAfterFullPass(t *testing.T) {
	h := newHarness(t, Deps{})
	if err := h.c.SetPlaylist(tracks("bad:a", "bad:b", "bad:c")); err != nil {
		t.Fatal(err)
	}

	snap := h.waitFor(t, "terminal error", func(s Snapshot) bool {
		return s.State == StateError && errors.Is(s.Err, ErrNoPlayableTracks)
	})
	if KindOf(snap.Err) != KindResourceUnavailable {
		t.Errorf("KindOf(err) = %v, expected resource unavailable", KindOf(snap.Err))
	}

	time.Sleep(100 * time.Millisecond)
	if got := h.renderer.loads(); len(got) != 3 {
		t.Errorf("loaded %v, expected exactly one pass of 3", got)
	}
	if again, _ := h.c.Snapshot(); again.Index != 2 {
		t.Errorf("Index = %d after giving up, expected 2", again.Index)
	}
}

func TestAutoAdvanceSkipsToPlayable(t *testing.T) {
	h := newHarness(t, Deps{})
	if err := h.c.SetPlaylist(tracks("bad:a", "ok:b")); err != nil {
		t.Fatal(err)
	}

	h.waitFor(t, "second track ready", readyAt(1, StateReady))
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	h := newHarness(t, Deps{})
	if err := h.c.SetPlaylist(tracks("ok:a", "slow:b", "ok:c")); err != nil {
		t.Fatal(err)
	}
	h.waitFor(t, "first ready", readyAt(0, StateReady))

	if err := h.c.SelectTrack(1); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Next(); err != nil {
		t.Fatal(err)
	}

	h.waitFor(t, "third ready", readyAt(2, StateReady))
	time.Sleep(150 * time.Millisecond)

	snap, _ := h.c.Snapshot()
	if snap.Index != 2 || snap.State != StateReady {
		t.Errorf("state = %s index %d, expected ready at 2", snap.State, snap.Index)
	}
	for _, src := range h.media.sourceHistory() {
		if src == "slow:b" {
			t.Error("stale resolution reached the media handle")
		}
	}
}

func TestCommandsRejected(t *testing.T) {
	h := newHarness(t, Deps{})

	if err := h.c.Play(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Play() while idle err = %v, expected ErrInvalidState", err)
	}
	if err := h.c.Next(); !errors.Is(err, ErrEmptyPlaylist) {
		t.Errorf("Next() on empty err = %v, expected ErrEmptyPlaylist", err)
	}

	if err := h.c.SetPlaylist(tracks("ok:a")); err != nil {
		t.Fatal(err)
	}
	if err := h.c.SelectTrack(4); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SelectTrack(4) err = %v, expected ErrOutOfRange", err)
	}
}

func TestPlayRejected(t *testing.T) {
	h := newHarness(t, Deps{})
	h.media.setPlayErr(errors.New("autoplay blocked"))

	if err := h.c.SetPlaylist(tracks("ok:a", "ok:b")); err != nil {
		t.Fatal(err)
	}
	h.waitFor(t, "ready", stateIs(StateReady))

	err := h.c.Play()
	if KindOf(err) != KindPlaybackRejected {
		t.Fatalf("Play() err = %v, expected playback rejected", err)
	}

	snap, _ := h.c.Snapshot()
	if snap.State != StateError || snap.Index != 0 {
		t.Errorf("state = %s index %d, expected error at 0", snap.State, snap.Index)
	}

	h.media.setPlayErr(nil)
	if err := h.c.Play(); err != nil {
		t.Fatalf("Play() after rejection err = %v", err)
	}
	h.waitFor(t, "playing", stateIs(StatePlaying))
}

func TestSeek(t *testing.T) {
	t.Run("before metadata", func(t *testing.T) {
		h := newHarness(t, Deps{})
		h.media.noMeta = true

		if err := h.c.SetPlaylist(tracks("ok:a")); err != nil {
			t.Fatal(err)
		}
		h.waitFor(t, "ready", stateIs(StateReady))

		if err := h.c.Seek(0.5); !errors.Is(err, ErrNotSeekable) {
			t.Errorf("Seek() err = %v, expected ErrNotSeekable", err)
		}
	})

	t.Run("clamps fraction", func(t *testing.T) {
		h := newHarness(t, Deps{})
		if err := h.c.SetPlaylist(tracks("ok:a")); err != nil {
			t.Fatal(err)
		}
		h.waitFor(t, "ready", stateIs(StateReady))

		for _, f := range []float64{0.5, 2, -1} {
			if err := h.c.Seek(f); err != nil {
				t.Fatalf("Seek(%v) err = %v", f, err)
			}
		}

		h.media.mu.Lock()
		seeks := append([]float64(nil), h.media.seeks...)
		h.media.mu.Unlock()

		expected := []float64{100, 200, 0}
		if len(seeks) != len(expected) {
			t.Fatalf("seeks = %v, expected %v", seeks, expected)
		}
		for i := range expected {
			if seeks[i] != expected[i] {
				t.Errorf("seek %d = %v, expected %v", i, seeks[i], expected[i])
			}
		}
	})
}

func TestVolumeAndMute(t *testing.T) {
	h := newHarness(t, Deps{})

	if err := h.c.SetVolume(150); err != nil {
		t.Fatal(err)
	}
	if err := h.c.SetMuted(true); err != nil {
		t.Fatal(err)
	}

	snap, _ := h.c.Snapshot()
	if snap.Volume != 100 || !snap.Muted {
		t.Errorf("volume %d muted %v, expected 100 and muted", snap.Volume, snap.Muted)
	}

	if err := h.c.AdjustVolume(-130); err != nil {
		t.Fatal(err)
	}
	if err := h.c.ToggleMute(); err != nil {
		t.Fatal(err)
	}

	snap, _ = h.c.Snapshot()
	if snap.Volume != 0 || snap.Muted {
		t.Errorf("volume %d muted %v, expected 0 and unmuted", snap.Volume, snap.Muted)
	}

	h.media.mu.Lock()
	defer h.media.mu.Unlock()
	if h.media.volume != 0 || h.media.muted {
		t.Errorf("media volume %v muted %v", h.media.volume, h.media.muted)
	}
}

func TestLyricsFailureDoesNotBlockAudio(t *testing.T) {
	h := newHarness(t, Deps{
		Lyrics: lyrics.SourceFunc(func(ctx context.Context, q lyrics.Query) (string, error) {
			return "", lyrics.ErrNoLyrics
		}),
	})
	if err := h.c.SetPlaylist(tracks("ok:a")); err != nil {
		t.Fatal(err)
	}

	snap := h.waitFor(t, "ready with degraded lyrics", func(s Snapshot) bool {
		return s.State == StateReady && s.LyricsErr != nil
	})
	if len(snap.Cues) != 0 {
		t.Errorf("Cues = %v, expected none", snap.Cues)
	}
	if KindOf(snap.LyricsErr) != KindParseDegraded {
		t.Errorf("KindOf(LyricsErr) = %v, expected parse degraded", KindOf(snap.LyricsErr))
	}
	if snap.Err != nil {
		t.Errorf("Err = %v, lyrics failure should not surface as track error", snap.Err)
	}
}

func TestCoverFallback(t *testing.T) {
	tests := []struct {
		name     string
		probe    resolver.Probe
		covers   []string
		expected string
		fallback bool
	}{
		{"resolved", testProbe, []string{"bad:x", "ok:cover.png"}, "ok:cover.png", false},
		{"all fail", testProbe, []string{"bad:x"}, "/img/fallback.svg", true},
		{"no probe", nil, []string{"ok:cover.png"}, "/img/fallback.svg", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Deps{CoverProbe: tt.probe})
			list := tracks("ok:a")
			list[0].CoverCandidates = tt.covers
			if err := h.c.SetPlaylist(list); err != nil {
				t.Fatal(err)
			}

			snap := h.waitFor(t, "cover", func(s Snapshot) bool { return s.CoverURL != "" })
			if snap.CoverURL != tt.expected || snap.CoverFallback != tt.fallback {
				t.Errorf("cover = %q (fallback %v), expected %q (fallback %v)",
					snap.CoverURL, snap.CoverFallback, tt.expected, tt.fallback)
			}
		})
	}
}

func TestEndedAdvancesWithAutoplay(t *testing.T) {
	h := newHarness(t, Deps{})
	if err := h.c.SetPlaylist(tracks("ok:a", "ok:b")); err != nil {
		t.Fatal(err)
	}
	h.waitFor(t, "ready", stateIs(StateReady))

	h.media.emit(media.Event{Type: media.EventEnded})
	h.waitFor(t, "second playing", readyAt(1, StatePlaying))
}

func TestSetPlaylistKeepsCurrentTrack(t *testing.T) {
	h := newHarness(t, Deps{})
	list := tracks("ok:a", "ok:b")
	if err := h.c.SetPlaylist(list); err != nil {
		t.Fatal(err)
	}
	if err := h.c.SelectTrack(1); err != nil {
		t.Fatal(err)
	}
	h.waitFor(t, "ready", readyAt(1, StateReady))

	reordered := append([]playlist.Track{{ID: "new", Title: "New", AudioCandidates: []string{"ok:n"}}}, list...)
	if err := h.c.SetPlaylist(reordered); err != nil {
		t.Fatal(err)
	}

	snap, _ := h.c.Snapshot()
	if snap.Index != 2 || snap.State != StateReady {
		t.Errorf("state = %s index %d, expected ready at 2", snap.State, snap.Index)
	}
	if snap.Track.ResolvedAudioURL != "ok:b" {
		t.Errorf("ResolvedAudioURL = %q, expected kept", snap.Track.ResolvedAudioURL)
	}

	if err := h.c.SetPlaylist(nil); err != nil {
		t.Fatal(err)
	}
	if snap, _ := h.c.Snapshot(); snap.State != StateIdle {
		t.Errorf("state = %s after empty playlist, expected idle", snap.State)
	}
}

func TestSyncOffsetMovesActiveCue(t *testing.T) {
	h := newHarness(t, Deps{
		Lyrics: lyrics.SourceFunc(func(ctx context.Context, q lyrics.Query) (string, error) {
			return testLRC, nil
		}),
	})
	if err := h.c.SetPlaylist(tracks("ok:a")); err != nil {
		t.Fatal(err)
	}
	h.waitFor(t, "cues", func(s Snapshot) bool { return s.State == StateReady && len(s.Cues) == 3 })

	h.media.emit(media.Event{Type: media.EventTimeUpdate, Time: 9.5})
	h.waitFor(t, "intro active", func(s Snapshot) bool { return s.ActiveCue == 0 && s.Position == 9.5 })

	if err := h.c.SetSyncOffset(1); err != nil {
		t.Fatal(err)
	}
	snap, _ := h.c.Snapshot()
	if snap.ActiveCue != 1 || snap.SyncOffset != 1 {
		t.Errorf("active %d offset %v, expected 1 and 1", snap.ActiveCue, snap.SyncOffset)
	}
}

func TestPreRollTimeKeepsNoActiveCue(t *testing.T) {
	h := newHarness(t, Deps{
		Lyrics: lyrics.SourceFunc(func(ctx context.Context, q lyrics.Query) (string, error) {
			return "[00:00.00]count in\n[00:05.00]verse", nil
		}),
	})
	if err := h.c.SetPlaylist(tracks("ok:a")); err != nil {
		t.Fatal(err)
	}
	h.waitFor(t, "cues", func(s Snapshot) bool { return s.State == StateReady && len(s.Cues) == 2 })

	h.media.emit(media.Event{Type: media.EventTimeUpdate, Time: 2})
	h.waitFor(t, "first cue", func(s Snapshot) bool { return s.ActiveCue == 0 && s.Position == 2 })

	h.media.emit(media.Event{Type: media.EventTimeUpdate, Time: -1})
	snap := h.waitFor(t, "pre-roll", func(s Snapshot) bool { return s.Position == 0 })
	if snap.ActiveCue != -1 {
		t.Errorf("ActiveCue = %d at -1s, expected -1", snap.ActiveCue)
	}
}

func TestZeroInitialVolume(t *testing.T) {
	m := newFakeMedia()
	m.volume = -1

	zero := 0
	c, err := New(Deps{Media: m, AudioProbe: testProbe}, Options{InitialVolume: &zero})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})

	snap, err := c.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Volume != 0 {
		t.Errorf("Volume = %d, expected 0", snap.Volume)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.volume != 0 {
		t.Errorf("media volume = %v, expected 0", m.volume)
	}
}

func TestDefaultInitialVolume(t *testing.T) {
	c, err := New(Deps{Media: newFakeMedia(), AudioProbe: testProbe}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})

	if snap, _ := c.Snapshot(); snap.Volume != DefaultVolume {
		t.Errorf("Volume = %d, expected %d", snap.Volume, DefaultVolume)
	}
}

func TestStoppedController(t *testing.T) {
	h := newHarness(t, Deps{})
	h.cancel()
	<-h.c.Done()

	if err := h.c.Play(); !errors.Is(err, ErrStopped) {
		t.Errorf("Play() after stop err = %v, expected ErrStopped", err)
	}
}

func TestStateStrings(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "idle"},
		{StateLoading, "loading"},
		{StateReady, "ready"},
		{StatePlaying, "playing"},
		{StatePaused, "paused"},
		{StateError, "error"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %q, expected %q", tt.state, got, tt.expected)
		}
	}
}
