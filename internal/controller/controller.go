// Package controller drives a playlist through loading, readiness and
// playback. All state lives on one event-loop goroutine; public methods post
// work to it and wait for the answer.
package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"karolbroda.com/lyreplay/internal/clock"
	"karolbroda.com/lyreplay/internal/logger"
	"karolbroda.com/lyreplay/internal/lyrics"
	"karolbroda.com/lyreplay/internal/media"
	"karolbroda.com/lyreplay/internal/playlist"
	"karolbroda.com/lyreplay/internal/resolver"
)

const (
	DefaultProbeTimeout = 8 * time.Second
	DefaultFetchTimeout = 10 * time.Second
	DefaultReadyTimeout = 15 * time.Second
	DefaultAdvanceDelay = 1500 * time.Millisecond
	DefaultVolume       = 80
)

type Options struct {
	ProbeTimeout  time.Duration
	FetchTimeout  time.Duration
	ReadyTimeout  time.Duration
	AdvanceDelay  time.Duration
	DefaultCover  string
	// InitialVolume is a percent; nil means DefaultVolume.
	InitialVolume *int
}

func (o Options) withDefaults() Options {
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = DefaultProbeTimeout
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = DefaultReadyTimeout
	}
	if o.AdvanceDelay < 0 {
		o.AdvanceDelay = 0
	}
	if o.DefaultCover == "" {
		o.DefaultCover = playlist.DefaultCover
	}
	volume := DefaultVolume
	if o.InitialVolume != nil {
		volume = clampPercent(*o.InitialVolume)
	}
	o.InitialVolume = &volume
	return o
}

// Deps are the collaborators. Media and AudioProbe are required; a nil
// CoverProbe always uses the placeholder and a nil Lyrics yields no cues.
type Deps struct {
	Media      media.Handle
	AudioProbe resolver.Probe
	CoverProbe resolver.Probe
	Lyrics     lyrics.Source
	Renderer   Renderer
}

type Controller struct {
	media      media.Handle
	audioProbe resolver.Probe
	coverProbe resolver.Probe
	lyrics     lyrics.Source
	renderer   Renderer
	opts       Options

	inbox chan func()
	done  chan struct{}

	// owned by the loop goroutine
	ctx        context.Context
	loadCtx    context.Context
	cancelLoad context.CancelFunc
	advance    *time.Timer

	playlist   *playlist.Playlist
	state      State
	err        error
	gen        uint64
	wantPlay   bool
	failStreak int

	source   string
	ready    chan error
	awaiting bool
	attached bool
	hasMeta  bool
	position float64
	duration float64

	tracker   *clock.Tracker
	lyricsErr error
	coverURL  string
	coverFall bool

	volume int
	muted  bool
}

func New(deps Deps, opts Options) (*Controller, error) {
	if deps.Media == nil {
		return nil, errors.New("controller needs a media handle")
	}
	if deps.AudioProbe == nil {
		return nil, errors.New("controller needs an audio probe")
	}
	if deps.Renderer == nil {
		deps.Renderer = nopRenderer{}
	}
	opts = opts.withDefaults()

	return &Controller{
		media:      deps.Media,
		audioProbe: deps.AudioProbe,
		coverProbe: deps.CoverProbe,
		lyrics:     deps.Lyrics,
		renderer:   deps.Renderer,
		opts:       opts,
		inbox:      make(chan func(), 16),
		done:       make(chan struct{}),
		playlist:   playlist.New(nil),
		tracker:    clock.NewTracker(),
		volume:     *opts.InitialVolume,
	}, nil
}

// Run owns the controller state until ctx is done. Commands issued before
// Run starts wait for it; commands issued after it returns get ErrStopped.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	c.ctx = ctx
	c.loadCtx, c.cancelLoad = context.WithCancel(ctx)
	defer func() {
		c.cancelLoad()
		c.stopAdvance()
	}()

	if err := c.media.SetVolume(float64(c.volume) / 100); err != nil {
		logger.Warn("initial volume rejected", logger.Err(err))
	}

	events := c.media.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-c.inbox:
			fn()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.handleMediaEvent(ev)
		}
	}
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) call(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case c.inbox <- func() { errc <- fn() }:
	case <-c.done:
		return ErrStopped
	}

	select {
	case err := <-errc:
		return err
	case <-c.done:
		return ErrStopped
	}
}

// post hands fn to the loop from another goroutine. It is dropped when the
// loop has stopped.
func (c *Controller) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.done:
	}
}

// SetPlaylist replaces the tracks. If the current track survives the swap it
// keeps playing; otherwise the first track loads. An empty list goes idle.
func (c *Controller) SetPlaylist(tracks []playlist.Track) error {
	return c.call(func() error {
		prev := c.playlist.Current()
		var keep playlist.Track
		if prev != nil {
			keep = prev.Clone()
		}

		c.playlist = playlist.New(tracks)
		c.failStreak = 0

		if c.playlist.Len() == 0 {
			c.unload()
			c.setState(StateIdle, nil)
			return nil
		}

		if prev != nil && c.state != StateIdle && c.state != StateError {
			if i := c.playlist.IndexOf(&keep); i >= 0 {
				_ = c.playlist.Select(i)
				cur := c.playlist.Current()
				cur.ResolvedAudioURL = keep.ResolvedAudioURL
				cur.ResolvedCoverURL = keep.ResolvedCoverURL
				c.renderer.TrackLoaded(i, cur.Clone())
				return nil
			}
		}

		c.load(0)
		return nil
	})
}

func (c *Controller) SelectTrack(index int) error {
	return c.call(func() error {
		if _, err := c.playlist.At(index); err != nil {
			return err
		}
		c.failStreak = 0
		c.load(index)
		return nil
	})
}

func (c *Controller) Next() error {
	return c.step(1)
}

func (c *Controller) Previous() error {
	return c.step(-1)
}

func (c *Controller) step(delta int) error {
	return c.call(func() error {
		if c.playlist.Len() == 0 {
			return ErrEmptyPlaylist
		}
		c.failStreak = 0
		c.load(c.playlist.Step(delta))
		return nil
	})
}

// Retry reloads the current track from scratch.
func (c *Controller) Retry() error {
	return c.call(func() error {
		if c.playlist.Len() == 0 {
			return ErrEmptyPlaylist
		}
		c.failStreak = 0
		c.load(c.playlist.CurrentIndex())
		return nil
	})
}

func (c *Controller) Play() error {
	return c.call(c.play)
}

func (c *Controller) Pause() error {
	return c.call(c.pause)
}

func (c *Controller) Toggle() error {
	return c.call(func() error {
		if c.state == StatePlaying {
			return c.pause()
		}
		return c.play()
	})
}

// Seek jumps to fraction of the duration, clamped to [0,1].
func (c *Controller) Seek(fraction float64) error {
	return c.call(func() error {
		if !c.attached || !c.hasMeta || c.duration <= 0 {
			return ErrNotSeekable
		}

		fraction = clampFraction(fraction)
		target := fraction * c.duration
		if err := c.media.SetCurrentTime(target); err != nil {
			return fmt.Errorf("seek to %.1fs: %w", target, err)
		}
		c.onTime(target)
		return nil
	})
}

// SetVolume stores percent clamped to [0,100]. Muting does not change it.
func (c *Controller) SetVolume(percent int) error {
	return c.call(func() error {
		c.volume = clampPercent(percent)
		if err := c.media.SetVolume(float64(c.volume) / 100); err != nil {
			return fmt.Errorf("set volume: %w", err)
		}
		return nil
	})
}

func (c *Controller) AdjustVolume(delta int) error {
	return c.call(func() error {
		c.volume = clampPercent(c.volume + delta)
		if err := c.media.SetVolume(float64(c.volume) / 100); err != nil {
			return fmt.Errorf("set volume: %w", err)
		}
		return nil
	})
}

func (c *Controller) SetMuted(muted bool) error {
	return c.call(func() error {
		return c.setMuted(muted)
	})
}

func (c *Controller) ToggleMute() error {
	return c.call(func() error {
		return c.setMuted(!c.muted)
	})
}

// SetSyncOffset shifts lyric timing by seconds; positive shows lines earlier.
func (c *Controller) SetSyncOffset(seconds float64) error {
	return c.call(func() error {
		c.tracker.SetOffset(seconds)
		if c.attached {
			c.onTime(c.position)
		}
		return nil
	})
}

func (c *Controller) AdjustSyncOffset(delta float64) error {
	return c.call(func() error {
		c.tracker.SetOffset(c.tracker.Offset() + delta)
		if c.attached {
			c.onTime(c.position)
		}
		return nil
	})
}

func (c *Controller) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := c.call(func() error {
		snap = Snapshot{
			State:         c.state,
			Err:           c.err,
			Index:         c.playlist.CurrentIndex(),
			Len:           c.playlist.Len(),
			Cues:          c.tracker.Cues(),
			ActiveCue:     c.tracker.Index(),
			LyricsErr:     c.lyricsErr,
			CoverURL:      c.coverURL,
			CoverFallback: c.coverFall,
			Position:      c.position,
			Duration:      c.duration,
			Volume:        c.volume,
			Muted:         c.muted,
			SyncOffset:    c.tracker.Offset(),
			WantPlay:      c.wantPlay,
		}
		if t := c.playlist.Current(); t != nil {
			cp := t.Clone()
			snap.Track = &cp
		}
		return nil
	})
	return snap, err
}

func (c *Controller) play() error {
	switch {
	case c.state == StatePlaying:
		return nil
	case c.state.Playable():
	case c.state == StateError && c.attached:
		// a rejected play leaves the media loaded
	default:
		return fmt.Errorf("%w: play while %s", ErrInvalidState, c.state)
	}

	c.wantPlay = true
	return c.startPlayback()
}

func (c *Controller) startPlayback() error {
	if err := c.media.Play(); err != nil {
		c.wantPlay = false
		e := c.trackError(KindPlaybackRejected, err)
		c.err = e
		c.setState(StateError, e)
		logger.Warn("playback rejected", logger.Err(err))
		return e
	}
	c.err = nil
	c.setState(StatePlaying, nil)
	return nil
}

func (c *Controller) pause() error {
	if !c.state.Playable() {
		return fmt.Errorf("%w: pause while %s", ErrInvalidState, c.state)
	}

	c.wantPlay = false
	if c.state != StatePlaying {
		return nil
	}
	if err := c.media.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	c.setState(StatePaused, nil)
	return nil
}

func (c *Controller) setMuted(muted bool) error {
	c.muted = muted
	if err := c.media.SetMuted(muted); err != nil {
		return fmt.Errorf("set muted: %w", err)
	}
	return nil
}

func (c *Controller) setState(s State, err error) {
	if c.state == s && err == nil && s != StateError {
		return
	}
	logger.Debug("state changed",
		logger.String("from", c.state.String()),
		logger.String("to", s.String()),
		logger.Err(err))
	c.state = s
	c.renderer.StateChanged(s, err)
}

func (c *Controller) trackError(kind Kind, err error) *Error {
	e := &Error{Kind: kind, Index: c.playlist.CurrentIndex(), Err: err}
	if t := c.playlist.Current(); t != nil {
		e.Track = t.DisplayName()
	}
	return e
}

func (c *Controller) handleMediaEvent(ev media.Event) {
	if c.source == "" {
		return
	}

	switch ev.Type {
	case media.EventMetadataReady:
		c.hasMeta = true
		if ev.Duration > 0 {
			c.duration = ev.Duration
		}
		c.signalReady(nil)
		c.renderer.Progress(c.position, c.duration)

	case media.EventCanPlay:
		c.signalReady(nil)

	case media.EventTimeUpdate:
		if c.attached {
			c.onTime(ev.Time)
		}

	case media.EventEnded:
		if !c.attached || !c.state.Playable() {
			return
		}
		logger.Debug("track ended", logger.Int("index", c.playlist.CurrentIndex()))
		c.wantPlay = true
		c.load(c.playlist.Step(1))

	case media.EventError:
		err := ev.Err
		if err == nil {
			err = errors.New("media error")
		}
		if c.awaiting {
			c.signalReady(err)
			return
		}
		if c.attached {
			c.failTrack(KindResourceUnavailable, err, false)
		}
	}
}

func (c *Controller) signalReady(err error) {
	if !c.awaiting {
		return
	}
	select {
	case c.ready <- err:
	default:
	}
}

func (c *Controller) onTime(t float64) {
	c.position = max(t, 0)
	if idx, changed := c.tracker.Update(t); changed {
		c.renderer.ActiveCueChanged(idx)
	}
	c.renderer.Progress(c.position, c.duration)
}

func (c *Controller) stopAdvance() {
	if c.advance != nil {
		c.advance.Stop()
		c.advance = nil
	}
}

func clampPercent(p int) int {
	return max(0, min(100, p))
}

func clampFraction(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return max(0, min(1, f))
}
