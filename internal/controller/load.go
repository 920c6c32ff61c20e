package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"karolbroda.com/lyreplay/internal/logger"
	"karolbroda.com/lyreplay/internal/lyrics"
	"karolbroda.com/lyreplay/internal/playlist"
	"karolbroda.com/lyreplay/internal/resolver"
	"karolbroda.com/lyreplay/internal/task"
)

// load selects index and starts the three independent load branches. Every
// completion carries the generation it was started under; anything older
// than c.gen is dropped.
func (c *Controller) load(index int) {
	c.unload()

	if err := c.playlist.Select(index); err != nil {
		logger.Error("load out of range", logger.Int("index", index), logger.Err(err))
		return
	}

	c.gen++
	gen := c.gen

	t := c.playlist.Current()
	t.ClearResolved()
	c.err = nil
	c.lyricsErr = nil
	c.coverURL = ""
	c.coverFall = false
	c.tracker.SetCues(nil)

	logger.Info("loading track",
		logger.Int("index", index),
		logger.String("track", t.DisplayName()),
		logger.Uint64("gen", gen))

	c.renderer.TrackLoaded(index, t.Clone())
	c.renderer.CuesLoaded(nil)
	c.renderer.ActiveCueChanged(-1)
	c.setState(StateLoading, nil)

	ctx := c.loadCtx
	snapshot := t.Clone()

	go c.resolveAudio(ctx, gen, snapshot)
	go c.fetchLyrics(ctx, gen, snapshot)
	go c.resolveCover(ctx, gen, snapshot)
}

// unload cancels in-flight work and releases the media source.
func (c *Controller) unload() {
	c.stopAdvance()
	c.cancelLoad()
	c.loadCtx, c.cancelLoad = context.WithCancel(c.ctx)

	c.gen++
	c.awaiting = false
	c.attached = false
	c.hasMeta = false
	c.position = 0
	c.duration = 0

	if c.source != "" {
		c.source = ""
		if err := c.media.SetSource(""); err != nil {
			logger.Debug("release media source", logger.Err(err))
		}
	}
}

func (c *Controller) resolveAudio(ctx context.Context, gen uint64, t playlist.Track) {
	url, err := resolver.Resolve(ctx, t.AudioCandidates, c.audioProbe, c.opts.ProbeTimeout)
	c.post(func() { c.audioResolved(gen, url, err) })
}

func (c *Controller) audioResolved(gen uint64, url string, err error) {
	if gen != c.gen {
		return
	}
	if err != nil {
		c.failTrack(KindResourceUnavailable, err, true)
		return
	}

	c.playlist.Current().ResolvedAudioURL = url
	logger.Info("audio resolved", logger.String("url", url))

	ready := make(chan error, 1)
	c.ready = ready
	c.awaiting = true
	c.source = url

	if err := c.media.SetSource(url); err != nil {
		c.failTrack(KindResourceUnavailable, fmt.Errorf("set source: %w", err), true)
		return
	}

	task.Go(c.loadCtx, c.opts.ReadyTimeout, task.Await(ready), func(res task.Result[struct{}]) {
		c.post(func() { c.audioSettled(gen, res) })
	})
}

func (c *Controller) audioSettled(gen uint64, res task.Result[struct{}]) {
	if gen != c.gen {
		return
	}
	c.awaiting = false

	if !res.OK() {
		err := res.Err
		if res.Outcome == task.Timeout {
			err = fmt.Errorf("not ready after %s: %w", c.opts.ReadyTimeout, res.Err)
		}
		c.failTrack(KindResourceUnavailable, err, true)
		return
	}

	c.attached = true
	c.failStreak = 0
	c.setState(StateReady, nil)
	c.renderer.Progress(c.position, c.duration)

	if c.wantPlay {
		_ = c.startPlayback()
	}
}

func (c *Controller) fetchLyrics(ctx context.Context, gen uint64, t playlist.Track) {
	if c.lyrics == nil {
		c.post(func() { c.lyricsLoaded(gen, lyrics.Document{}, lyrics.ErrNoLyrics) })
		return
	}

	res := task.Run(ctx, c.opts.FetchTimeout, func(ctx context.Context) (lyrics.Document, error) {
		raw, err := c.lyrics.Lyrics(ctx, t.LyricsQuery())
		if err != nil {
			return lyrics.Document{}, err
		}
		return lyrics.ParseDocument(raw), nil
	})
	c.post(func() { c.lyricsLoaded(gen, res.Value, res.Err) })
}

func (c *Controller) lyricsLoaded(gen uint64, doc lyrics.Document, err error) {
	if gen != c.gen {
		return
	}

	if err == nil && len(doc.Cues) == 0 {
		err = errors.New("no timed lines")
	}
	if err != nil {
		c.lyricsErr = c.trackError(KindParseDegraded, err)
		logger.Warn("lyrics unavailable", logger.Err(c.lyricsErr))
		doc.Cues = nil
	}

	c.tracker.SetCues(doc.Cues)
	c.renderer.CuesLoaded(doc.Cues)
	if c.attached {
		c.onTime(c.position)
	}
}

func (c *Controller) resolveCover(ctx context.Context, gen uint64, t playlist.Track) {
	var (
		url string
		err error = resolver.ErrNotFound
	)
	if c.coverProbe != nil {
		url, err = resolver.Resolve(ctx, t.CoverCandidates, c.coverProbe, c.opts.ProbeTimeout)
	}
	c.post(func() { c.coverResolved(gen, url, err) })
}

func (c *Controller) coverResolved(gen uint64, url string, err error) {
	if gen != c.gen {
		return
	}

	t := c.playlist.Current()
	fallback := err != nil
	if fallback {
		url = t.FallbackCover
		if url == "" {
			url = c.opts.DefaultCover
		}
		logger.Debug("cover fallback", logger.String("url", url), logger.Err(err))
	}

	t.ResolvedCoverURL = url
	c.coverURL = url
	c.coverFall = fallback
	c.renderer.CoverResolved(url, fallback)
}

// failTrack puts the current track into Error and schedules one advance.
// Counted failures accumulate across auto-advances; once every track has
// failed in a row the controller stops advancing.
func (c *Controller) failTrack(kind Kind, err error, counted bool) {
	c.unload()

	e := c.trackError(kind, err)
	logger.Warn("track failed", logger.Err(e))

	if counted {
		c.failStreak++
	}
	if c.failStreak >= c.playlist.Len() {
		c.err = &Error{Kind: kind, Index: -1, Err: fmt.Errorf("%w: %d tracks tried: %w", ErrNoPlayableTracks, c.failStreak, e)}
		logger.Error("giving up on playlist", logger.Err(c.err))
		c.setState(StateError, c.err)
		return
	}

	c.err = e
	c.setState(StateError, e)
	c.scheduleAdvance()
}

func (c *Controller) scheduleAdvance() {
	gen := c.gen
	c.advance = time.AfterFunc(c.opts.AdvanceDelay, func() {
		c.post(func() {
			if gen != c.gen || c.state != StateError {
				return
			}
			c.load(c.playlist.Step(1))
		})
	})
}
