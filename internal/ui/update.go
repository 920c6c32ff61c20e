package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyreplay/internal/artwork"
	"karolbroda.com/lyreplay/internal/controller"
	"karolbroda.com/lyreplay/internal/logger"
)

const (
	seekStep   = 0.05
	volumeStep = 5
	offsetStep = 0.1

	artworkTimeout = 10 * time.Second
	statusTTL      = 3 * time.Second
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case TrackLoadedMsg:
		t := msg.Track
		m.display.Track = &t
		m.display.Index = msg.Index
		m.resetForNewTrack()
		m.lyricsLoading = true
		return m, m.listen()

	case CuesLoadedMsg:
		m.lyricsLoading = false
		m.display.Cues = msg.Cues
		m.display.Active = -1
		m.display.PrevIndex = -1
		m.animState.Reset()
		return m, m.listen()

	case ActiveCueMsg:
		m.lineChanged = m.setActive(msg.Index) || m.lineChanged
		return m, m.listen()

	case CoverMsg:
		m.display.CoverURL = msg.URL
		m.display.Image = nil
		m.display.Palette = artwork.DefaultPalette()
		return m, tea.Batch(m.listen(), m.fetchArtworkCmd(msg.URL))

	case StateMsg:
		m.state = msg.State
		m.err = msg.Err
		return m, m.listen()

	case ProgressMsg:
		m.position = msg.Current
		m.duration = msg.Duration
		return m, m.listen()

	case PlaylistMsg:
		m.display.Total = msg.Total
		m.setStatus(fmt.Sprintf("playlist reloaded, %d tracks", msg.Total))
		return m, nil

	case ArtworkFetchedMsg:
		return m.handleArtworkFetched(msg)

	case CommandDoneMsg:
		return m.handleCommandDone(msg)

	case TickMsg:
		return m.handleTick()
	}

	return m, nil
}

func (m Model) listen() tea.Cmd {
	if m.bridge == nil {
		return nil
	}
	return m.bridge.Listen()
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		if m.bridge != nil {
			m.bridge.Close()
		}
		return m, tea.Quit

	case "tab", "i":
		m.hideHeader = !m.hideHeader
		return m, nil
	}

	if m.controls == nil {
		return m, nil
	}

	switch msg.String() {
	case " ", "space":
		return m, m.command("toggle", false, m.controls.Toggle)

	case "n":
		return m, m.command("next", false, m.controls.Next)

	case "p":
		return m, m.command("previous", false, m.controls.Previous)

	case "r":
		return m, m.command("retry", false, m.controls.Retry)

	case "left", "h":
		return m, m.seekBy(-seekStep)

	case "right", "l":
		return m, m.seekBy(seekStep)

	case "+", "=":
		return m, m.command("volume", true, func() error { return m.controls.AdjustVolume(volumeStep) })

	case "-", "_":
		return m, m.command("volume", true, func() error { return m.controls.AdjustVolume(-volumeStep) })

	case "m":
		return m, m.command("mute", true, m.controls.ToggleMute)

	case "up", "k":
		return m, m.command("sync offset", true, func() error { return m.controls.AdjustSyncOffset(offsetStep) })

	case "down", "j":
		return m, m.command("sync offset", true, func() error { return m.controls.AdjustSyncOffset(-offsetStep) })

	case "0":
		return m, m.command("sync offset", true, func() error { return m.controls.SetSyncOffset(0) })
	}

	return m, nil
}

func (m Model) seekBy(delta float64) tea.Cmd {
	if m.duration <= 0 {
		return m.command("seek", false, func() error { return controller.ErrNotSeekable })
	}
	target := (m.position / m.duration) + delta
	return m.command("seek", false, func() error { return m.controls.Seek(target) })
}

// command runs fn off the update loop. With settings set, the reply carries a
// snapshot so the status line reflects the controller's clamped values.
func (m Model) command(action string, settings bool, fn func() error) tea.Cmd {
	controls := m.controls
	return func() tea.Msg {
		done := CommandDoneMsg{Action: action, Err: fn()}
		if settings && done.Err == nil {
			if snap, err := controls.Snapshot(); err == nil {
				done.Settings = &snap
			}
		}
		return done
	}
}

func (m Model) handleCommandDone(msg CommandDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Settings != nil {
		m.volume = msg.Settings.Volume
		m.muted = msg.Settings.Muted
		m.offset = msg.Settings.SyncOffset
	}

	if msg.Err == nil {
		switch msg.Action {
		case "volume", "mute":
			if m.muted {
				m.setStatus("muted")
			} else {
				m.setStatus(fmt.Sprintf("volume %d%%", m.volume))
			}
		case "sync offset":
			m.setStatus(fmt.Sprintf("offset %+.1fs", m.offset))
		}
		return m, nil
	}

	switch {
	case errors.Is(msg.Err, controller.ErrStopped):
		return m, nil
	case errors.Is(msg.Err, controller.ErrNotSeekable):
		m.setStatus("not seekable yet")
	case errors.Is(msg.Err, controller.ErrInvalidState):
		m.setStatus(msg.Action + " unavailable")
	default:
		logger.Debug("command failed", logger.String("action", msg.Action), logger.Err(msg.Err))
		m.setStatus(msg.Action + ": " + msg.Err.Error())
	}
	return m, nil
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusAt = time.Now()
}

func (m Model) handleArtworkFetched(msg ArtworkFetchedMsg) (tea.Model, tea.Cmd) {
	// a newer cover superseded this one
	if msg.URL != m.display.CoverURL {
		return m, nil
	}

	if msg.Err != nil {
		if !errors.Is(msg.Err, artwork.ErrVector) {
			logger.Debug("artwork unavailable", logger.String("url", msg.URL), logger.Err(msg.Err))
		}
		m.display.Image = nil
		m.display.Palette = artwork.DefaultPalette()
		return m, nil
	}

	m.display.Image = msg.Image
	if msg.Palette != nil {
		m.display.Palette = msg.Palette
	}
	return m, nil
}

func (m Model) handleTick() (tea.Model, tea.Cmd) {
	m.tickCount++

	m.animState.Update(m.tickCount, m.lineChanged, 8)
	m.lineChanged = false

	if m.status != "" && time.Since(m.statusAt) > statusTTL {
		m.status = ""
	}

	return m, tickCmd()
}

func (m Model) fetchArtworkCmd(url string) tea.Cmd {
	if m.artwork == nil || url == "" {
		return nil
	}
	opener := m.artwork
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), artworkTimeout)
		defer cancel()

		img, err := artwork.Fetch(ctx, opener, url)
		if err != nil {
			return ArtworkFetchedMsg{URL: url, Err: err}
		}
		return ArtworkFetchedMsg{
			URL:     url,
			Image:   img,
			Palette: artwork.ExtractPalette(img),
		}
	}
}
