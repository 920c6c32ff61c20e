package ui

import (
	"image"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyreplay/internal/artwork"
	"karolbroda.com/lyreplay/internal/config"
	"karolbroda.com/lyreplay/internal/controller"
	"karolbroda.com/lyreplay/internal/lyrics"
	"karolbroda.com/lyreplay/internal/playlist"
	"karolbroda.com/lyreplay/internal/terminal"
)

// Controls is what the keyboard drives. *controller.Controller satisfies it.
// Every call blocks on the controller loop, so the model only ever makes
// them inside a tea.Cmd.
type Controls interface {
	Toggle() error
	Next() error
	Previous() error
	Seek(fraction float64) error
	AdjustVolume(delta int) error
	ToggleMute() error
	Retry() error
	AdjustSyncOffset(delta float64) error
	SetSyncOffset(seconds float64) error
	Snapshot() (controller.Snapshot, error)
}

type TickMsg time.Time

type ArtworkFetchedMsg struct {
	URL     string
	Image   image.Image
	Palette *artwork.Palette
	Err     error
}

// CommandDoneMsg reports a keyboard command. Settings carries a fresh
// snapshot for commands that change volume, mute or sync offset.
type CommandDoneMsg struct {
	Action   string
	Err      error
	Settings *controller.Snapshot
}

type TrackDisplay struct {
	Track     *playlist.Track
	Index     int
	Total     int
	Image     image.Image
	Palette   *artwork.Palette
	CoverURL  string
	Cues      []lyrics.Cue
	Active    int
	PrevIndex int
}

type Model struct {
	controls   Controls
	bridge     *Bridge
	artwork    artwork.Opener
	termCaps   terminal.Capabilities
	hideHeader bool

	display  TrackDisplay
	state    controller.State
	err      error
	status   string
	statusAt time.Time
	position float64
	duration float64
	volume   int
	muted    bool
	offset   float64

	quitting       bool
	width          int
	height         int
	lastLineChange time.Time
	lineChanged    bool
	lyricsLoading  bool
	tickCount      int
	animState      AnimState
}

type ModelConfig struct {
	Controls   Controls
	Bridge     *Bridge
	Artwork    artwork.Opener
	TermCaps   terminal.Capabilities
	HideHeader bool
	Total      int
	Volume     int
	SyncOffset float64
}

func NewModel(cfg ModelConfig) Model {
	m := Model{
		controls:       cfg.Controls,
		bridge:         cfg.Bridge,
		artwork:        cfg.Artwork,
		termCaps:       cfg.TermCaps,
		hideHeader:     cfg.HideHeader,
		volume:         cfg.Volume,
		offset:         cfg.SyncOffset,
		lastLineChange: time.Now(),
	}

	m.display.Total = cfg.Total
	m.display.Active = -1
	m.display.PrevIndex = -1
	m.display.Palette = artwork.DefaultPalette()

	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd()}
	if m.bridge != nil {
		cmds = append(cmds, m.bridge.Listen())
	}
	return tea.Batch(cmds...)
}

func tickCmd() tea.Cmd {
	return tea.Tick(config.PollInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m *Model) resetForNewTrack() {
	m.display.Cues = nil
	m.display.Active = -1
	m.display.PrevIndex = -1
	m.display.Image = nil
	m.display.CoverURL = ""
	m.display.Palette = artwork.DefaultPalette()
	m.position = 0
	m.duration = 0
	m.err = nil
	m.lastLineChange = time.Now()
	m.animState.Reset()
}

func (m *Model) setActive(idx int) bool {
	if idx == m.display.Active {
		return false
	}
	m.display.PrevIndex = m.display.Active
	m.display.Active = idx
	m.lastLineChange = time.Now()
	m.animState.TargetScrollY = float64(max(idx, 0))
	return true
}

func (m Model) Width() int  { return m.width }
func (m Model) Height() int { return m.height }

func (m Model) Track() *playlist.Track         { return m.display.Track }
func (m Model) State() controller.State        { return m.state }
func (m Model) Err() error                     { return m.err }
func (m Model) Status() string                 { return m.status }
func (m Model) Position() float64              { return m.position }
func (m Model) Duration() float64              { return m.duration }
func (m Model) Volume() int                    { return m.volume }
func (m Model) Muted() bool                    { return m.muted }
func (m Model) SyncOffset() float64            { return m.offset }
func (m Model) Cues() []lyrics.Cue             { return m.display.Cues }
func (m Model) ActiveIndex() int               { return m.display.Active }
func (m Model) Palette() *artwork.Palette      { return m.display.Palette }
func (m Model) HideHeader() bool               { return m.hideHeader }
func (m Model) IsQuitting() bool               { return m.quitting }
func (m Model) LastLineChange() time.Time      { return m.lastLineChange }
func (m Model) AnimState() *AnimState          { return &m.animState }
func (m Model) TrackIndex() (index, total int) { return m.display.Index, m.display.Total }
