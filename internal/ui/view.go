package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"karolbroda.com/lyreplay/internal/artwork"
	"karolbroda.com/lyreplay/internal/controller"
	"karolbroda.com/lyreplay/internal/terminal"
)

const errorColor = "#FF6B6B"

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	width, height := m.width, m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	palette := m.display.Palette
	if palette == nil {
		palette = artwork.DefaultPalette()
	}

	var lines []string
	if m.display.Track == nil {
		lines = m.renderWaitingScreen(palette, width, height)
	} else {
		lines = m.renderMainScreen(palette, width, height)
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines[:height], "\n")
}

func (m Model) renderWaitingScreen(palette *artwork.Palette, width, height int) []string {
	lines := make([]string, max(height/2-1, 0), height)

	if m.state == controller.StateError && m.err != nil {
		return append(lines, m.renderError(m.err, width))
	}

	text := "awaiting playlist"
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Italic(true)
	lines = append(lines, centerText(style.Render(text), len(text), width))

	pulse := []string{"·", "•", "●", "•"}
	dot := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary))
	return append(lines, centerText(dot.Render(pulse[(m.tickCount/4)%len(pulse)]), 1, width))
}

func (m Model) renderMainScreen(palette *artwork.Palette, width, height int) []string {
	var lines []string
	if !m.hideHeader {
		lines = append(lines, m.renderHeader(palette, width)...)
	}

	rest := max(height-len(lines), 0)

	switch {
	case m.state == controller.StateError && m.err != nil:
		lines = append(lines, m.renderErrorSection(rest, width)...)
	case len(m.display.Cues) > 0:
		lines = append(lines, m.renderLyrics(palette, rest, width)...)
	default:
		lines = append(lines, m.renderNoLyrics(palette, rest, width)...)
	}
	return lines
}

func (m Model) renderHeader(palette *artwork.Palette, width int) []string {
	lines := []string{""}

	artW, artH := 12, 6
	if width < 80 {
		artW, artH = 8, 4
	}
	if width < 50 || (m.height > 0 && m.height < 25) {
		artW, artH = 0, 0
	}

	info := m.renderTrackInfo(palette, width)

	kitty := ""
	if m.termCaps.KittyGraphics && artW > 0 && m.display.Image != nil {
		kitty = terminal.EncodeKitty(m.display.Image, artW, artH)
	}

	if kitty != "" {
		lines = append(lines, "  "+kitty)
		for i := 0; i < artH-1; i++ {
			lines = append(lines, "")
		}
		for _, l := range info {
			lines = append(lines, "  "+l)
		}
	} else {
		var art []string
		if artW > 0 {
			art = artwork.RenderHalfBlock(m.display.Image, artW, artH)
		}
		rows := max(len(info), len(art))
		for i := 0; i < rows; i++ {
			var b strings.Builder
			if artW > 0 {
				b.WriteString("  ")
				if i < len(art) {
					b.WriteString(art[i])
				} else {
					b.WriteString(strings.Repeat(" ", artW))
				}
				b.WriteString("  ")
			}
			if i < len(info) {
				b.WriteString(info[i])
			}
			lines = append(lines, b.String())
		}
	}

	lines = append(lines, "")
	if m.duration > 0 {
		lines = append(lines, m.renderProgress(palette, width))
	}
	lines = append(lines, m.renderStatusLine(palette), "")
	return lines
}

func (m Model) renderTrackInfo(palette *artwork.Palette, width int) []string {
	t := m.display.Track
	if t == nil {
		return nil
	}

	limit := max(width-20, 20)

	lines := []string{
		lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Primary)).Bold(true).Render(truncate(t.Title, limit)),
		lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary)).Render(truncate(t.Artist, limit)),
	}
	if t.Album != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Render(truncate(t.Album, limit)))
	}
	return lines
}

func (m Model) renderProgress(palette *artwork.Palette, width int) string {
	barWidth := max(width-20, 20)
	frac := clamp(m.position/m.duration, 0, 1)
	filled := int(float64(barWidth) * frac)

	fill := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Primary))
	empty := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Faint(true)

	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filled:
			bar.WriteString(fill.Render("━"))
		case i == filled:
			bar.WriteString(fill.Render("●"))
		default:
			bar.WriteString(empty.Render("─"))
		}
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))
	return fmt.Sprintf("  %s  %s  %s", dim.Render(formatClock(m.position)), bar.String(), dim.Render(formatClock(m.duration)))
}

// renderStatusLine shows state, position in the playlist, volume and sync
// offset, or a transient message after a keypress.
func (m Model) renderStatusLine(palette *artwork.Palette) string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	vol := fmt.Sprintf("vol %d%%", m.volume)
	if m.muted {
		vol = "muted"
	}

	parts := []string{
		m.state.String(),
		fmt.Sprintf("%d/%d", m.display.Index+1, m.display.Total),
		vol,
	}
	if m.offset != 0 {
		parts = append(parts, fmt.Sprintf("offset %+.1fs", m.offset))
	}

	line := "  " + dim.Render(strings.Join(parts, " · "))
	if m.status != "" {
		line += "  " + lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Accent)).Render(m.status)
	}
	return line
}

func (m Model) renderLyrics(palette *artwork.Palette, height, width int) []string {
	out := make([]string, height)
	if height == 0 {
		return out
	}

	styler := NewLyricStyler(palette, &m.animState, width)
	active := m.display.Active
	slide := m.animState.SlideOffset()

	around := 2
	if height < 20 {
		around = 1
	}

	type block struct {
		lines []string
		focus bool
	}

	// before the first cue the pane previews what is coming
	focusIdx := active
	if focusIdx < 0 {
		focusIdx = 0
	}

	var blocks []block
	focusAt := 0
	for off := -around - 1; off <= around+1; off++ {
		idx := focusIdx + off
		if idx < 0 || idx >= len(m.display.Cues) {
			continue
		}

		text := m.display.Cues[idx].Text
		if strings.TrimSpace(text) == "" {
			text = "···"
		}

		var lines []string
		focus := off == 0 && active >= 0
		switch {
		case focus:
			lines = styler.Focus(text)
			focusAt = len(blocks)
		case off == 0:
			lines = styler.Context(text, 0.6, false)
			focusAt = len(blocks)
		default:
			dist := off
			if dist < 0 {
				dist = -dist
			}
			brightness := clamp(0.5-float64(dist-1)*0.1, 0.3, 1)
			if off == -1 && slide < 1 {
				brightness = lerp(0.7, 0.4, slide)
			} else if off == 1 && slide < 1 {
				brightness = lerp(0.35, 0.5, slide)
			}
			lines = styler.Context(text, brightness, off < 0)
		}
		blocks = append(blocks, block{lines: lines, focus: focus})
	}

	if len(blocks) == 0 {
		return out
	}

	const spacing = 1
	focusH := len(blocks[focusAt].lines)
	centerY := max((height-focusH)/2, 0)

	pos := make([]int, len(blocks))
	pos[focusAt] = centerY
	y := centerY
	for i := focusAt - 1; i >= 0; i-- {
		y -= len(blocks[i].lines) + spacing
		pos[i] = y
	}
	y = centerY + focusH + spacing
	for i := focusAt + 1; i < len(blocks); i++ {
		pos[i] = y
		y += len(blocks[i].lines) + spacing
	}

	// lines ease up into place after a change
	shift := int((1 - slide) * float64(focusH+spacing))

	for _, pass := range []bool{false, true} {
		for i, b := range blocks {
			if b.focus != pass {
				continue
			}
			for j, line := range b.lines {
				row := pos[i] + shift + j
				if row >= 0 && row < height && (out[row] == "" || b.focus) {
					out[row] = line
				}
			}
		}
	}
	return out
}

func (m Model) renderNoLyrics(palette *artwork.Palette, height, width int) []string {
	lines := make([]string, max(height/2-1, 0), height)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	if m.lyricsLoading {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		spin := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary)).Render(frames[m.tickCount%len(frames)])
		return append(lines, centerText(spin+dim.Render(" loading"), 9, width))
	}

	text := "♪ no synced lyrics"
	return append(lines, centerText(dim.Render(text), lipgloss.Width(text), width))
}

func (m Model) renderErrorSection(height, width int) []string {
	lines := make([]string, max(height/2-1, 0), height)
	lines = append(lines, m.renderError(m.err, width))

	if !errors.Is(m.err, controller.ErrNoPlayableTracks) && controller.KindOf(m.err) != controller.KindPlaybackRejected {
		return lines
	}

	hint := "press r to retry"
	if controller.KindOf(m.err) == controller.KindPlaybackRejected {
		hint = "press space to play"
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	return append(lines, "", centerText(style.Render(hint), len(hint), width))
}

func (m Model) renderError(err error, width int) string {
	text := truncate(err.Error(), max(width-4, 10))
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(errorColor))
	return centerText(style.Render(text), lipgloss.Width(text), width)
}

func centerText(text string, visual, screen int) string {
	return strings.Repeat(" ", max((screen-visual)/2, 0)) + text
}

func truncate(s string, limit int) string {
	if lipgloss.Width(s) <= limit {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

func formatClock(seconds float64) string {
	s := int(max(seconds, 0))
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
