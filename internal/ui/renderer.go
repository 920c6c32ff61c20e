package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"karolbroda.com/lyreplay/internal/artwork"
)

const (
	lyricMargin   = 8
	minWrapWidth  = 10
	revealSpread  = 0.8
	minFocusLight = 0.06
)

// LyricStyler colours cue text for the lyric pane. The focus line gets the
// palette gradient with the current glow; context lines fade to grey by
// distance from the focus.
type LyricStyler struct {
	palette *artwork.Palette
	anim    *AnimState
	width   int
}

func NewLyricStyler(palette *artwork.Palette, anim *AnimState, width int) *LyricStyler {
	if palette == nil {
		palette = artwork.DefaultPalette()
	}
	if anim == nil {
		anim = &AnimState{}
	}
	return &LyricStyler{palette: palette, anim: anim, width: width}
}

func (r *LyricStyler) Focus(text string) []string {
	lines := r.wrap(text)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, r.center(r.focusLine(line), lipgloss.Width(line)))
	}
	return out
}

func (r *LyricStyler) Context(text string, brightness float64, past bool) []string {
	grey := int(clamp(200*brightness, 60, 200))
	if past {
		grey = int(float64(grey) * 0.85)
	}
	c := artwork.RGB{R: uint8(grey), G: uint8(grey), B: uint8(grey)}
	tint := artwork.Blend(c.Hex(), r.palette.Dim, 0.25)
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(tint))

	lines := r.wrap(text)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, r.center(style.Render(line), lipgloss.Width(line)))
	}
	return out
}

func (r *LyricStyler) focusLine(line string) string {
	runes := []rune(line)
	n := len(runes)
	if n == 0 {
		return ""
	}

	reveal := easeOutQuart(r.anim.Reveal)
	wave := 0.03
	if n > 20 {
		wave = revealSpread / float64(n)
	}

	var b strings.Builder
	for i, ch := range runes {
		if ch == ' ' {
			b.WriteRune(ch)
			continue
		}

		pos := 0.0
		if n > 1 {
			pos = float64(i) / float64(n-1)
		}
		c := r.gradientAt(pos)

		if r.anim.Glow > 0.05 {
			c = artwork.Glow(c, r.anim.Glow*0.5)
		}
		if s := math.Sin(r.anim.Shimmer + float64(i)*0.3); s > 0 {
			c = artwork.Glow(c, s*0.12)
		}

		t := 1.0
		if r.anim.Reveal < 1 {
			t = easeOutCubic(reveal - float64(i)*wave)
		}
		c = artwork.Blend("#000000", c, math.Max(t, minFocusLight))

		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Bold(true).Render(string(ch)))
	}
	return b.String()
}

func (r *LyricStyler) gradientAt(pos float64) string {
	g := r.palette.Gradient
	if len(g) < 2 {
		return artwork.Blend(r.palette.Primary, r.palette.Accent, pos)
	}
	return g[int(math.Round(pos*float64(len(g)-1)))]
}

// wrap breaks text on spaces by display width. Runs without spaces, as in
// CJK lyrics, are split by rune.
func (r *LyricStyler) wrap(text string) []string {
	limit := max(r.width-lyricMargin, minWrapWidth)

	var (
		lines []string
		cur   strings.Builder
		curW  int
	)
	flush := func() {
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
		}
		cur.Reset()
		curW = 0
	}

	for _, word := range strings.Fields(text) {
		w := lipgloss.Width(word)
		if curW > 0 && curW+1+w <= limit {
			cur.WriteByte(' ')
			cur.WriteString(word)
			curW += 1 + w
			continue
		}
		if curW > 0 {
			flush()
		}
		if w <= limit {
			cur.WriteString(word)
			curW = w
			continue
		}
		for _, ch := range word {
			cw := lipgloss.Width(string(ch))
			if curW+cw > limit {
				flush()
			}
			cur.WriteRune(ch)
			curW += cw
		}
	}
	flush()
	return lines
}

func (r *LyricStyler) center(s string, visual int) string {
	return centerText(s, visual, r.width)
}
