// Package artwork turns a resolved cover into something a terminal can show:
// a colour palette for theming and half-block pixel art.
package artwork

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/charmbracelet/lipgloss"
	"github.com/nfnt/resize"

	"karolbroda.com/lyreplay/internal/httpclient"
)

// ErrVector is returned for covers that cannot be rasterised, such as the
// default SVG placeholder.
var ErrVector = errors.New("vector artwork not rendered")

const gradientSteps = 20

type Palette struct {
	Primary   string
	Secondary string
	Accent    string
	Dim       string
	Gradient  []string
}

type Opener interface {
	Open(ctx context.Context, location string, header http.Header) (*httpclient.Body, error)
}

func Fetch(ctx context.Context, client Opener, location string) (image.Image, error) {
	if location == "" {
		return nil, errors.New("empty artwork location")
	}
	if isVector(location) {
		return nil, ErrVector
	}

	body, err := client.Open(ctx, location, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch artwork: %w", err)
	}
	defer body.Close()

	if strings.Contains(body.ContentType, "svg") {
		return nil, ErrVector
	}

	img, _, err := image.Decode(io.LimitReader(body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("decode artwork: %w", err)
	}
	return img, nil
}

func isVector(location string) bool {
	l := strings.ToLower(location)
	if i := strings.IndexAny(l, "?#"); i >= 0 && !strings.HasPrefix(l, "data:") {
		l = l[:i]
	}
	return strings.HasSuffix(l, ".svg") || strings.HasPrefix(l, "data:image/svg")
}

func DefaultPalette() *Palette {
	return &Palette{
		Primary:   "#8BA4E8",
		Secondary: "#E8A4C8",
		Accent:    "#B8A8E8",
		Dim:       "#6272A4",
		Gradient:  Gradient("#8BA4E8", "#E8A4C8", gradientSteps),
	}
}

type swatch struct {
	color RGB
	sat   float64
	val   float64
}

// ExtractPalette picks three vivid, mid-bright colours out of img. Images
// too flat to yield three clusters fall back to the default palette.
func ExtractPalette(img image.Image) *Palette {
	if img == nil {
		return DefaultPalette()
	}

	items, err := prominentcolor.KmeansWithAll(5, img, prominentcolor.ArgumentDefault, prominentcolor.DefaultSize, nil)
	if err != nil || len(items) < 3 {
		return DefaultPalette()
	}

	swatches := make([]swatch, len(items))
	for i, it := range items {
		c := RGB{R: uint8(it.Color.R), G: uint8(it.Color.G), B: uint8(it.Color.B)}
		sat, val := c.hsv()
		swatches[i] = swatch{color: c, sat: sat, val: val}
	}

	primary := pick(swatches, nil, func(s swatch) float64 {
		if s.val <= 0.3 || s.sat <= 0.2 {
			return -1
		}
		return s.sat * (1 - math.Abs(s.val-0.6))
	})
	secondary := pick(swatches, []RGB{primary.color}, func(s swatch) float64 {
		if s.sat <= 0.15 || s.val <= 0.3 {
			return -1
		}
		return 1
	})
	accent := pick(swatches, []RGB{primary.color, secondary.color}, func(s swatch) float64 {
		if s.sat <= 0.1 || s.val <= 0.25 {
			return -1
		}
		return 1
	})

	chosen := []swatch{primary, secondary, accent}
	sort.SliceStable(chosen, func(i, j int) bool { return chosen[i].val > chosen[j].val })

	p := &Palette{
		Primary:   normalise(chosen[0]).Hex(),
		Accent:    normalise(chosen[1]).Hex(),
		Secondary: normalise(chosen[2]).Hex(),
		Dim:       "#6272A4",
	}
	start, end := smoothestPair(p.Primary, p.Secondary, p.Accent)
	p.Gradient = Gradient(start, end, gradientSteps)
	return p
}

// pick returns the first best-scoring swatch not in exclude. A score < 0
// disqualifies; with nothing qualifying the zero swatch is returned.
func pick(swatches []swatch, exclude []RGB, score func(swatch) float64) swatch {
	var best swatch
	bestScore := -1.0
	for _, s := range swatches {
		excluded := false
		for _, e := range exclude {
			if s.color == e {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		if sc := score(s); sc > bestScore {
			best, bestScore = s, sc
		}
	}
	return best
}

// normalise lifts very dark colours and mutes near-white ones so they read
// on a dark terminal.
func normalise(s swatch) RGB {
	c := s.color
	if s.val > 0 && s.val < 0.4 {
		c = c.Scale(min(0.4/s.val, 2.5))
	}
	if s.val > 0.85 {
		avg := (float64(c.R) + float64(c.G) + float64(c.B)) / 3
		mute := func(v uint8) uint8 { return uint8(avg + (float64(v)-avg)*0.7) }
		c = RGB{R: mute(c.R), G: mute(c.G), B: mute(c.B)}
	}
	return c
}

// smoothestPair chooses the ordered pair with the least banding, preferring a
// brighter start when two pairs are nearly as smooth.
func smoothestPair(colors ...string) (string, string) {
	type pair struct {
		start, end string
		rough      float64
	}

	var pairs []pair
	for i, a := range colors {
		for j, b := range colors {
			if i != j {
				pairs = append(pairs, pair{a, b, Roughness(a, b, gradientSteps)})
			}
		}
	}

	best := 0
	for i := range pairs {
		if pairs[i].rough < pairs[best].rough {
			best = i
		}
	}
	for i := range pairs {
		if i != best && pairs[i].rough-pairs[best].rough < 5 &&
			mustHex(pairs[i].start).Lightness() > mustHex(pairs[best].start).Lightness() {
			best = i
		}
	}
	return pairs[best].start, pairs[best].end
}

// RenderHalfBlock draws img as width x height cells, two pixels per cell
// using the upper-half block with separate fore and background colours.
func RenderHalfBlock(img image.Image, width, height int) []string {
	if img == nil || width < 4 || height < 2 {
		return nil
	}

	scaled := resize.Resize(uint(width), uint(height*2), img, resize.Lanczos3)
	b := scaled.Bounds()

	lines := make([]string, height)
	for row := 0; row < height; row++ {
		var sb strings.Builder
		for x := 0; x < b.Dx(); x++ {
			top := sample(scaled, b.Min.X+x, b.Min.Y+row*2)
			bottom := top
			if row*2+1 < b.Dy() {
				bottom = sample(scaled, b.Min.X+x, b.Min.Y+row*2+1)
			}

			if top.a < 128 && bottom.a < 128 {
				sb.WriteByte(' ')
				continue
			}

			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top.RGB.Hex())).
				Background(lipgloss.Color(bottom.RGB.Hex())).
				Render("▀"))
		}
		lines[row] = sb.String()
	}
	return lines
}

type pixel struct {
	RGB
	a uint8
}

func sample(img image.Image, x, y int) pixel {
	r, g, b, a := img.At(x, y).RGBA()
	return pixel{RGB: RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}, a: uint8(a >> 8)}
}
