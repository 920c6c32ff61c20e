package artwork

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RGB is an 8-bit sRGB colour.
type RGB struct {
	R, G, B uint8
}

func ParseHex(hex string) (RGB, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("invalid hex colour %q", hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid hex colour %q: %w", hex, err)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func mustHex(hex string) RGB {
	c, err := ParseHex(hex)
	if err != nil {
		return RGB{R: 255, G: 255, B: 255}
	}
	return c
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Lightness is the perceived lightness on a 0-100 scale (CIE L*).
func (c RGB) Lightness() float64 {
	y := 0.2126*linear(c.R) + 0.7152*linear(c.G) + 0.0722*linear(c.B)
	if y <= 216.0/24389.0 {
		return y * 24389.0 / 27.0
	}
	return 116*math.Cbrt(y) - 16
}

// hsv returns saturation and value in [0,1].
func (c RGB) hsv() (sat, val float64) {
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	hi := math.Max(math.Max(r, g), b)
	lo := math.Min(math.Min(r, g), b)
	if hi == 0 {
		return 0, 0
	}
	return (hi - lo) / hi, hi
}

// Scale multiplies every channel, saturating at 255.
func (c RGB) Scale(f float64) RGB {
	return RGB{R: scaleChannel(c.R, f), G: scaleChannel(c.G, f), B: scaleChannel(c.B, f)}
}

// Glow brightens by up to 60% at intensity 1.
func Glow(hex string, intensity float64) string {
	return mustHex(hex).Scale(1 + max(0, min(1, intensity))*0.6).Hex()
}

// Blend mixes a towards b in linear light.
func Blend(a, b string, t float64) string {
	return lerp(mustHex(a), mustHex(b), max(0, min(1, t))).Hex()
}

// Gradient returns steps colours from start to end. Widely separated
// endpoints are eased so the middle does not band.
func Gradient(start, end string, steps int) []string {
	steps = max(steps, 2)
	a, b := mustHex(start), mustHex(end)
	eased := distance(a, b) > 250

	out := make([]string, steps)
	for i := range out {
		t := float64(i) / float64(steps-1)
		if eased {
			t = smoothStep(t)
		}
		out[i] = lerp(a, b, t).Hex()
	}
	return out
}

// Roughness is the largest perceptual jump between neighbouring gradient
// steps. Lower is smoother.
func Roughness(start, end string, steps int) float64 {
	g := Gradient(start, end, steps)
	worst := 0.0
	for i := 1; i < len(g); i++ {
		worst = math.Max(worst, distance(mustHex(g[i-1]), mustHex(g[i])))
	}
	return worst
}

// distance is the redmean approximation of perceptual colour difference.
func distance(a, b RGB) float64 {
	rmean := (float64(a.R) + float64(b.R)) / 2
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt((2+rmean/256)*dr*dr + 4*dg*dg + (2+(255-rmean)/256)*db*db)
}

func lerp(a, b RGB, t float64) RGB {
	mix := func(x, y uint8) uint8 {
		l := linear(x) + t*(linear(y)-linear(x))
		return encode(l)
	}
	return RGB{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B)}
}

func linear(v uint8) float64 {
	c := float64(v) / 255
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func encode(l float64) uint8 {
	l = max(0, min(1, l))
	var c float64
	if l <= 0.0031308 {
		c = l * 12.92
	} else {
		c = 1.055*math.Pow(l, 1/2.4) - 0.055
	}
	return uint8(math.Round(c * 255))
}

func scaleChannel(v uint8, f float64) uint8 {
	return uint8(max(0, min(255, math.Round(float64(v)*f))))
}

func smoothStep(t float64) float64 {
	t = max(0, min(1, t))
	return t * t * (3 - 2*t)
}
