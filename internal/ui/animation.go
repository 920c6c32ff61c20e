package ui

import "math"

// AnimState drives the lyric transition. It advances once per tick and is
// kicked whenever the active cue changes.
type AnimState struct {
	Slide   float64
	Reveal  float64
	Glow    float64
	Shimmer float64

	ScrollPosition float64
	TargetScrollY  float64
	PrevScrollY    float64
}

func (a *AnimState) Reset() {
	*a = AnimState{}
}

func (a *AnimState) Update(tick int, newLine bool, transitionTicks int) {
	if transitionTicks <= 0 {
		transitionTicks = 8
	}

	if newLine {
		a.Slide = 0
		a.Reveal = 0
		a.Glow = 1
		a.PrevScrollY = a.ScrollPosition
	}

	a.Slide = math.Min(1, a.Slide+1/float64(transitionTicks))
	a.Reveal = math.Min(1, a.Reveal+0.08)
	a.ScrollPosition = lerp(a.PrevScrollY, a.TargetScrollY, easeOutCubic(a.Slide))

	a.Glow *= 0.85
	if a.Glow < 0.01 {
		a.Glow = 0
	}

	a.Shimmer = float64(tick) * 0.05
}

// SlideOffset is how far the outgoing line has moved, eased, in [0, 1].
func (a *AnimState) SlideOffset() float64 {
	return easeOutCubic(a.Slide)
}

func (a *AnimState) Settled() bool {
	return a.Slide >= 1 && a.Reveal >= 1 && a.Glow == 0
}

func easeOutCubic(t float64) float64 {
	t = clamp(t, 0, 1)
	return 1 - math.Pow(1-t, 3)
}

func easeOutQuart(t float64) float64 {
	t = clamp(t, 0, 1)
	return 1 - math.Pow(1-t, 4)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
