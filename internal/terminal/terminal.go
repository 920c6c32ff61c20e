// Package terminal detects what the host terminal can draw and restores it on
// exit.
package terminal

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"github.com/nfnt/resize"
)

const kittyChunk = 4096

type Capabilities struct {
	KittyGraphics bool
	TrueColor     bool
	Program       string
}

// Detect reads capabilities from the environment. Kitty graphics stay
// opt-in through LYREPLAY_KITTY_GRAPHICS.
func Detect(getenv func(string) string) Capabilities {
	caps := Capabilities{
		Program:   getenv("TERM_PROGRAM"),
		TrueColor: true,
	}

	switch strings.ToLower(getenv("COLORTERM")) {
	case "truecolor", "24bit", "":
	default:
		caps.TrueColor = false
	}

	switch strings.ToLower(getenv("LYREPLAY_KITTY_GRAPHICS")) {
	case "1", "true", "yes", "on":
		caps.KittyGraphics = true
		if caps.Program == "" {
			caps.Program = "kitty"
		}
	}

	return caps
}

// Reset shows the cursor, clears attributes and leaves the alternate screen
// and mouse modes, for when the program dies without tearing down its UI.
func Reset(w io.Writer) {
	io.WriteString(w, "\033[?25h\033[0m\033[?1049l\033[?1000l\033[?1002l\033[?1003l\033[?1006l")
}

// EncodeKitty renders img as a kitty graphics escape sized to cols x rows
// cells, keeping its aspect ratio.
func EncodeKitty(img image.Image, cols, rows int) string {
	if img == nil || cols <= 0 || rows <= 0 {
		return ""
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return ""
	}

	w, h := float64(cols*10), float64(rows*20)
	aspect := float64(b.Dx()) / float64(b.Dy())
	if aspect > w/h {
		h = w / aspect
	} else {
		w = h * aspect
	}

	scaled := resize.Resize(uint(max(w, 10)), uint(max(h, 10)), img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return ""
	}
	payload := base64.StdEncoding.EncodeToString(buf.Bytes())

	var out strings.Builder
	for start := 0; start < len(payload); start += kittyChunk {
		end := min(start+kittyChunk, len(payload))
		more := 0
		if end < len(payload) {
			more = 1
		}

		if start == 0 {
			fmt.Fprintf(&out, "\x1b_Ga=T,f=100,c=%d,r=%d,m=%d;%s\x1b\\", cols, rows, more, payload[start:end])
		} else {
			fmt.Fprintf(&out, "\x1b_Gm=%d;%s\x1b\\", more, payload[start:end])
		}
	}
	return out.String()
}
