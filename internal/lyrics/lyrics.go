package lyrics

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Cue is one timed lyric line.
type Cue struct {
	TimeSeconds float64
	Text        string
}

// Document is a parsed LRC file. Offset is the value of an [offset:ms] tag,
// in seconds, already applied to Cues.
type Document struct {
	Cues   []Cue
	Offset float64
	Title  string
	Artist string
	Album  string
}

var (
	timeTagPattern = regexp.MustCompile(`^\[(\d+):(\d{1,2})\.(\d{2,3})\]`)
	metaTagPattern = regexp.MustCompile(`^\[([a-zA-Z]+):(.*)\]$`)
)

// Parse turns raw LRC text into cues sorted by time. Lines without a
// leading time tag, or with no text after the tags, are dropped. A line
// carrying several tags yields one cue per tag.
func Parse(raw string) []Cue {
	if raw == "" {
		return nil
	}

	var cues []Cue
	for _, line := range splitLines(raw) {
		cues = append(cues, parseLine(line)...)
	}

	sort.SliceStable(cues, func(i, j int) bool {
		return cues[i].TimeSeconds < cues[j].TimeSeconds
	})

	return cues
}

// ParseDocument is Parse plus the metadata header tags. A non-zero
// [offset:] shifts every cue; positive values show lines earlier.
func ParseDocument(raw string) Document {
	doc := Document{Cues: Parse(raw)}

	for _, line := range splitLines(raw) {
		m := metaTagPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		value := strings.TrimSpace(m[2])
		switch strings.ToLower(m[1]) {
		case "ti":
			doc.Title = value
		case "ar":
			doc.Artist = value
		case "al":
			doc.Album = value
		case "offset":
			ms, err := strconv.ParseFloat(value, 64)
			if err == nil {
				doc.Offset = ms / 1000
			}
		}
	}

	if doc.Offset != 0 {
		for i := range doc.Cues {
			shifted := doc.Cues[i].TimeSeconds - doc.Offset
			if shifted < 0 {
				shifted = 0
			}
			doc.Cues[i].TimeSeconds = shifted
		}
	}

	return doc
}

// IndexAt returns the index of the last cue whose time is <= position, or
// -1 when position is before the first cue.
func IndexAt(cues []Cue, position float64) int {
	n := sort.Search(len(cues), func(i int) bool {
		return cues[i].TimeSeconds > position
	})
	return n - 1
}

// FormatTimestamp renders seconds as m:ss.cc.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes := int(seconds) / 60
	secs := seconds - float64(minutes*60)
	return fmt.Sprintf("%d:%05.2f", minutes, secs)
}

func splitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := strings.Split(raw, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func parseLine(line string) []Cue {
	var times []float64

	rest := line
	for {
		m := timeTagPattern.FindStringSubmatch(rest)
		if m == nil {
			break
		}
		times = append(times, tagSeconds(m[1], m[2], m[3]))
		rest = rest[len(m[0]):]
	}

	text := strings.TrimSpace(rest)
	if len(times) == 0 || text == "" {
		return nil
	}

	cues := make([]Cue, 0, len(times))
	for _, ts := range times {
		cues = append(cues, Cue{TimeSeconds: ts, Text: text})
	}
	return cues
}

// tagSeconds converts tag parts; a two-digit fraction is centiseconds and a
// three-digit one is milliseconds.
func tagSeconds(minutes, seconds, fraction string) float64 {
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	f, _ := strconv.Atoi(fraction)

	divisor := 100.0
	if len(fraction) == 3 {
		divisor = 1000.0
	}

	return float64(m)*60 + float64(s) + float64(f)/divisor
}
