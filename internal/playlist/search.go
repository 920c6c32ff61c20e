package playlist

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

type Match struct {
	Index int
	Track Track
	Score float64
}

// Search ranks tracks against query. Substring hits in the title weigh most,
// then artist, then album; close misspellings of the title still score.
func Search(tracks []Track, query string) []Match {
	q := strings.ToLower(strings.TrimSpace(query))

	var matches []Match
	for i, t := range tracks {
		if q == "" {
			matches = append(matches, Match{Index: i, Track: t})
			continue
		}

		if score := scoreTrack(t, q); score > 0 {
			matches = append(matches, Match{Index: i, Track: t, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

func scoreTrack(t Track, q string) float64 {
	title := strings.ToLower(t.Title)
	score := 0.0

	if strings.Contains(title, q) {
		score += 10
	} else if fuzzy.MatchFold(q, t.Title) {
		score += 4
	}

	distance := fuzzy.LevenshteinDistance(q, title)
	if distance <= len(q)/2 {
		score += float64(len(q) - distance)
	}

	if strings.Contains(strings.ToLower(t.Artist), q) {
		score += 7
	}
	if strings.Contains(strings.ToLower(t.Album), q) {
		score += 5
	}

	return score
}
