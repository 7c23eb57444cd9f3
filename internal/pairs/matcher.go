package pairs

import (
	"sort"
	"strings"
	"time"
)

// Event is a raw market listing from one venue, used only for pair
// suggestion.
type Event struct {
	Venue     string
	MarketID  string
	Title     string
	CloseTime time.Time
}

// Candidate is a suggested pairing of two events, ranked by title similarity.
type Candidate struct {
	A          Event
	B          Event
	Similarity int // 0-100
	TimeDiff   time.Duration
}

// Matcher scores cross-venue event pairs by token-sort title similarity and
// close-time proximity. It only suggests; a human approves.
type Matcher struct {
	similarityThreshold int
	timeWindow          time.Duration
}

// NewMatcher creates a matcher. A threshold of 75 and a 24h window match
// events phrased differently but closing together.
func NewMatcher(similarityThreshold int, timeWindow time.Duration) *Matcher {
	return &Matcher{
		similarityThreshold: similarityThreshold,
		timeWindow:          timeWindow,
	}
}

// Suggest returns candidate pairs above the similarity threshold whose close
// times fall within the window, best match first.
func (m *Matcher) Suggest(eventsA, eventsB []Event) []Candidate {
	var out []Candidate

	for _, a := range eventsA {
		for _, b := range eventsB {
			score := Similarity(a.Title, b.Title)
			if score < m.similarityThreshold {
				continue
			}

			var diff time.Duration
			if !a.CloseTime.IsZero() && !b.CloseTime.IsZero() {
				diff = a.CloseTime.Sub(b.CloseTime)
				if diff < 0 {
					diff = -diff
				}
				if diff > m.timeWindow {
					continue
				}
			}

			out = append(out, Candidate{A: a, B: b, Similarity: score, TimeDiff: diff})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})

	return out
}

// Similarity computes a token-sort ratio between two titles: tokens are
// lowercased, sorted and rejoined, then compared by edit distance, yielding
// 0-100. Word order does not matter ("Fed cuts rates in March" matches
// "March Fed rate cut").
func Similarity(a, b string) int {
	na := normalize(a)
	nb := normalize(b)
	if na == nb {
		return 100
	}
	if na == "" || nb == "" {
		return 0
	}

	dist := levenshtein(na, nb)
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}

	return (maxLen - dist) * 100 / maxLen
}

func normalize(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	cleaned := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,!?:;\"'()[]")
		if f != "" {
			cleaned = append(cleaned, f)
		}
	}
	sort.Strings(cleaned)
	return strings.Join(cleaned, " ")
}

func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
