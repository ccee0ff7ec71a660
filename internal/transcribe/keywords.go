package transcribe

import (
	"sort"
	"strings"
)

// Keyword is a notable word from a transcript with the timestamp of its first
// occurrence.
type Keyword struct {
	Keyword    string  `json:"keyword"`
	Timestamp  float64 `json:"timestamp"`
	Confidence float64 `json:"confidence"`
}

// DefaultMaxKeywords bounds how many keywords extraction returns.
const DefaultMaxKeywords = 3

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"his": true, "has": true, "have": true, "this": true, "that": true,
	"with": true, "they": true, "them": true, "then": true, "than": true,
	"from": true, "will": true, "would": true, "there": true, "their": true,
	"what": true, "when": true, "where": true, "which": true, "were": true,
	"been": true, "being": true, "about": true, "just": true, "like": true,
	"some": true, "could": true, "into": true, "your": true, "really": true,
	"very": true, "also": true, "because": true, "going": true, "yeah": true,
	"okay": true, "well": true, "know": true, "think": true, "right": true,
	"gonna": true, "thing": true, "things": true, "here": true, "more": true,
}

// ExtractKeywords scores transcript words by frequency, skipping stopwords
// and short words, and returns the top max keywords. Each keyword carries the
// timestamp and confidence of its first occurrence. Ties break toward the
// earlier first occurrence so results are deterministic.
func ExtractKeywords(t *Transcript, max int) []Keyword {
	if t == nil || max <= 0 {
		return nil
	}

	type entry struct {
		word       string
		count      int
		first      float64
		confidence float64
	}

	counts := make(map[string]*entry)
	var order []*entry

	for _, w := range t.Words {
		word := normalizeWord(w.Text)
		if len(word) < 3 || stopwords[word] {
			continue
		}
		e, ok := counts[word]
		if !ok {
			e = &entry{word: word, first: w.Start, confidence: w.Confidence}
			counts[word] = e
			order = append(order, e)
		}
		e.count++
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})

	if len(order) > max {
		order = order[:max]
	}

	keywords := make([]Keyword, 0, len(order))
	for _, e := range order {
		keywords = append(keywords, Keyword{
			Keyword:    e.word,
			Timestamp:  e.first,
			Confidence: e.confidence,
		})
	}
	return keywords
}

func normalizeWord(s string) string {
	s = strings.ToLower(s)
	return strings.TrimFunc(s, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
}
