// Package matcher decides whether a single tokenized sentence satisfies a
// query. Matching is pure and never fails: short sentences, low averages and
// slot mismatches are ordinary non-matches.
package matcher

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/pattern"
)

// Matches reports whether s satisfies q. A query with no variant set matches
// nothing; callers validate queries before scanning.
func Matches(s tokenizer.Sentence, q pattern.Query) bool {
	switch {
	case q.Advanced != nil:
		return MatchesAdvanced(s, q.Advanced)
	case q.Basic != nil:
		return MatchesBasic(s, q.Basic)
	default:
		return false
	}
}

// MatchesBasic is a case-sensitive substring test on the raw sentence.
func MatchesBasic(s tokenizer.Sentence, q *pattern.BasicQuery) bool {
	return strings.Contains(s.Raw, q.Phrase)
}

// MatchesAdvanced applies the word-count and average-length thresholds
// (both inclusive), then the slots left to right. Words past the last slot
// are not checked.
func MatchesAdvanced(s tokenizer.Sentence, q *pattern.AdvancedQuery) bool {
	n := len(s.Words)
	if n < q.MinWords {
		return false
	}
	if avgWordLength(s) < q.MinAvgWordLength {
		return false
	}
	if n < len(q.Slots) {
		return false
	}
	for i, slot := range q.Slots {
		w := s.Words[i]
		switch slot.Kind {
		case pattern.SlotLiteral:
			if w.Text != slot.Literal {
				return false
			}
		case pattern.SlotLength:
			if w.Length != slot.Length {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// avgWordLength is 0 for a sentence without words.
func avgWordLength(s tokenizer.Sentence) float64 {
	if len(s.Words) == 0 {
		return 0
	}
	return float64(s.TotalLength()) / float64(len(s.Words))
}
