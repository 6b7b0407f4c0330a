// Package tokenizer splits raw sentences into words. Splitting is on
// whitespace only: punctuation and case are left untouched so that literal
// pattern slots compare against exactly what the corpus contains.
package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// Word is a single whitespace-delimited token and its length in characters.
type Word struct {
	Text   string `json:"word"`
	Length int    `json:"length"`
}

// Sentence keeps the raw text for substring search alongside its words.
type Sentence struct {
	Raw   string `json:"raw"`
	Words []Word `json:"words"`
}

// Tokenize breaks raw into Words in source order. An empty or blank string
// yields a Sentence with no words.
func Tokenize(raw string) Sentence {
	fields := strings.Fields(raw)
	words := make([]Word, len(fields))
	for i, f := range fields {
		words[i] = Word{Text: f, Length: utf8.RuneCountInString(f)}
	}
	return Sentence{Raw: raw, Words: words}
}

// TokenizeAll tokenizes every raw sentence, preserving order.
func TokenizeAll(raws []string) []Sentence {
	sentences := make([]Sentence, len(raws))
	for i, raw := range raws {
		sentences[i] = Tokenize(raw)
	}
	return sentences
}

// TotalLength is the sum of the word lengths.
func (s Sentence) TotalLength() int {
	total := 0
	for _, w := range s.Words {
		total += w.Length
	}
	return total
}
