// Package corpus defines the tokenized sentence collection that searches run
// against, the collaborator interfaces that supply raw sentences, and the
// naming convention used for sentence files.
package corpus

import (
	"context"
	"path"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus/tokenizer"
)

// Corpus is an immutable, ordered snapshot of tokenized sentences. Searches
// may read it concurrently without locking.
type Corpus struct {
	Key       string
	Sentences []tokenizer.Sentence
}

// New tokenizes raws into a Corpus identified by key.
func New(key string, raws []string) *Corpus {
	return &Corpus{Key: key, Sentences: tokenizer.TokenizeAll(raws)}
}

// Len returns the number of sentences.
func (c *Corpus) Len() int {
	return len(c.Sentences)
}

// Fetcher returns the raw sentences of the corpus identified by key, in
// corpus order. Unknown keys must yield an error wrapping
// apperrors.ErrCorpusNotFound.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]string, error)
}

// Lister enumerates the corpus keys a source can serve.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Source is a Fetcher that can also list its corpora.
type Source interface {
	Fetcher
	Lister
}

// Descriptor is the human-facing breakdown of a corpus key named
// {text}-{lexicon}-{offset}[.ext].
type Descriptor struct {
	Key     string `json:"key"`
	Text    string `json:"text,omitempty"`
	Lexicon string `json:"lexicon,omitempty"`
	Offset  string `json:"offset,omitempty"`
}

// ParseKey splits a corpus key into its text, lexicon and offset parts. Keys
// that do not follow the convention are returned with only Key set and ok
// false; the key itself stays usable.
func ParseKey(key string) (Descriptor, bool) {
	d := Descriptor{Key: key}
	base := strings.TrimSuffix(key, path.Ext(key))
	parts := strings.Split(base, "-")
	if len(parts) != 3 {
		return d, false
	}
	for _, p := range parts {
		if p == "" {
			return d, false
		}
	}
	d.Text, d.Lexicon, d.Offset = parts[0], parts[1], parts[2]
	return d, true
}
