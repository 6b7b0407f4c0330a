package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTokenizesInOrder(t *testing.T) {
	c := New("1-2-3.json", []string{"the cat sat", "a dog ran fast", "cat"})
	assert.Equal(t, "1-2-3.json", c.Key)
	assert.Equal(t, 3, c.Len())
	assert.Len(t, c.Sentences[1].Words, 4)
	assert.Equal(t, "cat", c.Sentences[2].Raw)
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key  string
		want Descriptor
		ok   bool
	}{
		{"genesis-hebrew-7.json", Descriptor{Key: "genesis-hebrew-7.json", Text: "genesis", Lexicon: "hebrew", Offset: "7"}, true},
		{"12-4-0", Descriptor{Key: "12-4-0", Text: "12", Lexicon: "4", Offset: "0"}, true},
		{"plain.txt", Descriptor{Key: "plain.txt"}, false},
		{"a--b.txt", Descriptor{Key: "a--b.txt"}, false},
		{"a-b-c-d", Descriptor{Key: "a-b-c-d"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := ParseKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
