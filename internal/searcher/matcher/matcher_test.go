package matcher

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/pattern"
	"github.com/stretchr/testify/assert"
)

var samples = []string{
	"the cat sat",
	"a dog ran fast",
	"cat",
	"",
	"  ",
	"Cat and dog, together.",
	"שלום עולם",
}

func TestBasicEmptyPhraseMatchesEverything(t *testing.T) {
	q := pattern.NewBasic("")
	for _, raw := range samples {
		assert.True(t, Matches(tokenizer.Tokenize(raw), q), "raw=%q", raw)
	}
}

func TestBasicMatchesEverySubstring(t *testing.T) {
	for _, raw := range samples {
		s := tokenizer.Tokenize(raw)
		for i := 0; i <= len(raw); i++ {
			for j := i; j <= len(raw); j++ {
				assert.True(t, Matches(s, pattern.NewBasic(raw[i:j])), "raw=%q sub=%q", raw, raw[i:j])
			}
		}
	}
}

func TestBasicIsCaseSensitiveAndUntrimmed(t *testing.T) {
	s := tokenizer.Tokenize("the cat sat")
	assert.False(t, Matches(s, pattern.NewBasic("Cat")))
	assert.False(t, Matches(s, pattern.NewBasic(" the")))
	assert.True(t, Matches(s, pattern.NewBasic("cat s")))
	assert.False(t, Matches(s, pattern.NewBasic("cat  sat")))
}

func TestAdvancedEmptyPatternIsUniversal(t *testing.T) {
	q := pattern.NewAdvanced(&pattern.AdvancedQuery{})
	for _, raw := range samples {
		assert.True(t, Matches(tokenizer.Tokenize(raw), q), "raw=%q", raw)
	}
}

func TestAdvancedMinWords(t *testing.T) {
	s := tokenizer.Tokenize("the cat sat")
	assert.True(t, Matches(s, adv(3, 0)))
	assert.False(t, Matches(s, adv(4, 0)))
	assert.False(t, Matches(s, adv(4, 0, pattern.Literal("the"))))
}

func TestAdvancedAverageBoundary(t *testing.T) {
	s := tokenizer.Tokenize("cat dog sat")
	assert.True(t, Matches(s, adv(0, 3)))
	assert.False(t, Matches(s, adv(0, 3.1)))

	// 3 + 2 = 5 over 2 words is 2.5, which integer division would truncate.
	uneven := tokenizer.Tokenize("cat at")
	assert.True(t, Matches(uneven, adv(0, 2.5)))
	assert.False(t, Matches(uneven, adv(0, 2.6)))
}

func TestAdvancedZeroWordSentence(t *testing.T) {
	empty := tokenizer.Tokenize("")
	assert.True(t, Matches(empty, adv(0, 0)))
	assert.False(t, Matches(empty, adv(1, 0)))
	assert.False(t, Matches(empty, adv(0, 0.1)))
	assert.False(t, Matches(empty, adv(0, 0, pattern.Length(0))))
}

func TestAdvancedLiteralIsExact(t *testing.T) {
	s := tokenizer.Tokenize("Cat sat")
	assert.False(t, Matches(s, adv(0, 0, pattern.Literal("cat"))))
	assert.True(t, Matches(s, adv(0, 0, pattern.Literal("Cat"))))
	assert.False(t, Matches(tokenizer.Tokenize("cat, sat"), adv(0, 0, pattern.Literal("cat"))))
}

func TestAdvancedLengthSlotIgnoresText(t *testing.T) {
	q := adv(0, 0, pattern.Length(3))
	for _, raw := range []string{"cat", "dog runs", "a,b"} {
		assert.True(t, Matches(tokenizer.Tokenize(raw), q), "raw=%q", raw)
	}
	assert.False(t, Matches(tokenizer.Tokenize("a cat"), q))
}

func TestAdvancedShorterThanSlots(t *testing.T) {
	s := tokenizer.Tokenize("the cat")
	assert.False(t, Matches(s, adv(0, 0, pattern.Literal("the"), pattern.Literal("cat"), pattern.Length(3))))
}

func TestAdvancedTrailingWordsUnchecked(t *testing.T) {
	s := tokenizer.Tokenize("the cat sat on the extraordinarily long mat")
	assert.True(t, Matches(s, adv(0, 0, pattern.Length(3), pattern.Literal("cat"))))
}

func TestAdvancedSpecExample(t *testing.T) {
	q := adv(3, 0, pattern.Length(3), pattern.Literal("cat"), pattern.Length(3))
	assert.True(t, Matches(tokenizer.Tokenize("the cat sat"), q))
	assert.False(t, Matches(tokenizer.Tokenize("a big dog ran"), q))
}

func TestNoVariantMatchesNothing(t *testing.T) {
	assert.False(t, Matches(tokenizer.Tokenize("anything"), pattern.Query{}))
}

func adv(minWords int, minAvg float64, slots ...pattern.Slot) pattern.Query {
	return pattern.NewAdvanced(&pattern.AdvancedQuery{
		Slots:            slots,
		MinWords:         minWords,
		MinAvgWordLength: minAvg,
	})
}

func BenchmarkMatchesAdvanced(b *testing.B) {
	s := tokenizer.Tokenize(strings.Repeat("the cat sat on the mat ", 8))
	q := adv(5, 2.5, pattern.Length(3), pattern.Literal("cat"), pattern.Length(3))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Matches(s, q)
	}
}
