// Package pattern holds the two query shapes a sentence search accepts and
// compiles the advanced-search form into a positional pattern.
package pattern

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/errors"
)

// Mode names the active query variant.
type Mode string

const (
	ModeBasic    Mode = "basic"
	ModeAdvanced Mode = "advanced"
)

// BasicQuery matches sentences whose raw text contains Phrase.
type BasicQuery struct {
	Phrase string `json:"phrase"`
}

// SlotKind is the discriminator of a Slot.
type SlotKind int

const (
	SlotLiteral SlotKind = iota + 1
	SlotLength
)

func (k SlotKind) String() string {
	switch k {
	case SlotLiteral:
		return "literal"
	case SlotLength:
		return "length"
	default:
		return "invalid"
	}
}

// Slot constrains the word at one position: either its exact text or its
// exact length.
type Slot struct {
	Kind    SlotKind `json:"kind"`
	Literal string   `json:"literal,omitempty"`
	Length  int      `json:"length,omitempty"`
}

// Literal returns a slot requiring the exact word w.
func Literal(w string) Slot { return Slot{Kind: SlotLiteral, Literal: w} }

// Length returns a slot requiring a word of n characters.
func Length(n int) Slot { return Slot{Kind: SlotLength, Length: n} }

// AdvancedQuery is a compiled structural pattern. Slot i applies to word i of
// a candidate sentence.
type AdvancedQuery struct {
	Slots            []Slot  `json:"slots"`
	MinWords         int     `json:"min_words"`
	MinAvgWordLength float64 `json:"min_avg_word_length"`
}

// Query carries exactly one of Basic or Advanced.
type Query struct {
	Basic    *BasicQuery    `json:"basic,omitempty"`
	Advanced *AdvancedQuery `json:"advanced,omitempty"`
}

// NewBasic builds a substring query.
func NewBasic(phrase string) Query {
	return Query{Basic: &BasicQuery{Phrase: phrase}}
}

// NewAdvanced wraps a compiled pattern.
func NewAdvanced(q *AdvancedQuery) Query {
	return Query{Advanced: q}
}

// Mode reports which variant is set.
func (q Query) Mode() Mode {
	if q.Advanced != nil {
		return ModeAdvanced
	}
	return ModeBasic
}

// String renders the query compactly for logs and analytics, e.g.
// `"quick brown"` or `[The] _5 minWords=3 avg>=4`.
func (q Query) String() string {
	switch {
	case q.Advanced != nil:
		return q.Advanced.String()
	case q.Basic != nil:
		return strconv.Quote(q.Basic.Phrase)
	default:
		return ""
	}
}

func (a *AdvancedQuery) String() string {
	var b strings.Builder
	for i, s := range a.Slots {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch s.Kind {
		case SlotLiteral:
			b.WriteString("[" + s.Literal + "]")
		case SlotLength:
			b.WriteString("_" + strconv.Itoa(s.Length))
		default:
			b.WriteString("?")
		}
	}
	if a.MinWords > 0 {
		fmt.Fprintf(&b, " minWords=%d", a.MinWords)
	}
	if a.MinAvgWordLength > 0 {
		fmt.Fprintf(&b, " avg>=%s", strconv.FormatFloat(a.MinAvgWordLength, 'g', -1, 64))
	}
	return strings.TrimSpace(b.String())
}

// Validate checks that exactly one variant is set and that an advanced
// pattern has no degenerate slots.
func (q Query) Validate() error {
	switch {
	case q.Basic == nil && q.Advanced == nil:
		return fmt.Errorf("query has no variant: %w", apperrors.ErrInvalidPattern)
	case q.Basic != nil && q.Advanced != nil:
		return fmt.Errorf("query has both basic and advanced variants: %w", apperrors.ErrInvalidPattern)
	case q.Advanced != nil:
		return q.Advanced.Validate()
	}
	return nil
}

// Validate rejects negative thresholds and slots without a usable
// discriminator.
func (a *AdvancedQuery) Validate() error {
	if a.MinWords < 0 {
		return fmt.Errorf("minWords %d is negative: %w", a.MinWords, apperrors.ErrInvalidPattern)
	}
	if math.IsNaN(a.MinAvgWordLength) || a.MinAvgWordLength < 0 {
		return fmt.Errorf("avgWordLength %v is not a non-negative number: %w", a.MinAvgWordLength, apperrors.ErrInvalidPattern)
	}
	for i, s := range a.Slots {
		switch s.Kind {
		case SlotLiteral:
			if s.Literal == "" {
				return fmt.Errorf("slot %d: empty literal: %w", i, apperrors.ErrInvalidPattern)
			}
		case SlotLength:
			if s.Length < 0 {
				return fmt.Errorf("slot %d: negative length %d: %w", i, s.Length, apperrors.ErrInvalidPattern)
			}
		default:
			return fmt.Errorf("slot %d: neither word nor length given: %w", i, apperrors.ErrInvalidPattern)
		}
	}
	return nil
}

// LengthValue is a slot length as typed into a form: a JSON number, a
// numeric string, or empty/null for "not given".
type LengthValue struct {
	N   int
	Set bool
}

// Len returns a set LengthValue.
func Len(n int) LengthValue { return LengthValue{N: n, Set: true} }

// ParseLength parses s, treating blank input as unset.
func ParseLength(s string) (LengthValue, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LengthValue{}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return LengthValue{}, fmt.Errorf("length %q is not an integer: %w", s, apperrors.ErrInvalidPattern)
	}
	return Len(n), nil
}

func (l *LengthValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = LengthValue{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := ParseLength(s)
		if err != nil {
			return err
		}
		*l = v
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("length must be a number or string: %w", apperrors.ErrInvalidPattern)
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("length %v is not an integer: %w", f, apperrors.ErrInvalidPattern)
	}
	*l = Len(int(f))
	return nil
}

func (l LengthValue) MarshalJSON() ([]byte, error) {
	if !l.Set {
		return []byte(`""`), nil
	}
	return []byte(strconv.Itoa(l.N)), nil
}

// SlotForm is one row of the advanced-search form.
type SlotForm struct {
	Word   string      `json:"word"`
	Length LengthValue `json:"length"`
}

// AdvancedForm is the advanced-search form as submitted by a client.
type AdvancedForm struct {
	Words         []SlotForm `json:"words"`
	MinWords      int        `json:"minWords"`
	AvgWordLength float64    `json:"avgWordLength"`
}

// Compile turns the form into an AdvancedQuery. A non-empty word wins over
// any length on the same row; a row with neither is rejected with
// ErrInvalidPattern.
func Compile(form AdvancedForm) (*AdvancedQuery, error) {
	q := &AdvancedQuery{
		Slots:            make([]Slot, len(form.Words)),
		MinWords:         form.MinWords,
		MinAvgWordLength: form.AvgWordLength,
	}
	for i, row := range form.Words {
		switch {
		case row.Word != "":
			q.Slots[i] = Literal(row.Word)
		case row.Length.Set:
			q.Slots[i] = Length(row.Length.N)
		default:
			q.Slots[i] = Slot{}
		}
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}
