package sentence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Tokenizer converts prepared text into model token ids.
type Tokenizer interface {
	Encode(text string) []int
}

var (
	_ Tokenizer = RuneTokenizer{}
	_ Tokenizer = (*VocabTokenizer)(nil)
)

// RuneTokenizer maps every rune to its code point.
type RuneTokenizer struct{}

// Encode implements Tokenizer.
func (RuneTokenizer) Encode(text string) []int {
	ids := make([]int, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		ids = append(ids, int(r))
	}
	return ids
}

// spaceMarker replaces spaces in sentencepiece vocabularies.
const spaceMarker = "▁"

// VocabTokenizer is a greedy longest-match tokenizer over a fixed vocabulary
// in sentencepiece style, where a leading "▁" marks a word start.
type VocabTokenizer struct {
	vocab  map[string]int
	unk    int
	maxLen int
}

// ErrEmptyVocab is returned by LoadVocab when no pieces are found.
var ErrEmptyVocab = errors.New("sentence: empty vocabulary")

// LoadVocab parses a tokenizer.json document. Both the flat form
// {"vocab": {...}, "unk_id": n} and the nested {"model": {...}} form are
// accepted.
func LoadVocab(data []byte) (*VocabTokenizer, error) {
	type model struct {
		Vocab map[string]int `json:"vocab"`
		UnkID *int           `json:"unk_id"`
	}
	var doc struct {
		model
		Model *model `json:"model"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sentence: parse vocabulary: %w", err)
	}
	m := doc.model
	if doc.Model != nil {
		m = *doc.Model
	}
	if len(m.Vocab) == 0 {
		return nil, ErrEmptyVocab
	}
	return NewVocabTokenizer(m.Vocab, m.UnkID), nil
}

// NewVocabTokenizer creates a tokenizer over vocab. When unk is nil the
// "<unk>" piece is used, or 0 if the vocabulary has none.
func NewVocabTokenizer(vocab map[string]int, unk *int) *VocabTokenizer {
	t := &VocabTokenizer{vocab: vocab}
	switch {
	case unk != nil:
		t.unk = *unk
	default:
		t.unk = vocab["<unk>"]
	}
	for piece := range vocab {
		t.maxLen = max(t.maxLen, utf8.RuneCountInString(piece))
	}
	return t
}

// Encode implements Tokenizer.
func (t *VocabTokenizer) Encode(text string) []int {
	rs := []rune(spaceMarker + strings.ReplaceAll(text, " ", spaceMarker))
	var ids []int
	for i := 0; i < len(rs); {
		n := min(t.maxLen, len(rs)-i)
		for ; n > 0; n-- {
			if id, ok := t.vocab[string(rs[i:i+n])]; ok {
				ids = append(ids, id)
				break
			}
		}
		if n == 0 {
			ids = append(ids, t.unk)
			n = 1
		}
		i += n
	}
	return ids
}

// Size returns the number of pieces in the vocabulary.
func (t *VocabTokenizer) Size() int {
	return len(t.vocab)
}
