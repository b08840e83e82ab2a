// Package sentence turns free text into speakable segments.
//
// Segments are cut at punctuation boundaries the same way a human reader
// pauses: sentence terminators, clause separators and line breaks. Runs of
// consecutive punctuation ("?!", "...", "。」") collapse into one boundary,
// and a segment with nothing speakable in it is folded into its neighbour.
package sentence

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"google.golang.org/api/iterator"
)

// DefaultMaxRunes is the segment length used when Splitter.MaxRunes is zero.
const DefaultMaxRunes = 256

// Boundary classifies the punctuation that ended a segment.
type Boundary int

const (
	// BoundaryNone means the segment ended at the end of the text or was cut
	// at the rune limit.
	BoundaryNone Boundary = iota
	// BoundaryClause is a comma, semicolon or colon.
	BoundaryClause
	// BoundarySentence is a full stop, question or exclamation mark.
	BoundarySentence
	// BoundaryLine is a line break.
	BoundaryLine
)

// String returns the boundary name.
func (b Boundary) String() string {
	switch b {
	case BoundaryClause:
		return "clause"
	case BoundarySentence:
		return "sentence"
	case BoundaryLine:
		return "line"
	}
	return "none"
}

// Segment is one piece of text with the boundary that ended it.
type Segment struct {
	Text     string
	Boundary Boundary
}

// Splitter splits text into segments.
type Splitter struct {
	// MaxRunes is the maximum number of runes in a segment. Longer runs of
	// text without punctuation are cut at the last space, or hard-cut when
	// there is none. Defaults to DefaultMaxRunes.
	MaxRunes int

	// Merge joins consecutive segments while the result fits in MaxRunes.
	// Without Merge every boundary starts a new segment.
	Merge bool
}

func (s Splitter) maxRunes() int {
	if s.MaxRunes > 0 {
		return s.MaxRunes
	}
	return DefaultMaxRunes
}

// Split returns the speakable segments of text. When no segment contains a
// letter or digit but the text is not blank, the whole trimmed text is
// returned as a single segment.
func (s Splitter) Split(text string) []Segment {
	text = strings.ToValidUTF8(text, string(utf8.RuneError))
	raw := s.cut([]rune(text))
	segs := foldUnspeakable(raw)
	if len(segs) == 0 {
		if t := strings.TrimSpace(text); t != "" {
			return []Segment{{Text: t}}
		}
		return nil
	}
	if s.Merge {
		segs = s.merge(segs)
	}
	return segs
}

// Iterator returns an iterator over the segments of text.
func (s Splitter) Iterator(text string) *Iterator {
	return &Iterator{segs: s.Split(text)}
}

func (s Splitter) cut(rs []rune) []Segment {
	limit := s.maxRunes()
	var out []Segment
	start := 0
	emit := func(end int, b Boundary) {
		if t := strings.TrimSpace(string(rs[start:end])); t != "" {
			out = append(out, Segment{Text: t, Boundary: b})
		}
		start = end
	}
	for i := 0; i < len(rs); {
		if b := boundaryAt(rs, i); b != BoundaryNone {
			end, strongest := absorbRun(rs, i)
			emit(end, max(b, strongest))
			i = end
			continue
		}
		i++
		if i-start >= limit {
			end := i
			if sp := lastSpace(rs[start:i]); sp > 0 {
				end = start + sp
			}
			emit(end, BoundaryNone)
			i = end
		}
	}
	emit(len(rs), BoundaryNone)
	return out
}

// absorbRun returns the end of the punctuation run starting at i, and the
// strongest boundary found in it. Closing quotes and brackets right after the
// run belong to the segment being closed.
func absorbRun(rs []rune, i int) (int, Boundary) {
	strongest := BoundaryNone
	j := i
	for j < len(rs) {
		if b := boundaryAt(rs, j); b != BoundaryNone {
			strongest = max(strongest, b)
			j++
			continue
		}
		if isClosing(rs[j]) {
			j++
			continue
		}
		break
	}
	return j, strongest
}

// boundaryAt classifies rs[i]. Dots, colons and commas between two digits
// ("9.9", "10:15", "1,000") are not boundaries.
func boundaryAt(rs []rune, i int) Boundary {
	r := rs[i]
	switch r {
	case '.', ':', ',', '：':
		prev, next := '0', '0'
		if i > 0 {
			prev = rs[i-1]
		}
		if i < len(rs)-1 {
			next = rs[i+1]
		}
		if unicode.IsNumber(prev) && unicode.IsNumber(next) {
			return BoundaryNone
		}
		if r == '.' {
			return BoundarySentence
		}
		return BoundaryClause
	case '。', '？', '！', '…', '?', '!', '¿', '¡', '～', '~':
		return BoundarySentence
	case '，', '；', ';', '、', '„', '・':
		return BoundaryClause
	case '\r', '\n':
		return BoundaryLine
	}
	return BoundaryNone
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '」', '』', '）', '》', '”', '’', '»':
		return true
	}
	return false
}

func lastSpace(rs []rune) int {
	for i, r := range slices.Backward(rs) {
		if unicode.IsSpace(r) {
			return i
		}
	}
	return 0
}

// Speakable reports whether s contains a letter or digit.
func Speakable(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsNumber(r)
	}) >= 0
}

// foldUnspeakable merges punctuation-only segments into the previous segment,
// or into the next one when they lead the text.
func foldUnspeakable(segs []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	var pending string
	for _, seg := range segs {
		if !Speakable(seg.Text) {
			if n := len(out); n > 0 {
				out[n-1].Text += seg.Text
				out[n-1].Boundary = max(out[n-1].Boundary, seg.Boundary)
			} else {
				pending += seg.Text
			}
			continue
		}
		if pending != "" {
			seg.Text = pending + " " + seg.Text
			pending = ""
		}
		out = append(out, seg)
	}
	return out
}

func (s Splitter) merge(segs []Segment) []Segment {
	limit := s.maxRunes()
	out := []Segment{segs[0]}
	size := utf8.RuneCountInString(segs[0].Text)
	for _, seg := range segs[1:] {
		last := &out[len(out)-1]
		n := utf8.RuneCountInString(seg.Text)
		if size+1+n > limit {
			out = append(out, seg)
			size = n
			continue
		}
		sep := joiner(last.Text)
		last.Text += sep + seg.Text
		last.Boundary = seg.Boundary
		size += len([]rune(sep)) + n
	}
	return out
}

// joiner returns the separator placed between two merged segments. CJK text
// is joined without a space.
func joiner(prev string) string {
	r, _ := utf8.DecodeLastRuneInString(prev)
	if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
		return ""
	}
	switch r {
	case '。', '，', '；', '：', '？', '！', '、', '」', '』', '）':
		return ""
	}
	return " "
}

// Iterator yields segments one at a time.
type Iterator struct {
	segs []Segment
	next int
}

// NewIterator returns an iterator over segs.
func NewIterator(segs []Segment) *Iterator {
	return &Iterator{segs: segs}
}

// Next returns the next segment, or iterator.Done after the last one.
func (it *Iterator) Next() (Segment, error) {
	if it.next >= len(it.segs) {
		return Segment{}, iterator.Done
	}
	seg := it.segs[it.next]
	it.next++
	return seg, nil
}

// Remaining returns the number of segments not yet returned.
func (it *Iterator) Remaining() int {
	return len(it.segs) - it.next
}

// Len returns the total number of segments.
func (it *Iterator) Len() int {
	return len(it.segs)
}
