package sentence

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Prepare normalizes a segment before it is tokenized. Whitespace runs become
// a single space, the first letter is upper-cased and a final period is added
// when the text ends in a letter or digit. It returns "" for blank input.
func Prepare(text string) string {
	text = strings.ToValidUTF8(text, string(utf8.RuneError))
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}

	first, size := utf8.DecodeRuneInString(text)
	if unicode.IsLower(first) {
		text = string(unicode.ToUpper(first)) + text[size:]
	}

	last, _ := utf8.DecodeLastRuneInString(text)
	if unicode.IsLetter(last) || unicode.IsNumber(last) {
		if unicode.In(last, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			text += "。"
		} else {
			text += "."
		}
	}
	return text
}

// Words returns the number of whitespace-separated words in text.
func Words(text string) int {
	return len(strings.Fields(text))
}
