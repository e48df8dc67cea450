package knowledge

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ContainsWord reports whether phrase occurs in text delimited by word
// boundaries on both sides. A boundary sits between a word character
// (letter, number or underscore) and a non-word character or the text edge.
func ContainsWord(text, phrase string) bool {
	if phrase == "" {
		return false
	}

	offset := 0
	for offset <= len(text) {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(phrase)
		if atBoundary(text, start) && atBoundary(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

// ContainsSubstring reports whether phrase occurs anywhere in text.
func ContainsSubstring(text, phrase string) bool {
	return phrase != "" && strings.Contains(text, phrase)
}

func atBoundary(text string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = isWordRune(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
