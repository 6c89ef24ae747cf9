package tokenizer

import (
	"strings"
	"unicode"
)

const maxWordRunes = 100

// Lookup is the part of a vocabulary WordPiece needs.
type Lookup interface {
	Contains(token string) bool
}

// WordPiece is the BERT tokenizer: a basic whitespace and punctuation split
// followed by greedy longest-match-first subword segmentation.
type WordPiece struct {
	Vocab     Lookup
	Unk       string
	LowerCase bool
}

func (wp *WordPiece) Tokenize(text string) []string {
	tokens := make([]string, 0, len(text)/4+1)
	for _, word := range basicSplit(text, wp.LowerCase) {
		tokens = append(tokens, wp.subwords(word)...)
	}
	return tokens
}

func (wp *WordPiece) subwords(word string) []string {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []string{wp.Unk}
	}
	pieces := make([]string, 0, 2)
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := ""
		for start < end {
			candidate := string(runes[start:end])
			if start > 0 {
				candidate = "##" + candidate
			}
			if wp.Vocab.Contains(candidate) {
				found = candidate
				break
			}
			end--
		}
		if found == "" {
			return []string{wp.Unk}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}

// basicSplit separates whitespace delimited words, isolates punctuation and
// CJK ideographs, and optionally lowercases.
func basicSplit(text string, lower bool) []string {
	if lower {
		text = strings.ToLower(text)
	}
	words := make([]string, 0, 16)
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case r == 0 || r == unicode.ReplacementChar || unicode.IsControl(r):
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || isCJK(r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}
