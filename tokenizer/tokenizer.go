// Package tokenizer turns corpus text into vocabulary ids. A Tokenizer
// splits text into token strings; an Encoder goes all the way to ids and is
// what the instance builders consume.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/wbrown/pretrain_data/types"
)

// Tokenizer splits text into token strings.
type Tokenizer interface {
	Tokenize(text string) []string
}

// Encoder maps text onto vocabulary ids. Implementations must be safe for
// concurrent use; the returned Sentence must be treated as read-only.
type Encoder interface {
	Encode(text string) types.Sentence
	VocabSize() int
	Specials() types.Specials
}

// Decoder spells ids back out for inspection.
type Decoder interface {
	Decode(ids []int) string
}

// SpaceTokenizer splits on runs of whitespace.
type SpaceTokenizer struct{}

func (SpaceTokenizer) Tokenize(text string) []string {
	return strings.Fields(text)
}

// CharTokenizer emits one token per non-space rune.
type CharTokenizer struct{}

func (CharTokenizer) Tokenize(text string) []string {
	tokens := make([]string, 0, len(text))
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		tokens = append(tokens, string(r))
	}
	return tokens
}
