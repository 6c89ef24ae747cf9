package tokenizer

import (
	"github.com/pkg/errors"
	"github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
)

// SentencePiece tokenizes with a sentencepiece unigram model. It emits the
// model's own piece spellings, which vocab.LoadSentencePiece indexes.
type SentencePiece struct {
	sp sentencepiece.Sentencepiece
}

func NewSentencePiece(modelPath string, lowerCase bool) (*SentencePiece,
	error) {
	sp, err := sentencepiece.NewSentencepieceFromFile(modelPath, lowerCase)
	if err != nil {
		return nil, errors.Wrapf(err, "loading sentencepiece model %s",
			modelPath)
	}
	return &SentencePiece{sp: sp}, nil
}

func (s *SentencePiece) Tokenize(text string) []string {
	pieces := s.sp.Tokenize(text)
	tokens := make([]string, len(pieces))
	for idx := range pieces {
		tokens[idx] = pieces[idx].Text
	}
	return tokens
}
