package vocab

import (
	"os"

	"github.com/pkg/errors"
	"github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
	"k8s.io/klog/v2"
)

// LoadSentencePiece builds a vocabulary from a sentencepiece model file.
// Piece i gets id i, spelled exactly as the model spells it, so the pieces
// produced by the sentencepiece tokenizer look up directly.
func LoadSentencePiece(modelPath string) (*Vocab, error) {
	modelBytes, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading sentencepiece model")
	}
	return FromSentencePiece(modelBytes)
}

// FromSentencePiece builds a vocabulary from serialized ModelProto bytes.
func FromSentencePiece(modelBytes []byte) (*Vocab, error) {
	var model sentencepiece.ModelProto
	if err := proto.Unmarshal(modelBytes, &model); err != nil {
		return nil, errors.Wrap(err, "unmarshalling sentencepiece model")
	}
	pieces := model.GetPieces()
	if len(pieces) == 0 {
		return nil, errors.New("sentencepiece model has no pieces")
	}
	tokens := make([]string, len(pieces))
	controls := 0
	for pieceIdx, piece := range pieces {
		tokens[pieceIdx] = piece.GetPiece()
		switch piece.GetType() {
		case sentencepiece.ModelProto_SentencePiece_CONTROL,
			sentencepiece.ModelProto_SentencePiece_USER_DEFINED:
			controls++
		}
	}
	klog.V(1).Infof("sentencepiece model: %d pieces, %d control",
		len(pieces), controls)
	return New(tokens), nil
}
