package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/wbrown/gpt_bpe"

	"github.com/wbrown/pretrain_data/types"
)

// BPEEncoder adapts a gpt_bpe vocabulary. gpt_bpe vocabularies have no
// BERT-style reserved tokens, so four ids past the end of the vocabulary are
// reserved for PAD, CLS, SEP and MASK; UNK aliases PAD since byte-level BPE
// never produces unknown tokens.
type BPEEncoder struct {
	encoder  *gpt_bpe.GPTEncoder
	size     int
	specials types.Specials
	mu       sync.Mutex
}

// NewBPEEncoder resolves vocabId the way gpt_bpe does: first as an embedded
// `<id>-tokenizer`, then as a path or huggingface id.
func NewBPEEncoder(vocabId string) (*BPEEncoder, error) {
	encoder, err := gpt_bpe.NewEncoder(vocabId + "-tokenizer")
	if err != nil {
		encoder, err = gpt_bpe.NewEncoder(vocabId)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving bpe vocabulary %s",
				vocabId)
		}
	}
	return newBPEEncoder(encoder), nil
}

func newBPEEncoder(encoder *gpt_bpe.GPTEncoder) *BPEEncoder {
	base := len(encoder.Encoder)
	return &BPEEncoder{
		encoder: encoder,
		size:    base + 4,
		specials: types.Specials{
			Pad:  base,
			Unk:  base,
			Cls:  base + 1,
			Sep:  base + 2,
			Mask: base + 3,
		},
	}
}

func (b *BPEEncoder) Encode(text string) types.Sentence {
	text = strings.TrimRight(text, "\r\n")
	b.mu.Lock()
	encoded := b.encoder.Encode(&text)
	b.mu.Unlock()
	sentence := make(types.Sentence, len(*encoded))
	for idx, token := range *encoded {
		sentence[idx] = int(token)
	}
	return sentence
}

func (b *BPEEncoder) VocabSize() int {
	return b.size
}

func (b *BPEEncoder) Specials() types.Specials {
	return b.specials
}

// Decode turns ids back into text, spelling the reserved ids BERT-style.
func (b *BPEEncoder) Decode(ids []int) string {
	var sb strings.Builder
	run := make(gpt_bpe.Tokens, 0, len(ids))
	flush := func() {
		if len(run) > 0 {
			b.mu.Lock()
			sb.WriteString(b.encoder.Decode(&run))
			b.mu.Unlock()
			run = run[:0]
		}
	}
	for _, id := range ids {
		switch id {
		case b.specials.Pad:
			flush()
			sb.WriteString("[PAD]")
		case b.specials.Cls:
			flush()
			sb.WriteString("[CLS]")
		case b.specials.Sep:
			flush()
			sb.WriteString("[SEP]")
		case b.specials.Mask:
			flush()
			sb.WriteString("[MASK]")
		default:
			run = append(run, gpt_bpe.Token(id))
		}
	}
	flush()
	return sb.String()
}
