package tokenizer

import (
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/wbrown/pretrain_data/types"
	"github.com/wbrown/pretrain_data/vocab"
)

const DefaultCacheSize = 65536

// VocabEncoder pairs a string Tokenizer with a vocabulary. Encoded lines are
// memoised in an ARC cache, which pays off on corpora with repeated lines
// and on dup_factor passes over the same partition.
type VocabEncoder struct {
	Tokenizer Tokenizer
	Vocab     *vocab.Vocab
	cache     *lru.ARCCache
}

// NewVocabEncoder builds an encoder; cacheSize <= 0 disables the cache.
func NewVocabEncoder(tok Tokenizer, v *vocab.Vocab,
	cacheSize int) (*VocabEncoder, error) {
	enc := &VocabEncoder{Tokenizer: tok, Vocab: v}
	if cacheSize > 0 {
		cache, err := lru.NewARC(cacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "creating encoder cache")
		}
		enc.cache = cache
	}
	return enc, nil
}

func (e *VocabEncoder) Encode(text string) types.Sentence {
	if e.cache != nil {
		if hit, ok := e.cache.Get(text); ok {
			return hit.(types.Sentence)
		}
	}
	tokens := e.Tokenizer.Tokenize(text)
	sentence := make(types.Sentence, len(tokens))
	for idx, token := range tokens {
		sentence[idx] = e.Vocab.Get(token)
	}
	if e.cache != nil {
		e.cache.Add(text, sentence)
	}
	return sentence
}

// Decode joins the vocabulary entries of ids with spaces, dropping
// trailing padding.
func (e *VocabEncoder) Decode(ids []int) string {
	return strings.Join(e.Vocab.Decode(ids), " ")
}

func (e *VocabEncoder) VocabSize() int {
	return e.Vocab.Size()
}

func (e *VocabEncoder) Specials() types.Specials {
	return e.Vocab.Specials()
}

// Spec names a tokenizer and the files it needs.
type Spec struct {
	// Tokenizer is one of space, char, wordpiece, sentencepiece or
	// bpe:<vocab id>.
	Tokenizer string `yaml:"tokenizer"`
	// VocabPath is a one-token-per-line vocabulary. The sentencepiece
	// tokenizer falls back to the model's own pieces when it is empty.
	VocabPath string `yaml:"vocab_path"`
	// ModelPath is the sentencepiece model.
	ModelPath string `yaml:"spm_model_path"`
	LowerCase bool   `yaml:"lower_case"`
	CacheSize int    `yaml:"cache_size"`
}

// NewEncoder builds the Encoder described by spec.
func NewEncoder(spec Spec) (Encoder, error) {
	trimmed := strings.TrimSpace(spec.Tokenizer)
	name := strings.ToLower(trimmed)
	if strings.HasPrefix(name, "bpe:") {
		return NewBPEEncoder(strings.TrimSpace(trimmed[4:]))
	}

	var tok Tokenizer
	var v *vocab.Vocab
	var err error
	switch name {
	case "space", "char", "wordpiece":
		if spec.VocabPath == "" {
			return nil, errors.Errorf("tokenizer %s needs a vocabulary",
				name)
		}
		if v, err = vocab.Load(spec.VocabPath); err != nil {
			return nil, err
		}
		switch name {
		case "space":
			tok = SpaceTokenizer{}
		case "char":
			tok = CharTokenizer{}
		default:
			tok = &WordPiece{
				Vocab:     v,
				Unk:       v.Token(v.Specials().Unk),
				LowerCase: spec.LowerCase,
			}
		}
	case "sentencepiece":
		if spec.ModelPath == "" {
			return nil, errors.New("sentencepiece needs spm_model_path")
		}
		if tok, err = NewSentencePiece(spec.ModelPath,
			spec.LowerCase); err != nil {
			return nil, err
		}
		if spec.VocabPath != "" {
			v, err = vocab.Load(spec.VocabPath)
		} else {
			v, err = vocab.LoadSentencePiece(spec.ModelPath)
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("unknown tokenizer %q", spec.Tokenizer)
	}
	if err = v.Specials().Validate(); err != nil {
		return nil, errors.Wrap(err, "vocabulary reserved ids")
	}
	klog.V(1).Infof("Encoder %s over %d tokens", name, v.Size())
	return NewVocabEncoder(tok, v, spec.CacheSize)
}
