// Package vocab maps token strings onto integer ids and back, and resolves
// the reserved ids the instance builders depend on.
package vocab

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/wbrown/pretrain_data/types"
)

// Reserved token spellings, in the order they are appended when a
// vocabulary lacks them.
const (
	PadToken  = "[PAD]"
	UnkToken  = "[UNK]"
	ClsToken  = "[CLS]"
	SepToken  = "[SEP]"
	MaskToken = "[MASK]"
)

// aliases lets sentencepiece style vocabularies satisfy the reserved tokens.
var aliases = map[string][]string{
	PadToken:  {"<pad>"},
	UnkToken:  {"<unk>"},
	ClsToken:  {"<cls>", "<s>"},
	SepToken:  {"<sep>", "</s>"},
	MaskToken: {"<mask>"},
}

type Vocab struct {
	tokens   []string
	index    map[string]int
	specials types.Specials
}

// New builds a vocabulary from tokens, where a token's id is its position.
// Missing reserved tokens are appended.
func New(tokens []string) *Vocab {
	v := &Vocab{
		tokens: make([]string, 0, len(tokens)+5),
		index:  make(map[string]int, len(tokens)+5),
	}
	for _, token := range tokens {
		v.add(token)
	}
	v.resolveSpecials()
	return v
}

func (v *Vocab) add(token string) int {
	id := len(v.tokens)
	v.tokens = append(v.tokens, token)
	if token == "" {
		return id
	}
	if _, dupe := v.index[token]; !dupe {
		v.index[token] = id
	}
	return id
}

func (v *Vocab) lookupReserved(token string) (int, bool) {
	if id, ok := v.index[token]; ok {
		return id, true
	}
	for _, alias := range aliases[token] {
		if id, ok := v.index[alias]; ok {
			return id, true
		}
	}
	return 0, false
}

func (v *Vocab) resolveSpecials() {
	resolve := func(token string) int {
		if id, ok := v.lookupReserved(token); ok {
			return id
		}
		klog.Warningf("vocabulary has no %s token, appending it as id %d",
			token, len(v.tokens))
		return v.add(token)
	}
	v.specials = types.Specials{
		Pad:  resolve(PadToken),
		Unk:  resolve(UnkToken),
		Cls:  resolve(ClsToken),
		Sep:  resolve(SepToken),
		Mask: resolve(MaskToken),
	}
}

// Load reads a vocabulary file with one token per line.
func Load(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening vocabulary")
	}
	defer f.Close()
	v, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading vocabulary %s", path)
	}
	klog.V(1).Infof("Loaded %d tokens from %s", v.Size(), path)
	return v, nil
}

// Read parses a one-token-per-line vocabulary. Blank lines keep their id.
func Read(r io.Reader) (*Vocab, error) {
	tokens := make([]string, 0, 32768)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, errors.New("vocabulary is empty")
	}
	return New(tokens), nil
}

// Get returns the id of token, or the UNK id when the token is unknown.
func (v *Vocab) Get(token string) int {
	if id, ok := v.index[token]; ok {
		return id
	}
	return v.specials.Unk
}

// Contains reports whether token has its own id.
func (v *Vocab) Contains(token string) bool {
	_, ok := v.index[token]
	return ok
}

// Token returns the spelling of id, or the UNK spelling when id is out of
// range.
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return v.tokens[v.specials.Unk]
	}
	return v.tokens[id]
}

func (v *Vocab) Size() int {
	return len(v.tokens)
}

func (v *Vocab) Specials() types.Specials {
	return v.specials
}

// Decode spells out ids, dropping trailing padding.
func (v *Vocab) Decode(ids []int) []string {
	end := len(ids)
	for end > 0 && ids[end-1] == v.specials.Pad {
		end--
	}
	out := make([]string, end)
	for idx := 0; idx < end; idx++ {
		out[idx] = v.Token(ids[idx])
	}
	return out
}
