package pretrain_data

import (
	"math/rand"

	"github.com/wbrown/pretrain_data/types"
)

const (
	// MaskProb is the share of non-structural positions that become
	// prediction targets.
	MaskProb = 0.15
	// A masked position is replaced by [MASK] below maskReplaceProb, by a
	// random id below maskRandomProb and otherwise kept as is.
	maskReplaceProb = 0.8
	maskRandomProb  = 0.9
	maxRandomDraws  = 64
)

// Masker applies the 80/10/10 masked-language-model corruption.
type Masker struct {
	Specials  types.Specials
	VocabSize int
}

// Mask returns a corrupted copy of src and its target. The target holds
// the original id at every chosen position and Pad everywhere else;
// CLS and SEP are never chosen. src is left untouched.
func (m *Masker) Mask(rng *rand.Rand, src []int) ([]int, []int) {
	masked := make([]int, len(src))
	target := make([]int, len(src))
	copy(masked, src)
	for idx, token := range src {
		target[idx] = m.Specials.Pad
		if m.Specials.IsStructural(token) {
			continue
		}
		prob := rng.Float64()
		if prob >= MaskProb {
			continue
		}
		target[idx] = token
		prob /= MaskProb
		switch {
		case prob < maskReplaceProb:
			masked[idx] = m.Specials.Mask
		case prob < maskRandomProb:
			masked[idx] = m.randomId(rng, token)
		}
	}
	return masked, target
}

// randomId draws a non-reserved id uniformly from the vocabulary. A
// vocabulary with nothing but reserved ids keeps the original token.
func (m *Masker) randomId(rng *rand.Rand, fallback int) int {
	if m.VocabSize <= 0 {
		return fallback
	}
	for draw := 0; draw < maxRandomDraws; draw++ {
		if id := rng.Intn(m.VocabSize); !m.Specials.IsReserved(id) {
			return id
		}
	}
	return fallback
}
