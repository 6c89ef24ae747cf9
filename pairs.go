package pretrain_data

import (
	"math/rand"

	"github.com/wbrown/pretrain_data/types"
)

const (
	// pairReserved counts the [CLS] A [SEP] B [SEP] markers.
	pairReserved = 3
	// randomDocDraws bounds the search for a document other than the
	// current one when sampling a random next segment.
	randomDocDraws = 10
)

// PairBuilder turns documents into two-segment next-sentence instances.
// With a Masker the instances also carry a masked-language-model target
// (bert); without one they carry only the is_random_next label (nsp).
type PairBuilder struct {
	SeqLength    int
	DupFactor    int
	ShortSeqProb float64
	Specials     types.Specials
	Masker       *Masker
}

// Build makes DupFactor passes over docs; every pass samples chunk sizes,
// split points and random next segments afresh. Documents without
// sentences are ignored.
func (p *PairBuilder) Build(rng *rand.Rand,
	docs []types.Document) []types.Instance {
	docs = nonEmpty(docs)
	var instances []types.Instance
	for dup := 0; dup < p.DupFactor; dup++ {
		for docIdx := range docs {
			instances = p.buildDocument(rng, docs, docIdx, instances)
		}
	}
	return instances
}

func (p *PairBuilder) buildDocument(rng *rand.Rand, docs []types.Document,
	docIdx int, instances []types.Instance) []types.Instance {
	document := docs[docIdx]
	maxTokens := p.SeqLength - pairReserved
	targetLength := maxTokens
	if rng.Float64() < p.ShortSeqProb {
		targetLength = 2 + rng.Intn(maxTokens-1)
	}

	var chunk []types.Sentence
	chunkLength := 0
	// cursor is rewound by at most len(chunk)-1 sentences, so every
	// iteration consumes at least one sentence.
	for cursor := 0; cursor < len(document); cursor++ {
		chunk = append(chunk, document[cursor])
		chunkLength += len(document[cursor])
		if cursor != len(document)-1 && chunkLength < targetLength {
			continue
		}
		aEnd := 1
		if len(chunk) >= 2 {
			aEnd = 1 + rng.Intn(len(chunk)-1)
		}
		tokensA := flatten(chunk[:aEnd])
		var tokensB []int
		isRandomNext := 0
		if len(chunk) == 1 || rng.Float64() < 0.5 {
			isRandomNext = 1
			tokensB = randomNext(rng, docs, docIdx,
				targetLength-len(tokensA))
			cursor -= len(chunk) - aEnd
		} else {
			tokensB = flatten(chunk[aEnd:])
		}
		tokensA, tokensB = TruncatePair(rng, tokensA, tokensB, maxTokens)
		instances = append(instances,
			p.assemble(rng, tokensA, tokensB, isRandomNext))
		chunk = chunk[:0]
		chunkLength = 0
	}
	return instances
}

// randomNext collects sentences from a random start in a document other
// than docIdx, when one can be found, until targetLength ids are gathered
// or the document ends.
func randomNext(rng *rand.Rand, docs []types.Document, docIdx,
	targetLength int) []int {
	randomIdx := docIdx
	for draw := 0; draw < randomDocDraws; draw++ {
		randomIdx = rng.Intn(len(docs))
		if randomIdx != docIdx {
			break
		}
	}
	randomDoc := docs[randomIdx]
	var tokens []int
	for idx := rng.Intn(len(randomDoc)); idx < len(randomDoc); idx++ {
		tokens = append(tokens, randomDoc[idx]...)
		if len(tokens) >= targetLength {
			break
		}
	}
	return tokens
}

// assemble lays out [CLS] A [SEP] B [SEP], masks it when masking is on, and
// pads every field to SeqLength.
func (p *PairBuilder) assemble(rng *rand.Rand, tokensA, tokensB []int,
	isRandomNext int) types.Instance {
	src := make([]int, 0, p.SeqLength)
	seg := make([]int, 0, p.SeqLength)
	src = append(src, p.Specials.Cls)
	src = append(src, tokensA...)
	src = append(src, p.Specials.Sep)
	for len(seg) < len(src) {
		seg = append(seg, types.SegmentA)
	}
	src = append(src, tokensB...)
	src = append(src, p.Specials.Sep)
	for len(seg) < len(src) {
		seg = append(seg, types.SegmentB)
	}

	instance := types.Instance{Label: isRandomNext}
	if p.Masker != nil {
		var tgt []int
		src, tgt = p.Masker.Mask(rng, src)
		instance.Tgt = types.PadTo(tgt, p.SeqLength, p.Specials.Pad)
	}
	instance.Src = types.PadTo(src, p.SeqLength, p.Specials.Pad)
	instance.Seg = types.PadTo(seg, p.SeqLength, types.SegmentPad)
	return instance
}

func nonEmpty(docs []types.Document) []types.Document {
	for idx := range docs {
		if len(docs[idx]) == 0 {
			kept := make([]types.Document, 0, len(docs)-1)
			for _, doc := range docs {
				if len(doc) > 0 {
					kept = append(kept, doc)
				}
			}
			return kept
		}
	}
	return docs
}

func flatten(sentences []types.Sentence) []int {
	length := 0
	for _, sentence := range sentences {
		length += len(sentence)
	}
	tokens := make([]int, 0, length)
	for _, sentence := range sentences {
		tokens = append(tokens, sentence...)
	}
	return tokens
}
