package pretrain_data

import (
	"math/rand"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/wbrown/pretrain_data/corpus"
	"github.com/wbrown/pretrain_data/tokenizer"
	"github.com/wbrown/pretrain_data/types"
)

// LineBuilder builds one single-segment instance per corpus line for the
// lm, cls, mlm and s2s tasks. Lines are truncated to SeqLength; no [CLS]
// or [SEP] is added.
type LineBuilder struct {
	Task      types.Task
	SeqLength int
	Encoder   tokenizer.Encoder
	Specials  types.Specials
	// Masker is required for mlm.
	Masker   *Masker
	Sanitize bool
}

// BuildLine returns false for lines that yield no instance: lines too
// short for their task and lines that do not parse.
func (l *LineBuilder) BuildLine(rng *rand.Rand, line string) (types.Instance,
	bool) {
	switch l.Task {
	case types.TaskLM:
		return l.lm(line)
	case types.TaskCls:
		return l.cls(line)
	case types.TaskMLM:
		return l.mlm(rng, line)
	case types.TaskS2S:
		return l.s2s(line)
	}
	panic(errors.Errorf("%s is not a line task", l.Task))
}

func (l *LineBuilder) encode(text string) []int {
	if l.Sanitize {
		text = corpus.Sanitize(text)
	}
	return l.Encoder.Encode(text)
}

// lm predicts every next token: src is ids[:n-1], tgt is ids[1:].
func (l *LineBuilder) lm(line string) (types.Instance, bool) {
	ids := l.encode(line)
	if len(ids) < 2 {
		return types.Instance{}, false
	}
	src, tgt := ids[:len(ids)-1], ids[1:]
	return types.Instance{
		Src: types.PadTo(src, l.SeqLength, l.Specials.Pad),
		Tgt: types.PadTo(tgt, l.SeqLength, l.Specials.Pad),
		Seg: l.segments(len(src)),
	}, true
}

func (l *LineBuilder) cls(line string) (types.Instance, bool) {
	label, text, err := corpus.ParseLabeled(line)
	if err != nil {
		klog.V(2).Infof("skipping cls line: %v", err)
		return types.Instance{}, false
	}
	src := l.encode(text)
	if len(src) == 0 {
		return types.Instance{}, false
	}
	return types.Instance{
		Src:   types.PadTo(src, l.SeqLength, l.Specials.Pad),
		Label: label,
		Seg:   l.segments(len(src)),
	}, true
}

func (l *LineBuilder) mlm(rng *rand.Rand, line string) (types.Instance,
	bool) {
	ids := l.encode(line)
	if len(ids) == 0 {
		return types.Instance{}, false
	}
	if len(ids) > l.SeqLength {
		ids = ids[:l.SeqLength]
	}
	src, tgt := l.Masker.Mask(rng, ids)
	return types.Instance{
		Src: types.PadTo(src, l.SeqLength, l.Specials.Pad),
		Tgt: types.PadTo(tgt, l.SeqLength, l.Specials.Pad),
		Seg: l.segments(len(src)),
	}, true
}

func (l *LineBuilder) s2s(line string) (types.Instance, bool) {
	srcText, tgtText, err := corpus.ParsePair(line)
	if err != nil {
		klog.V(2).Infof("skipping s2s line: %v", err)
		return types.Instance{}, false
	}
	src, tgt := l.encode(srcText), l.encode(tgtText)
	if len(src) == 0 || len(tgt) == 0 {
		return types.Instance{}, false
	}
	return types.Instance{
		Src: types.PadTo(src, l.SeqLength, l.Specials.Pad),
		Tgt: types.PadTo(tgt, l.SeqLength, l.Specials.Pad),
		Seg: l.segments(len(src)),
	}, true
}

// segments marks the first n positions, capped at SeqLength, as segment A.
func (l *LineBuilder) segments(n int) []int {
	seg := make([]int, l.SeqLength)
	for idx := 0; idx < n && idx < l.SeqLength; idx++ {
		seg[idx] = types.SegmentA
	}
	return seg
}
