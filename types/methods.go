package types

import (
	"fmt"
)

// Instance is one fixed-shape training example. The task decides which
// slots are meaningful: Tgt carries the MLM target, the next-token target or
// the seq2seq target, and Label carries is_random_next or the class label.
type Instance struct {
	Src   []int `cbor:"1,keyasint"`
	Tgt   []int `cbor:"2,keyasint,omitempty"`
	Label int   `cbor:"3,keyasint"`
	Seg   []int `cbor:"4,keyasint"`
}

// Validate checks that every sequence slot the task uses has exactly
// seqLength entries and that unused slots are empty.
func (ins *Instance) Validate(task Task, seqLength int) error {
	check := func(name Field, seq []int) error {
		if task.HasField(name) {
			if len(seq) != seqLength {
				return fmt.Errorf("%s instance: %s has %d entries, want %d",
					task, name, len(seq), seqLength)
			}
		} else if len(seq) != 0 {
			return fmt.Errorf("%s instance: unexpected %s of %d entries",
				task, name, len(seq))
		}
		return nil
	}
	if err := check(FieldSrc, ins.Src); err != nil {
		return err
	}
	if err := check(FieldTgt, ins.Tgt); err != nil {
		return err
	}
	return check(FieldSeg, ins.Seg)
}

// RealLength is the number of leading non-padding positions, judged by the
// segment array.
func (ins *Instance) RealLength() int {
	for idx, seg := range ins.Seg {
		if seg == SegmentPad {
			return idx
		}
	}
	return len(ins.Seg)
}

// PadTo right-pads seq with pad up to length, or truncates it when it is
// longer. The input slice is never modified in place.
func PadTo(seq []int, length int, pad int) []int {
	out := make([]int, length)
	n := copy(out, seq)
	for idx := n; idx < length; idx++ {
		out[idx] = pad
	}
	return out
}

// Batch holds batch_size instances split into one array per field. Fields
// the task does not carry are nil.
type Batch struct {
	Task  Task
	Src   [][]int
	Tgt   [][]int
	Label []int
	Seg   [][]int
}

// Size is the number of rows in the batch.
func (b *Batch) Size() int {
	return len(b.Src)
}

// BatchOf splits instances into per-field arrays.
func BatchOf(task Task, instances []Instance) *Batch {
	batch := &Batch{Task: task}
	batch.Src = make([][]int, 0, len(instances))
	batch.Seg = make([][]int, 0, len(instances))
	hasTgt := task.HasField(FieldTgt)
	hasLabel := task.HasField(FieldLabel)
	if hasTgt {
		batch.Tgt = make([][]int, 0, len(instances))
	}
	if hasLabel {
		batch.Label = make([]int, 0, len(instances))
	}
	for idx := range instances {
		ins := &instances[idx]
		batch.Src = append(batch.Src, ins.Src)
		batch.Seg = append(batch.Seg, ins.Seg)
		if hasTgt {
			batch.Tgt = append(batch.Tgt, ins.Tgt)
		}
		if hasLabel {
			batch.Label = append(batch.Label, ins.Label)
		}
	}
	return batch
}
