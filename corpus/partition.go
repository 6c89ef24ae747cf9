// Package corpus reads raw text corpora: it splits a corpus into disjoint
// per-worker ranges, streams lines out of a range, and groups lines into
// documents.
package corpus

import (
	"fmt"

	"github.com/pkg/errors"
)

// Unit is what a Partition counts.
type Unit uint8

const (
	UnitBytes Unit = iota
	UnitLines
)

func (u Unit) String() string {
	if u == UnitLines {
		return "lines"
	}
	return "bytes"
}

// Partition is the half-open range [Start, End) of the corpus owned by one
// worker.
type Partition struct {
	Worker int
	Unit   Unit
	Start  int64
	End    int64
}

func (p Partition) Len() int64 {
	return p.End - p.Start
}

func (p Partition) String() string {
	return fmt.Sprintf("worker %d: %s [%d, %d)", p.Worker, p.Unit,
		p.Start, p.End)
}

// ByteRanges splits size bytes into workers contiguous ranges.
func ByteRanges(size int64, workers int) ([]Partition, error) {
	return split(size, workers, UnitBytes)
}

// LineRanges splits a corpus of lines lines into workers contiguous ranges.
func LineRanges(lines int64, workers int) ([]Partition, error) {
	return split(lines, workers, UnitLines)
}

// split uses [i*total/W, (i+1)*total/W), so the last range always ends at
// total and the ranges tile [0, total) exactly.
func split(total int64, workers int, unit Unit) ([]Partition, error) {
	if workers < 1 {
		return nil, errors.Errorf("worker count must be >= 1, got %d",
			workers)
	}
	if total < 0 {
		return nil, errors.Errorf("corpus size must be >= 0, got %d", total)
	}
	w := int64(workers)
	partitions := make([]Partition, workers)
	for i := int64(0); i < w; i++ {
		partitions[i] = Partition{
			Worker: int(i),
			Unit:   unit,
			Start:  i * total / w,
			End:    (i + 1) * total / w,
		}
	}
	return partitions, nil
}
