package corpus

import (
	"bytes"
	"os"
	"sort"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// LineIndex records where every line of a corpus starts and whether it is
// blank. Document-oriented workers use it to turn line or byte ranges into
// seek offsets and to find where the document straddling their range start
// begins.
type LineIndex struct {
	offsets []int64
	blank   []bool
	size    int64
}

// IndexLines memory-maps path and indexes its lines. A trailing segment
// without a newline counts as a line.
func IndexLines(path string) (*LineIndex, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening corpus")
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat corpus")
	}
	if stat.Size() == 0 {
		return &LineIndex{}, nil
	}
	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %s", path)
	}
	defer data.Unmap()
	return indexBytes(data), nil
}

func indexBytes(data []byte) *LineIndex {
	idx := &LineIndex{
		offsets: make([]int64, 0, len(data)/64+1),
		blank:   make([]bool, 0, len(data)/64+1),
		size:    int64(len(data)),
	}
	start := 0
	for start < len(data) {
		end := bytes.IndexByte(data[start:], '\n')
		next := len(data)
		if end >= 0 {
			next = start + end + 1
		}
		idx.offsets = append(idx.offsets, int64(start))
		idx.blank = append(idx.blank,
			len(bytes.TrimSpace(data[start:next])) == 0)
		start = next
	}
	return idx
}

// Count is the number of lines.
func (idx *LineIndex) Count() int64 {
	return int64(len(idx.offsets))
}

// Size is the corpus size in bytes.
func (idx *LineIndex) Size() int64 {
	return idx.size
}

// Offset is the byte offset where line starts; Offset(Count()) is the
// corpus size.
func (idx *LineIndex) Offset(line int64) int64 {
	if line >= idx.Count() {
		return idx.size
	}
	if line < 0 {
		return 0
	}
	return idx.offsets[line]
}

func (idx *LineIndex) Blank(line int64) bool {
	return idx.blank[line]
}

// LineAt is the first line starting at or after offset.
func (idx *LineIndex) LineAt(offset int64) int64 {
	return int64(sort.Search(len(idx.offsets), func(i int) bool {
		return idx.offsets[i] >= offset
	}))
}

// DocumentStart walks back from line over non-blank lines and returns the
// first line of the document that is open when line is reached.
func (idx *LineIndex) DocumentStart(line int64) int64 {
	if line > idx.Count() {
		line = idx.Count()
	}
	for line > 0 && !idx.blank[line-1] {
		line--
	}
	return line
}
