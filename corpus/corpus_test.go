package corpus

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/pretrain_data/types"
)

// letterEncoder maps every word to the code point of its first letter.
type letterEncoder struct{}

func (letterEncoder) Encode(text string) types.Sentence {
	fields := strings.Fields(text)
	ids := make(types.Sentence, len(fields))
	for i, field := range fields {
		ids[i] = int([]rune(field)[0])
	}
	return ids
}

func (letterEncoder) VocabSize() int { return 0x250 }

func (letterEncoder) Specials() types.Specials { return types.DefaultSpecials }

const documentCorpus = "a b c\nd e\n\nf g\nh\ni j k\n\n\nl m\n"

func writeCorpus(t *testing.T, text string) string {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestPartitionRanges(t *testing.T) {
	parts, err := ByteRanges(10, 3)
	require.NoError(t, err)
	assert.Equal(t, []Partition{
		{Worker: 0, Unit: UnitBytes, Start: 0, End: 3},
		{Worker: 1, Unit: UnitBytes, Start: 3, End: 6},
		{Worker: 2, Unit: UnitBytes, Start: 6, End: 10},
	}, parts)

	for _, total := range []int64{0, 1, 7, 100, 1023} {
		for workers := 1; workers <= 9; workers++ {
			parts, err = LineRanges(total, workers)
			require.NoError(t, err)
			require.Len(t, parts, workers)
			var covered int64
			for i, p := range parts {
				assert.Equal(t, UnitLines, p.Unit)
				assert.Equal(t, covered, p.Start, "range %d is not contiguous", i)
				covered += p.Len()
			}
			assert.Equal(t, total, covered)
			assert.Equal(t, total, parts[workers-1].End)
		}
	}

	_, err = ByteRanges(10, 0)
	assert.Error(t, err)
	_, err = LineRanges(-1, 2)
	assert.Error(t, err)
}

func TestLineIndex(t *testing.T) {
	idx, err := IndexLines(writeCorpus(t, documentCorpus))
	require.NoError(t, err)
	assert.EqualValues(t, 9, idx.Count())
	assert.EqualValues(t, len(documentCorpus), idx.Size())
	assert.EqualValues(t, 0, idx.Offset(0))
	assert.EqualValues(t, 6, idx.Offset(1))
	assert.EqualValues(t, idx.Size(), idx.Offset(idx.Count()))
	assert.True(t, idx.Blank(2))
	assert.False(t, idx.Blank(3))

	assert.EqualValues(t, 1, idx.LineAt(1))
	assert.EqualValues(t, 1, idx.LineAt(6))
	assert.EqualValues(t, idx.Count(), idx.LineAt(idx.Size()))

	assert.EqualValues(t, 0, idx.DocumentStart(1))
	assert.EqualValues(t, 3, idx.DocumentStart(3))
	assert.EqualValues(t, 3, idx.DocumentStart(5))
	assert.EqualValues(t, 8, idx.DocumentStart(8))

	unterminated, err := IndexLines(writeCorpus(t, "x\n  \ny"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, unterminated.Count())
	assert.True(t, unterminated.Blank(1))

	empty, err := IndexLines(writeCorpus(t, ""))
	require.NoError(t, err)
	assert.EqualValues(t, 0, empty.Count())
	assert.EqualValues(t, 0, empty.DocumentStart(0))

	_, err = IndexLines(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func readAll(t *testing.T, lr *LineReader) []string {
	var lines []string
	for {
		line, _, err := lr.Next()
		if err == io.EOF {
			return lines
		}
		require.NoError(t, err)
		lines = append(lines, line)
	}
}

func TestLineReaderByteRanges(t *testing.T) {
	text := "alpha\nbe\ngamma gamma\n\nd\r\nepsilon"
	path := writeCorpus(t, text)
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	whole, err := NewLineReader(file, 0, -1, true)
	require.NoError(t, err)
	expected := readAll(t, whole)
	assert.Equal(t, []string{"alpha", "be", "gamma gamma", "", "d",
		"epsilon"}, expected)

	for workers := 1; workers <= len(text)+2; workers++ {
		parts, err := ByteRanges(int64(len(text)), workers)
		require.NoError(t, err)
		var got []string
		for _, p := range parts {
			lr, err := NewLineReader(file, p.Start, p.End, true)
			require.NoError(t, err)
			got = append(got, readAll(t, lr)...)
		}
		assert.Equal(t, expected, got, "%d workers", workers)
	}
}

func TestLineReaderSkipsInvalidUTF8(t *testing.T) {
	file, err := os.Open(writeCorpus(t, "ok\n\xff\xfe\nfine\n"))
	require.NoError(t, err)
	defer file.Close()
	lr, err := NewLineReader(file, 0, -1, false)
	require.NoError(t, err)
	var progressed int64
	lr.Progress = func(n int64) { progressed += n }
	assert.Equal(t, []string{"ok", "fine"}, readAll(t, lr))
	assert.Equal(t, 1, lr.Skipped())
	assert.Equal(t, 2, lr.Lines())
	assert.EqualValues(t, 11, progressed)
}

func segmentAll(t *testing.T, seg *Segmenter, path string,
	ranges []Partition, idx *LineIndex) []types.Document {
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	var docs []types.Document
	for _, p := range ranges {
		from, to := p.Start, p.End
		if p.Unit == UnitBytes {
			from, to = idx.LineAt(from), idx.LineAt(to)
		}
		_, err := seg.SegmentLines(context.Background(), file, idx, from, to,
			nil, func(buffer []types.Document) error {
				docs = append(docs, buffer...)
				return nil
			})
		require.NoError(t, err)
	}
	return docs
}

func TestSegmenterDocuments(t *testing.T) {
	path := writeCorpus(t, documentCorpus)
	idx, err := IndexLines(path)
	require.NoError(t, err)
	seg := &Segmenter{Encoder: letterEncoder{}}

	single, err := LineRanges(idx.Count(), 1)
	require.NoError(t, err)
	expected := segmentAll(t, seg, path, single, idx)
	assert.Equal(t, []types.Document{
		{{'a', 'b', 'c'}, {'d', 'e'}},
		{{'f', 'g'}, {'h'}, {'i', 'j', 'k'}},
		{{'l', 'm'}},
	}, expected)

	for workers := 1; workers <= 12; workers++ {
		lineParts, err := LineRanges(idx.Count(), workers)
		require.NoError(t, err)
		assert.Equal(t, expected, segmentAll(t, seg, path, lineParts, idx),
			"%d line workers", workers)

		byteParts, err := ByteRanges(idx.Size(), workers)
		require.NoError(t, err)
		assert.Equal(t, expected, segmentAll(t, seg, path, byteParts, idx),
			"%d byte workers", workers)
	}
}

func TestSegmenterBuffering(t *testing.T) {
	path := writeCorpus(t, documentCorpus)
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	lr, err := NewLineReader(file, 0, -1, false)
	require.NoError(t, err)
	seg := &Segmenter{Encoder: letterEncoder{}, BufferSize: 2}
	var sizes []int
	stats, err := seg.Segment(context.Background(), lr, true,
		func(buffer []types.Document) error {
			sizes = append(sizes, len(buffer))
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, sizes)
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, 6, stats.Sentences)
	assert.Equal(t, 9, stats.Lines)

	// Without closeAtEnd the trailing document is left to the next range.
	_, err = file.Seek(0, io.SeekStart)
	require.NoError(t, err)
	lr, err = NewLineReader(file, 0, -1, false)
	require.NoError(t, err)
	stats, err = seg.Segment(context.Background(), lr, false,
		func([]types.Document) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 1, stats.Dropped)
}

func TestSegmenterCancelled(t *testing.T) {
	file, err := os.Open(writeCorpus(t, documentCorpus))
	require.NoError(t, err)
	defer file.Close()
	lr, err := NewLineReader(file, 0, -1, false)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	seg := &Segmenter{Encoder: letterEncoder{}}
	_, err = seg.Segment(ctx, lr, true,
		func([]types.Document) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		Name     string
		Input    string
		Expected string
	}{
		{"trailing spaces", "foobar  ", "foobar"},
		{"extra spaces", "foo  bar", "foo bar"},
		{"prefix spaces", " foo bar", "foo bar"},
		{"tabs", "foo\t\tbar", "foo bar"},
		{"carriage return", "foo\r", "foo"},
		{"nfc", "cafe\u0301", "caf\u00e9"},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			assert.Equal(t, test.Expected, Sanitize(test.Input))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t,
		[]string{"This is a test.", "This is great.", "Have fun in life."},
		SplitSentences("This is a test. This is great. Have fun in life."))
	assert.Equal(t, []string{"no terminator"},
		SplitSentences("no terminator"))
}

func TestParseLabeled(t *testing.T) {
	label, text, err := ParseLabeled("1\thello world\n")
	require.NoError(t, err)
	assert.Equal(t, 1, label)
	assert.Equal(t, "hello world", text)

	label, text, err = ParseLabeled("3\tfirst\tignored")
	require.NoError(t, err)
	assert.Equal(t, 3, label)
	assert.Equal(t, "first", text)

	for _, bad := range []string{"no tab here", "x\ttext", ""} {
		_, _, err = ParseLabeled(bad)
		assert.ErrorIs(t, err, ErrBadLine, bad)
	}
}

func TestParsePair(t *testing.T) {
	src, tgt, err := ParsePair("hello world")
	require.NoError(t, err)
	assert.Equal(t, "hello", src)
	assert.Equal(t, "world", tgt)

	src, tgt, err = ParsePair("how are you\tfine thanks")
	require.NoError(t, err)
	assert.Equal(t, "how are you", src)
	assert.Equal(t, "fine thanks", tgt)

	for _, bad := range []string{"one", "one two three", "src\t ", ""} {
		_, _, err = ParsePair(bad)
		assert.ErrorIs(t, err, ErrBadLine, bad)
	}
}
