package corpus

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	readBufferSize   = 1 << 20
	progressInterval = 1 << 16
)

// LineReader streams the lines that start inside [start, end) of a corpus.
// Lines are returned without their line terminator. Lines that are not valid
// UTF-8 are skipped and counted.
type LineReader struct {
	reader  *bufio.Reader
	offset  int64
	end     int64
	skipped int
	lines   int

	// Progress, when set, receives the bytes consumed since its last call.
	// Lines starting before ProgressFrom are not reported.
	Progress     func(n int64)
	ProgressFrom int64
	pending      int64
}

// NewLineReader positions a reader at start. With align set, a start that
// falls inside a line skips to the next line: the partial line belongs to the
// range that contains its first byte. end < 0 reads to EOF.
func NewLineReader(r io.ReadSeeker, start, end int64,
	align bool) (*LineReader, error) {
	lr := &LineReader{offset: start, end: end}
	seekTo := start
	if align && start > 0 {
		seekTo = start - 1
	}
	if _, err := r.Seek(seekTo, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "seeking to %d", seekTo)
	}
	lr.reader = bufio.NewReaderSize(r, readBufferSize)
	if seekTo < start {
		prev, err := lr.reader.ReadByte()
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "aligning to line start")
		}
		if err == nil && prev != '\n' {
			partial, err := lr.reader.ReadBytes('\n')
			if err != nil && err != io.EOF {
				return nil, errors.Wrap(err, "aligning to line start")
			}
			lr.offset += int64(len(partial))
		}
	}
	return lr, nil
}

// Offset is the byte offset of the next line.
func (lr *LineReader) Offset() int64 {
	return lr.offset
}

// Skipped counts lines dropped for invalid UTF-8.
func (lr *LineReader) Skipped() int {
	return lr.skipped
}

// Lines counts lines returned so far.
func (lr *LineReader) Lines() int {
	return lr.lines
}

// Next returns the next line and its starting offset, or io.EOF once the
// next line would start at or past end.
func (lr *LineReader) Next() (string, int64, error) {
	for {
		if lr.end >= 0 && lr.offset >= lr.end {
			lr.flushProgress()
			return "", lr.offset, io.EOF
		}
		raw, err := lr.reader.ReadBytes('\n')
		if len(raw) == 0 {
			lr.flushProgress()
			if err == nil || err == io.EOF {
				return "", lr.offset, io.EOF
			}
			return "", lr.offset, errors.Wrap(err, "reading corpus")
		}
		if err != nil && err != io.EOF {
			return "", lr.offset, errors.Wrap(err, "reading corpus")
		}
		lineStart := lr.offset
		lr.offset += int64(len(raw))
		if lineStart >= lr.ProgressFrom {
			lr.advance(int64(len(raw)))
		}
		if !utf8.Valid(raw) {
			lr.skipped++
			klog.V(2).Infof("skipping line at byte %d: invalid UTF-8",
				lineStart)
			continue
		}
		lr.lines++
		return strings.TrimRight(string(raw), "\r\n"), lineStart, nil
	}
}

func (lr *LineReader) advance(n int64) {
	if lr.Progress == nil {
		return
	}
	lr.pending += n
	if lr.pending >= progressInterval {
		lr.flushProgress()
	}
}

func (lr *LineReader) flushProgress() {
	if lr.Progress != nil && lr.pending > 0 {
		lr.Progress(lr.pending)
		lr.pending = 0
	}
}
