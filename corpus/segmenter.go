package corpus

import (
	"context"
	"io"
	"strings"

	"github.com/wbrown/pretrain_data/tokenizer"
	"github.com/wbrown/pretrain_data/types"
)

const ctxCheckInterval = 256

// Segmenter groups lines into documents. Each non-blank line becomes one
// sentence, or several when SplitSentences is set; a blank or
// whitespace-only line closes the current document. Sentences are
// shared with the encoder's cache and must not be modified.
type Segmenter struct {
	Encoder tokenizer.Encoder
	// BufferSize is how many documents are collected before they are
	// handed on. <= 0 hands everything on at the end.
	BufferSize     int
	Sanitize       bool
	SplitSentences bool
}

// SegmentStats counts what a Segment call saw.
type SegmentStats struct {
	Lines     int
	Documents int
	Sentences int
	// Skipped counts invalid UTF-8 lines.
	Skipped int
	// Dropped counts documents left open when the range ended.
	Dropped int
}

// Segment reads lines until the reader is exhausted. The document still
// open at the end is kept only when closeAtEnd is set; otherwise it
// belongs to whoever reads the range that closes it. flush receives each
// full buffer and owns the slice it is given.
func (s *Segmenter) Segment(ctx context.Context, lines *LineReader,
	closeAtEnd bool, flush func([]types.Document) error) (SegmentStats, error) {
	var stats SegmentStats
	bufferCap := s.BufferSize
	if bufferCap <= 0 || bufferCap > 4096 {
		bufferCap = 4096
	}
	buffer := make([]types.Document, 0, bufferCap)
	var document types.Document
	open := false

	emit := func() error {
		if len(document) > 0 {
			buffer = append(buffer, document)
			stats.Documents++
		}
		document = nil
		open = false
		if s.BufferSize > 0 && len(buffer) >= s.BufferSize {
			if err := flush(buffer); err != nil {
				return err
			}
			buffer = make([]types.Document, 0, bufferCap)
		}
		return nil
	}

	for {
		if stats.Lines%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		line, _, err := lines.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return stats, err
		}
		stats.Lines++
		if strings.TrimSpace(line) == "" {
			if err = emit(); err != nil {
				return stats, err
			}
			continue
		}
		open = true
		for _, text := range s.sentences(line) {
			if ids := s.Encoder.Encode(text); len(ids) > 0 {
				document = append(document, ids)
				stats.Sentences++
			}
		}
	}
	stats.Skipped = lines.Skipped()
	if open {
		if closeAtEnd {
			if err := emit(); err != nil {
				return stats, err
			}
		} else {
			stats.Dropped++
		}
	}
	if len(buffer) > 0 {
		if err := flush(buffer); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// SegmentLines segments the documents owned by the line range [from, to):
// those closed by a blank line inside it, plus the trailing document when
// to is the end of the corpus. Lines of a document opened before from are
// re-read so it is rebuilt whole.
func (s *Segmenter) SegmentLines(ctx context.Context, r io.ReadSeeker,
	idx *LineIndex, from, to int64, progress func(int64),
	flush func([]types.Document) error) (SegmentStats, error) {
	if from >= to {
		return SegmentStats{}, nil
	}
	head := idx.DocumentStart(from)
	lines, err := NewLineReader(r, idx.Offset(head), idx.Offset(to), false)
	if err != nil {
		return SegmentStats{}, err
	}
	lines.Progress = progress
	lines.ProgressFrom = idx.Offset(from)
	return s.Segment(ctx, lines, to >= idx.Count(), flush)
}

func (s *Segmenter) sentences(line string) []string {
	if s.Sanitize {
		line = Sanitize(line)
	}
	if s.SplitSentences {
		return SplitSentences(line)
	}
	return []string{line}
}
