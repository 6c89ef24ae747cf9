package shard

import (
	"io"
	"math/rand"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/wbrown/pretrain_data/types"
)

// ErrEmptyShard is returned when a full pass over the shards yields no
// instance.
var ErrEmptyShard = errors.New("shards hold no instances")

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize int
	// ProcID selects this consumer's slice of every stride of
	// BatchSize*ProcNum buffered instances.
	ProcID  int
	ProcNum int
	// BufferSize is the number of instances held in memory. Shards that
	// fit are read once and reshuffled in place; larger ones are streamed
	// repeatedly.
	BufferSize int
	Shuffle    bool
	Seed       int64
}

// LoaderStats reports how a Loader has used its shards.
type LoaderStats struct {
	// Passes counts completed reads through the whole shard list.
	Passes  int
	Refills int
	Chunks  int
	// RepeatRead is set once the shards proved larger than the buffer.
	RepeatRead bool
	Buffered   int
}

// Loader streams fixed-size batches from shards, endlessly. It is not safe
// for concurrent use; consumers sharing one Loader each pass their own
// ProcID through separate Loaders or coordinate access themselves.
type Loader struct {
	cfg    LoaderConfig
	paths  []string
	reader *Reader
	file   int
	task   types.Task
	typed  bool

	buffer     []types.Instance
	start, end int
	loaded     bool
	repeatRead bool
	closed     bool

	rng   *rand.Rand
	stats LoaderStats
}

// NewLoader validates cfg and prepares to read paths in order. No file is
// opened until the first batch is requested.
func NewLoader(cfg LoaderConfig, paths ...string) (*Loader, error) {
	switch {
	case len(paths) == 0:
		return nil, errors.New("loader needs at least one shard")
	case cfg.BatchSize < 1:
		return nil, errors.Errorf("batch size must be >= 1, got %d",
			cfg.BatchSize)
	case cfg.ProcNum < 1:
		return nil, errors.Errorf("proc num must be >= 1, got %d",
			cfg.ProcNum)
	case cfg.ProcID < 0 || cfg.ProcID >= cfg.ProcNum:
		return nil, errors.Errorf("proc id %d outside [0, %d)", cfg.ProcID,
			cfg.ProcNum)
	case cfg.BufferSize < 1:
		return nil, errors.Errorf("buffer size must be >= 1, got %d",
			cfg.BufferSize)
	}
	return &Loader{
		cfg:   cfg,
		paths: paths,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (l *Loader) stride() int {
	return l.cfg.BatchSize * l.cfg.ProcNum
}

// Task is the task of the loaded shards, known after the first batch.
func (l *Loader) Task() types.Task {
	return l.task
}

func (l *Loader) Stats() LoaderStats {
	stats := l.stats
	stats.RepeatRead = l.repeatRead
	stats.Buffered = len(l.buffer)
	return stats
}

// NextBatch returns this consumer's next BatchSize instances. When fewer
// than a stride of instances exist in all, rows wrap around the buffer.
func (l *Loader) NextBatch() (*types.Batch, error) {
	if l.closed {
		return nil, errors.New("loader is closed")
	}
	if !l.loaded || l.start+l.stride() > l.end {
		if err := l.fill(); err != nil {
			return nil, err
		}
	}
	rows := make([]types.Instance, l.cfg.BatchSize)
	offset := l.start + l.cfg.ProcID*l.cfg.BatchSize
	for idx := range rows {
		rows[idx] = l.buffer[(offset+idx)%len(l.buffer)]
	}
	l.start += l.stride()
	return types.BatchOf(l.task, rows), nil
}

// fill refreshes the buffer. Once the whole shard list has fit, it only
// reshuffles; otherwise it reads on from where the last fill stopped,
// wrapping to the first shard at the end of the last.
func (l *Loader) fill() error {
	l.stats.Refills++
	if l.loaded && !l.repeatRead {
		l.reset()
		return nil
	}
	l.buffer = l.buffer[:0]
	sinceRewind := 0
	rewound := false
	for {
		chunk, err := l.nextChunk()
		if err == io.EOF {
			l.stats.Passes++
			if !l.repeatRead {
				break
			}
			if rewound && sinceRewind == 0 {
				return ErrEmptyShard
			}
			sinceRewind, rewound = 0, true
			if err = l.rewind(); err != nil {
				return err
			}
			continue
		} else if err != nil {
			return err
		}
		if l.typed && chunk.Task != l.task {
			return errors.Errorf("%s holds %s instances, expected %s",
				l.reader.Path(), chunk.Task, l.task)
		}
		l.task, l.typed = chunk.Task, true
		l.stats.Chunks++
		sinceRewind += len(chunk.Instances)
		l.buffer = append(l.buffer, chunk.Instances...)
		if len(l.buffer) > l.cfg.BufferSize {
			if !l.repeatRead {
				klog.V(1).Infof("shards exceed the %d instance buffer, "+
					"streaming them repeatedly", l.cfg.BufferSize)
			}
			l.repeatRead = true
			break
		}
	}
	if len(l.buffer) == 0 {
		return ErrEmptyShard
	}
	l.loaded = true
	l.reset()
	return nil
}

func (l *Loader) reset() {
	if l.cfg.Shuffle {
		l.rng.Shuffle(len(l.buffer), func(i, j int) {
			l.buffer[i], l.buffer[j] = l.buffer[j], l.buffer[i]
		})
	}
	l.start = 0
	l.end = len(l.buffer)
}

// nextChunk reads across the shard list, returning io.EOF after the last
// chunk of the last shard.
func (l *Loader) nextChunk() (*Chunk, error) {
	for {
		if l.reader == nil {
			if l.file >= len(l.paths) {
				return nil, io.EOF
			}
			reader, err := Open(l.paths[l.file])
			if err != nil {
				return nil, err
			}
			l.reader = reader
		}
		chunk, err := l.reader.Next()
		if err != io.EOF {
			return chunk, err
		}
		if err = l.reader.Close(); err != nil {
			return nil, errors.Wrap(err, "closing shard")
		}
		l.reader = nil
		l.file++
	}
}

func (l *Loader) rewind() error {
	if l.reader != nil {
		if err := l.reader.Close(); err != nil {
			return errors.Wrap(err, "closing shard")
		}
		l.reader = nil
	}
	l.file = 0
	return nil
}

// Close releases the open shard. It is safe to call more than once.
func (l *Loader) Close() error {
	l.closed = true
	if l.reader == nil {
		return nil
	}
	err := l.reader.Close()
	l.reader = nil
	return err
}
