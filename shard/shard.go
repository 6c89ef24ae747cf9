// Package shard stores instances on disk and streams them back. A shard is
// a sequence of CBOR-encoded Chunks; CBOR items delimit themselves, so a
// shard is read sequentially without an index and can be appended to at
// any time.
package shard

import (
	"bufio"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/wbrown/pretrain_data/types"
)

// MaxChunkInstances caps the instances per chunk so a chunk always decodes
// within the CBOR decoder's default array limit.
const MaxChunkInstances = 1 << 16

// Chunk is one flushed batch of instances. Specials records the reserved
// ids of the vocabulary the instances were built with; shards written
// without it leave it nil.
type Chunk struct {
	Task      types.Task       `cbor:"1,keyasint"`
	Instances []types.Instance `cbor:"2,keyasint"`
	Specials  *types.Specials  `cbor:"3,keyasint,omitempty"`
}

// Writer appends chunks to a single shard file.
type Writer struct {
	path      string
	task      types.Task
	specials  types.Specials
	file      *os.File
	buf       *bufio.Writer
	enc       *cbor.Encoder
	instances int
	chunks    int
}

// Create truncates or creates the shard at path. Every chunk carries
// specials.
func Create(path string, task types.Task,
	specials types.Specials) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating shard")
	}
	buf := bufio.NewWriter(file)
	return &Writer{
		path:     path,
		task:     task,
		specials: specials,
		file:     file,
		buf:      buf,
		enc:      cbor.NewEncoder(buf),
	}, nil
}

// Write appends instances as one or more chunks and flushes them to the
// file, so memory held by the writer stays bounded.
func (w *Writer) Write(instances []types.Instance) error {
	for len(instances) > 0 {
		n := len(instances)
		if n > MaxChunkInstances {
			n = MaxChunkInstances
		}
		if err := w.enc.Encode(Chunk{Task: w.task,
			Instances: instances[:n], Specials: &w.specials}); err != nil {
			return errors.Wrapf(err, "encoding chunk %d of %s", w.chunks,
				w.path)
		}
		w.chunks++
		w.instances += n
		instances = instances[n:]
	}
	if err := w.buf.Flush(); err != nil {
		return errors.Wrapf(err, "writing %s", w.path)
	}
	return nil
}

func (w *Writer) Path() string {
	return w.path
}

// Instances is the number of instances written so far.
func (w *Writer) Instances() int {
	return w.instances
}

// Chunks is the number of chunks written so far.
func (w *Writer) Chunks() int {
	return w.chunks
}

// Close flushes, syncs and closes the shard.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	defer func() { w.file = nil }()
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return errors.Wrapf(err, "flushing %s", w.path)
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return errors.Wrapf(err, "syncing %s", w.path)
	}
	return errors.Wrapf(w.file.Close(), "closing %s", w.path)
}

// Reader reads the chunks of one shard in order.
type Reader struct {
	path string
	file *os.File
	dec  *cbor.Decoder
}

func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening shard")
	}
	return &Reader{
		path: path,
		file: file,
		dec:  cbor.NewDecoder(bufio.NewReader(file)),
	}, nil
}

func (r *Reader) Path() string {
	return r.path
}

// Next returns the next chunk, or io.EOF after the last one. A chunk cut
// short by a truncated file is an error.
func (r *Reader) Next() (*Chunk, error) {
	var chunk Chunk
	if err := r.dec.Decode(&chunk); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrapf(err, "decoding %s", r.path)
	}
	return &chunk, nil
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll returns every instance in the shard at path.
func ReadAll(path string) (types.Task, []types.Instance, error) {
	reader, err := Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer reader.Close()
	var task types.Task
	var instances []types.Instance
	for {
		chunk, err := reader.Next()
		if err == io.EOF {
			return task, instances, nil
		} else if err != nil {
			return 0, nil, err
		}
		task = chunk.Task
		instances = append(instances, chunk.Instances...)
	}
}
