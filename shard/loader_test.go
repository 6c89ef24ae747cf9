package shard

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/pretrain_data/types"
)

func newLoader(t *testing.T, cfg LoaderConfig, paths ...string) *Loader {
	loader, err := NewLoader(cfg, paths...)
	require.NoError(t, err)
	t.Cleanup(func() { loader.Close() })
	return loader
}

func TestLoaderConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.cbor")
	bad := []LoaderConfig{
		{BatchSize: 0, ProcNum: 1, BufferSize: 10},
		{BatchSize: 1, ProcNum: 0, BufferSize: 10},
		{BatchSize: 1, ProcNum: 2, ProcID: 2, BufferSize: 10},
		{BatchSize: 1, ProcNum: 2, ProcID: -1, BufferSize: 10},
		{BatchSize: 1, ProcNum: 1, BufferSize: 0},
	}
	for _, cfg := range bad {
		_, err := NewLoader(cfg, path)
		assert.Error(t, err, "%+v", cfg)
	}
	_, err := NewLoader(LoaderConfig{BatchSize: 1, ProcNum: 1,
		BufferSize: 1})
	assert.Error(t, err)
}

func TestLoaderWrapsWithoutRereading(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.cbor")
	writeShard(t, path, types.TaskCls, labeled(0, 4), labeled(4, 6))
	loader := newLoader(t, LoaderConfig{BatchSize: 3, ProcNum: 1,
		BufferSize: 100, Shuffle: true, Seed: 1}, path)

	for step := 0; step < 20; step++ {
		batch, err := loader.NextBatch()
		require.NoError(t, err)
		assert.Equal(t, types.TaskCls, batch.Task)
		assert.Equal(t, 3, batch.Size())
		assert.Len(t, batch.Label, 3)
		assert.Nil(t, batch.Tgt)
		for _, src := range batch.Src {
			assert.Len(t, src, testSeqLength)
		}
	}
	// Removing the shard proves later refills never touch the disk.
	require.NoError(t, os.Remove(path))
	for step := 0; step < 10; step++ {
		_, err := loader.NextBatch()
		require.NoError(t, err)
	}
	stats := loader.Stats()
	assert.Equal(t, 1, stats.Passes)
	assert.False(t, stats.RepeatRead)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, 10, stats.Buffered)
	assert.Greater(t, stats.Refills, 1)
}

func TestLoaderCoversBufferEachRefill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epoch.cbor")
	writeShard(t, path, types.TaskCls, labeled(0, 12))
	loader := newLoader(t, LoaderConfig{BatchSize: 4, ProcNum: 1,
		BufferSize: 100, Shuffle: true, Seed: 3}, path)

	for epoch := 0; epoch < 3; epoch++ {
		var seen []int
		for step := 0; step < 3; step++ {
			batch, err := loader.NextBatch()
			require.NoError(t, err)
			seen = append(seen, batch.Label...)
		}
		sort.Ints(seen)
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, seen,
			"epoch %d", epoch)
	}
}

func TestLoaderProcStride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procs.cbor")
	writeShard(t, path, types.TaskCls, labeled(0, 12))
	const procs = 3
	var seen []int
	for proc := 0; proc < procs; proc++ {
		loader := newLoader(t, LoaderConfig{BatchSize: 2, ProcID: proc,
			ProcNum: procs, BufferSize: 100, Shuffle: false}, path)
		for step := 0; step < 2; step++ {
			batch, err := loader.NextBatch()
			require.NoError(t, err)
			offset := step*procs*2 + proc*2
			assert.Equal(t, []int{offset, offset + 1}, batch.Label)
			seen = append(seen, batch.Label...)
		}
	}
	sort.Ints(seen)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, seen)
}

func TestLoaderSameSeedSameOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeded.cbor")
	writeShard(t, path, types.TaskCls, labeled(0, 16))
	cfg := LoaderConfig{BatchSize: 4, ProcNum: 1, BufferSize: 100,
		Shuffle: true, Seed: 42}
	first, second := newLoader(t, cfg, path), newLoader(t, cfg, path)
	for step := 0; step < 8; step++ {
		a, err := first.NextBatch()
		require.NoError(t, err)
		b, err := second.NextBatch()
		require.NoError(t, err)
		assert.Equal(t, a.Label, b.Label)
	}
}

func TestLoaderRepeatRead(t *testing.T) {
	dir := t.TempDir()
	first := Path(filepath.Join(dir, "big"), 0)
	second := Path(filepath.Join(dir, "big"), 1)
	writeShard(t, first, types.TaskCls, labeled(0, 4), labeled(4, 4))
	writeShard(t, second, types.TaskCls, labeled(8, 4), labeled(12, 4))
	loader := newLoader(t, LoaderConfig{BatchSize: 2, ProcNum: 1,
		BufferSize: 6, Shuffle: false}, first, second)

	// Each refill reads two chunks (8 instances > 6) and the stream
	// continues across both shards before starting over.
	var labels []int
	for step := 0; step < 12; step++ {
		batch, err := loader.NextBatch()
		require.NoError(t, err)
		labels = append(labels, batch.Label...)
	}
	expected := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
		0, 1, 2, 3, 4, 5, 6, 7}
	assert.Equal(t, expected, labels)
	stats := loader.Stats()
	assert.True(t, stats.RepeatRead)
	assert.Equal(t, 1, stats.Passes)
	assert.Equal(t, 3, stats.Refills)
}

func TestLoaderSmallerThanStride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.cbor")
	writeShard(t, path, types.TaskCls, labeled(0, 3))
	loader := newLoader(t, LoaderConfig{BatchSize: 4, ProcID: 1, ProcNum: 2,
		BufferSize: 100, Shuffle: false}, path)
	for step := 0; step < 5; step++ {
		batch, err := loader.NextBatch()
		require.NoError(t, err)
		// Rows start at ProcID*BatchSize = 4 and wrap modulo 3.
		assert.Equal(t, []int{1, 2, 0, 1}, batch.Label)
	}
}

func TestLoaderEmptyShard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.cbor")
	writeShard(t, path, types.TaskCls)
	loader := newLoader(t, LoaderConfig{BatchSize: 1, ProcNum: 1,
		BufferSize: 10}, path)
	_, err := loader.NextBatch()
	assert.ErrorIs(t, err, ErrEmptyShard)
}

func TestLoaderMixedTasks(t *testing.T) {
	dir := t.TempDir()
	cls := filepath.Join(dir, "cls.cbor")
	lm := filepath.Join(dir, "lm.cbor")
	writeShard(t, cls, types.TaskCls, labeled(0, 2))
	writeShard(t, lm, types.TaskLM, labeled(0, 2))
	loader := newLoader(t, LoaderConfig{BatchSize: 1, ProcNum: 1,
		BufferSize: 10}, cls, lm)
	_, err := loader.NextBatch()
	assert.Error(t, err)
}

func TestLoaderClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.cbor")
	writeShard(t, path, types.TaskCls, labeled(0, 2))
	loader, err := NewLoader(LoaderConfig{BatchSize: 1, ProcNum: 1,
		BufferSize: 10}, path)
	require.NoError(t, err)
	_, err = loader.NextBatch()
	require.NoError(t, err)
	require.NoError(t, loader.Close())
	require.NoError(t, loader.Close())
	_, err = loader.NextBatch()
	assert.Error(t, err)
}
