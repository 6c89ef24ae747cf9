package pretrain_data

import (
	"context"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/wbrown/pretrain_data/corpus"
	"github.com/wbrown/pretrain_data/s3io"
	"github.com/wbrown/pretrain_data/shard"
	"github.com/wbrown/pretrain_data/tokenizer"
	"github.com/wbrown/pretrain_data/types"
)

const lineCtxInterval = 256

// WorkerStats reports what one build worker read and wrote.
type WorkerStats struct {
	Partition corpus.Partition
	Shard     string
	Lines     int
	// Rejected counts lines a line task could not build from.
	Rejected  int
	Skipped   int
	Documents int
	Dropped   int
	Instances int
	Chunks    int
}

// BuildStats summarises a build.
type BuildStats struct {
	Workers   []WorkerStats
	Instances int
	Elapsed   time.Duration
}

// Shards lists the written shard files in worker order.
func (s *BuildStats) Shards() []string {
	paths := make([]string, len(s.Workers))
	for idx, worker := range s.Workers {
		paths[idx] = worker.Shard
	}
	return paths
}

// Dataset builds shards from a corpus.
type Dataset struct {
	Config  *DatasetConfig
	Encoder tokenizer.Encoder
	// S3 serves s3:// corpus paths and publishing; a client is created
	// from the config when it is nil and one is needed.
	S3 s3io.Client
	// ProgressWriter receives the progress bar when Config.Progress is set.
	ProgressWriter io.Writer
}

// BuildAndSave builds the dataset cfg describes with enc.
func BuildAndSave(ctx context.Context, cfg *DatasetConfig,
	enc tokenizer.Encoder) (*BuildStats, error) {
	return (&Dataset{Config: cfg, Encoder: enc}).Build(ctx)
}

func (d *Dataset) s3Client() (s3io.Client, error) {
	if d.S3 == nil {
		client, err := s3io.NewClient(d.Config.S3Region,
			d.Config.S3Endpoint)
		if err != nil {
			return nil, err
		}
		d.S3 = client
	}
	return d.S3, nil
}

// Build partitions the corpus, runs one worker per partition, at most
// Config.Workers at a time, and waits for all of them. The first worker
// error cancels the rest and is returned.
func (d *Dataset) Build(ctx context.Context) (*BuildStats, error) {
	cfg := d.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	begin := time.Now()
	corpusPath := cfg.CorpusPath
	if s3io.IsURL(corpusPath) {
		client, err := d.s3Client()
		if err != nil {
			return nil, err
		}
		tmp, err := os.MkdirTemp("", "pretrain_data")
		if err != nil {
			return nil, errors.Wrap(err, "creating fetch directory")
		}
		defer os.RemoveAll(tmp)
		if corpusPath, err = s3io.FetchFile(ctx, client, corpusPath,
			tmp); err != nil {
			return nil, err
		}
	}

	var idx *corpus.LineIndex
	var size int64
	var partitions []corpus.Partition
	var err error
	if cfg.Task.DocumentOriented() {
		if idx, err = corpus.IndexLines(corpusPath); err != nil {
			return nil, err
		}
		size = idx.Size()
		if cfg.Task.LineRanged() {
			partitions, err = corpus.LineRanges(idx.Count(), cfg.Workers)
		} else {
			partitions, err = corpus.ByteRanges(size, cfg.Workers)
		}
	} else {
		stat, statErr := os.Stat(corpusPath)
		if statErr != nil {
			return nil, errors.Wrap(statErr, "stat corpus")
		}
		size = stat.Size()
		partitions, err = corpus.ByteRanges(size, cfg.Workers)
	}
	if err != nil {
		return nil, err
	}
	klog.Infof("Building %s dataset from %s (%s) with %d workers",
		cfg.Task, cfg.CorpusPath, humanize.Bytes(uint64(size)),
		cfg.Workers)

	var bar *progressbar.ProgressBar
	if cfg.Progress {
		writer := d.ProgressWriter
		if writer == nil {
			writer = os.Stderr
		}
		bar = progressbar.NewOptions64(size,
			progressbar.OptionSetWriter(writer),
			progressbar.OptionSetDescription(cfg.Task.String()),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionFullWidth())
	}

	stats := &BuildStats{Workers: make([]WorkerStats, len(partitions))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, partition := range partitions {
		partition := partition
		g.Go(func() error {
			w := &worker{
				cfg:       cfg,
				enc:       d.Encoder,
				partition: partition,
				index:     idx,
				rng: rand.New(rand.NewSource(
					cfg.Seed + int64(partition.Worker))),
				bar: bar,
			}
			workerStats, err := w.run(gctx, corpusPath)
			stats.Workers[partition.Worker] = workerStats
			return errors.Wrapf(err, "worker %d", partition.Worker)
		})
	}
	if err = g.Wait(); err != nil {
		return stats, err
	}
	if bar != nil {
		bar.Finish()
	}
	for _, worker := range stats.Workers {
		stats.Instances += worker.Instances
	}
	stats.Elapsed = time.Since(begin)
	klog.Infof("Wrote %s instances to %d shards in %s",
		humanize.Comma(int64(stats.Instances)), len(stats.Workers),
		stats.Elapsed.Round(time.Millisecond))

	if cfg.PublishURL != "" {
		client, err := d.s3Client()
		if err != nil {
			return stats, err
		}
		if err = s3io.Publish(ctx, client, cfg.PublishURL,
			stats.Shards()); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// worker owns one partition, one random stream and one shard.
type worker struct {
	cfg       *DatasetConfig
	enc       tokenizer.Encoder
	partition corpus.Partition
	index     *corpus.LineIndex
	rng       *rand.Rand
	bar       *progressbar.ProgressBar
	stats     WorkerStats
}

func (w *worker) progress(n int64) {
	if w.bar != nil {
		w.bar.Add64(n)
	}
}

func (w *worker) run(ctx context.Context,
	corpusPath string) (stats WorkerStats, err error) {
	w.stats = WorkerStats{
		Partition: w.partition,
		Shard:     shard.Path(w.cfg.DatasetPath, w.partition.Worker),
	}
	klog.V(1).Infof("Worker %d: %s", w.partition.Worker, w.partition)
	file, err := os.Open(corpusPath)
	if err != nil {
		return w.stats, errors.Wrap(err, "opening corpus")
	}
	defer file.Close()
	writer, err := shard.Create(w.stats.Shard, w.cfg.Task,
		w.enc.Specials())
	if err != nil {
		return w.stats, err
	}
	defer func() {
		if closeErr := writer.Close(); err == nil {
			err = closeErr
		}
		w.stats.Instances = writer.Instances()
		w.stats.Chunks = writer.Chunks()
		stats = w.stats
	}()

	if w.cfg.Task.DocumentOriented() {
		err = w.buildDocuments(ctx, file, writer)
	} else {
		err = w.buildLines(ctx, file, writer)
	}
	if err == nil {
		klog.V(1).Infof("Worker %d done: %s lines, %s instances",
			w.partition.Worker, humanize.Comma(int64(w.stats.Lines)),
			humanize.Comma(int64(writer.Instances())))
	}
	return w.stats, err
}

func (w *worker) buildDocuments(ctx context.Context, file *os.File,
	writer *shard.Writer) error {
	from, to := w.partition.Start, w.partition.End
	if w.partition.Unit == corpus.UnitBytes {
		from, to = w.index.LineAt(from), w.index.LineAt(to)
	}
	builder := w.cfg.PairBuilder(w.enc)
	segmenter := &corpus.Segmenter{
		Encoder:        w.enc,
		BufferSize:     w.cfg.DocsBufferSize,
		Sanitize:       w.cfg.Sanitize,
		SplitSentences: w.cfg.SplitSentences,
	}
	segStats, err := segmenter.SegmentLines(ctx, file, w.index, from, to,
		w.progress, func(docs []types.Document) error {
			instances := builder.Build(w.rng, docs)
			klog.V(2).Infof("Worker %d: %s documents -> %s instances",
				w.partition.Worker, humanize.Comma(int64(len(docs))),
				humanize.Comma(int64(len(instances))))
			return writer.Write(instances)
		})
	w.stats.Lines = segStats.Lines
	w.stats.Skipped = segStats.Skipped
	w.stats.Documents = segStats.Documents
	w.stats.Dropped = segStats.Dropped
	return err
}

func (w *worker) buildLines(ctx context.Context, file *os.File,
	writer *shard.Writer) error {
	builder := w.cfg.LineBuilder(w.enc)
	passes := 1
	if w.cfg.Task == types.TaskMLM {
		passes = w.cfg.DupFactor
	}
	flushAt := w.cfg.DocsBufferSize
	var pending []types.Instance
	for pass := 0; pass < passes; pass++ {
		lines, err := corpus.NewLineReader(file, w.partition.Start,
			w.partition.End, true)
		if err != nil {
			return err
		}
		if pass == 0 {
			lines.Progress = w.progress
		}
		for count := 0; ; count++ {
			if count%lineCtxInterval == 0 {
				if err = ctx.Err(); err != nil {
					return err
				}
			}
			line, _, err := lines.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return err
			}
			w.stats.Lines++
			instance, ok := builder.BuildLine(w.rng, line)
			if !ok {
				w.stats.Rejected++
				continue
			}
			pending = append(pending, instance)
			if flushAt > 0 && len(pending) >= flushAt {
				if err = writer.Write(pending); err != nil {
					return err
				}
				pending = pending[:0]
			}
		}
		w.stats.Skipped += lines.Skipped()
	}
	return writer.Write(pending)
}
