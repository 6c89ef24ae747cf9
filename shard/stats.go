package shard

import (
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/wbrown/pretrain_data/types"
)

// FileStats describes one shard file.
type FileStats struct {
	Path      string
	Bytes     int64
	Chunks    int
	Instances int
}

// Stats summarises a set of shards.
type Stats struct {
	Task      types.Task
	Files     []FileStats
	Instances int
	SeqLength int
	// Labels counts class labels, or is_random_next for pair tasks.
	Labels map[int]int
	// Real lengths are the non-padding prefixes of each instance.
	LengthMean   float64
	LengthStdDev float64
	// MaskRatio is the share of non-structural real positions carrying a
	// masked-language-model target.
	MaskRatio float64
	// Specials are the reserved ids read from the shards, or the fallback
	// given to Collect when the shards do not record them.
	Specials types.Specials
	// Samples holds the first instances read, up to the requested count.
	Samples []types.Instance
}

// Bytes is the combined size of the shard files.
func (s *Stats) Bytes() int64 {
	var total int64
	for _, file := range s.Files {
		total += file.Bytes
	}
	return total
}

// SortedLabels lists the labels seen, in ascending order.
func (s *Stats) SortedLabels() []int {
	labels := make([]int, 0, len(s.Labels))
	for label := range s.Labels {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	return labels
}

// Collect reads every instance of paths once. Reserved ids come from the
// shards themselves; fallback is used only for chunks that do not record
// them.
func Collect(paths []string, fallback types.Specials,
	samples int) (*Stats, error) {
	stats := &Stats{Labels: make(map[int]int), Specials: fallback}
	var lengths []float64
	var maskable, masked int
	typed := false
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrap(err, "stat shard")
		}
		file := FileStats{Path: path, Bytes: info.Size()}
		reader, err := Open(path)
		if err != nil {
			return nil, err
		}
		for {
			chunk, err := reader.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				reader.Close()
				return nil, err
			}
			if typed && chunk.Task != stats.Task {
				reader.Close()
				return nil, errors.Errorf("%s holds %s instances, "+
					"expected %s", path, chunk.Task, stats.Task)
			}
			stats.Task, typed = chunk.Task, true
			specials := fallback
			if chunk.Specials != nil {
				specials = *chunk.Specials
				stats.Specials = specials
			}
			file.Chunks++
			for idx := range chunk.Instances {
				ins := &chunk.Instances[idx]
				file.Instances++
				if stats.SeqLength == 0 {
					stats.SeqLength = len(ins.Src)
				}
				if len(stats.Samples) < samples {
					stats.Samples = append(stats.Samples, *ins)
				}
				if stats.Task.HasField(types.FieldLabel) {
					stats.Labels[ins.Label]++
				}
				realLength := ins.RealLength()
				lengths = append(lengths, float64(realLength))
				if stats.Task == types.TaskBert || stats.Task == types.TaskMLM {
					for pos := 0; pos < realLength && pos < len(ins.Tgt); pos++ {
						if specials.IsStructural(ins.Src[pos]) {
							continue
						}
						maskable++
						if ins.Tgt[pos] != specials.Pad {
							masked++
						}
					}
				}
			}
		}
		reader.Close()
		stats.Instances += file.Instances
		stats.Files = append(stats.Files, file)
	}
	switch {
	case len(lengths) == 1:
		stats.LengthMean = lengths[0]
	case len(lengths) > 1:
		stats.LengthMean, stats.LengthStdDev = stat.MeanStdDev(lengths, nil)
	}
	if maskable > 0 {
		stats.MaskRatio = float64(masked) / float64(maskable)
	}
	return stats, nil
}
