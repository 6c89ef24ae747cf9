package pretrain_data

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/wbrown/pretrain_data/tokenizer"
	"github.com/wbrown/pretrain_data/types"
)

// DatasetConfig describes one dataset build.
type DatasetConfig struct {
	CorpusPath string `yaml:"corpus_path"`
	// DatasetPath is the shard base path; worker i writes
	// <dataset_path>-<i>.cbor.
	DatasetPath string     `yaml:"dataset_path"`
	Task        types.Task `yaml:"task"`

	Encoder tokenizer.Spec `yaml:",inline"`

	SeqLength    int     `yaml:"seq_length"`
	DupFactor    int     `yaml:"dup_factor"`
	ShortSeqProb float64 `yaml:"short_seq_prob"`
	// DocsBufferSize is the number of documents gathered before they are
	// built and flushed; line tasks flush every DocsBufferSize instances.
	DocsBufferSize int   `yaml:"docs_buffer_size"`
	Seed           int64 `yaml:"seed"`
	Workers        int   `yaml:"workers"`

	Sanitize       bool `yaml:"sanitize"`
	SplitSentences bool `yaml:"split_sentences"`
	Progress       bool `yaml:"progress"`

	// PublishURL, when set, is an s3:// prefix the finished shards are
	// uploaded to.
	PublishURL string `yaml:"publish"`
	S3Region   string `yaml:"s3_region"`
	S3Endpoint string `yaml:"s3_endpoint"`
}

// NewDatasetConfig returns the defaults every build starts from.
func NewDatasetConfig() *DatasetConfig {
	return &DatasetConfig{
		Task: types.TaskBert,
		Encoder: tokenizer.Spec{
			Tokenizer: "space",
			CacheSize: tokenizer.DefaultCacheSize,
		},
		SeqLength:      128,
		DupFactor:      5,
		ShortSeqProb:   0.1,
		DocsBufferSize: 100000,
		Seed:           7,
		Workers:        1,
	}
}

// LoadDatasetConfig reads a YAML file over the defaults. Unknown keys are
// rejected.
func LoadDatasetConfig(path string) (*DatasetConfig, error) {
	cfg := NewDatasetConfig()
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening config")
	}
	defer file.Close()
	if err = cfg.Decode(file); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, nil
}

// Decode overlays YAML from r onto cfg.
func (cfg *DatasetConfig) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Validate checks the settings a build depends on.
func (cfg *DatasetConfig) Validate() error {
	minLength := 1
	if cfg.Task.DocumentOriented() {
		// [CLS] A [SEP] B [SEP] with non-empty A and B.
		minLength = pairReserved + 2
	}
	switch {
	case cfg.CorpusPath == "":
		return errors.New("corpus_path is required")
	case cfg.DatasetPath == "":
		return errors.New("dataset_path is required")
	case cfg.SeqLength < minLength:
		return errors.Errorf("seq_length must be >= %d for %s, got %d",
			minLength, cfg.Task, cfg.SeqLength)
	case cfg.DupFactor < 1:
		return errors.Errorf("dup_factor must be >= 1, got %d",
			cfg.DupFactor)
	case cfg.ShortSeqProb < 0 || cfg.ShortSeqProb > 1:
		return errors.Errorf("short_seq_prob must be in [0, 1], got %g",
			cfg.ShortSeqProb)
	case cfg.DocsBufferSize < 0:
		return errors.Errorf("docs_buffer_size must be >= 0, got %d",
			cfg.DocsBufferSize)
	case cfg.Workers < 1:
		return errors.Errorf("workers must be >= 1, got %d", cfg.Workers)
	}
	return nil
}

// PairBuilder configures the document builder for bert and nsp. dup_factor
// applies to bert only; nsp makes a single pass over its documents.
func (cfg *DatasetConfig) PairBuilder(enc tokenizer.Encoder) *PairBuilder {
	builder := &PairBuilder{
		SeqLength:    cfg.SeqLength,
		DupFactor:    1,
		ShortSeqProb: cfg.ShortSeqProb,
		Specials:     enc.Specials(),
	}
	if cfg.Task == types.TaskBert {
		builder.DupFactor = cfg.DupFactor
		builder.Masker = NewMasker(enc)
	}
	return builder
}

// LineBuilder configures the line builder for lm, cls, mlm and s2s.
func (cfg *DatasetConfig) LineBuilder(enc tokenizer.Encoder) *LineBuilder {
	builder := &LineBuilder{
		Task:      cfg.Task,
		SeqLength: cfg.SeqLength,
		Encoder:   enc,
		Specials:  enc.Specials(),
		Sanitize:  cfg.Sanitize,
	}
	if cfg.Task == types.TaskMLM {
		builder.Masker = NewMasker(enc)
	}
	return builder
}

// NewMasker masks against enc's vocabulary.
func NewMasker(enc tokenizer.Encoder) *Masker {
	return &Masker{Specials: enc.Specials(), VocabSize: enc.VocabSize()}
}
