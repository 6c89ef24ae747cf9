package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	pretrain "github.com/wbrown/pretrain_data"
	"github.com/wbrown/pretrain_data/tokenizer"
	"github.com/wbrown/pretrain_data/types"
)

// buildFlags overlay the YAML config; only flags given on the command line
// take effect.
type buildFlags struct {
	config       string
	corpus       string
	output       string
	task         string
	tokenizer    string
	vocab        string
	spmModel     string
	lowerCase    bool
	seqLength    int
	dupFactor    int
	shortSeqProb float64
	docsBuffer   int
	seed         int64
	workers      int
	sanitize     bool
	split        bool
	progress     bool
	publish      string
}

func newBuildCmd() *cobra.Command {
	opts := &buildFlags{}
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build instance shards from a text corpus",
		Long: "Build reads a corpus of blank-line separated documents, or " +
			"one example per line for lm, cls, mlm and s2s, and writes " +
			"one shard per worker to <output>-<worker>.cbor.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.datasetConfig(cmd)
			if err != nil {
				return err
			}
			enc, err := tokenizer.NewEncoder(cfg.Encoder)
			if err != nil {
				return err
			}
			stats, err := pretrain.BuildAndSave(cmd.Context(), cfg, enc)
			if err != nil {
				return err
			}
			for _, worker := range stats.Workers {
				klog.V(1).Infof("%s: %s lines, %s documents, %s instances",
					worker.Shard, humanize.Comma(int64(worker.Lines)),
					humanize.Comma(int64(worker.Documents)),
					humanize.Comma(int64(worker.Instances)))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s instances in %d shards\n",
				humanize.Comma(int64(stats.Instances)), len(stats.Workers))
			return nil
		},
	}

	flags := buildCmd.Flags()
	flags.StringVarP(&opts.config, "config", "c", "",
		"YAML dataset configuration")
	flags.StringVarP(&opts.corpus, "corpus", "i", "",
		"corpus file or s3:// prefix")
	flags.StringVarP(&opts.output, "output", "o", "",
		"dataset base path")
	flags.StringVarP(&opts.task, "task", "t", "",
		"task [bert, lm, cls, mlm, nsp, s2s]")
	flags.StringVar(&opts.tokenizer, "tokenizer", "",
		"tokenizer [space, char, wordpiece, sentencepiece, bpe:<id>]")
	flags.StringVar(&opts.vocab, "vocab", "", "vocabulary file")
	flags.StringVar(&opts.spmModel, "spm_model", "", "sentencepiece model")
	flags.BoolVar(&opts.lowerCase, "lower_case", false,
		"lower-case text before wordpiece or sentencepiece")
	flags.IntVar(&opts.seqLength, "seq_length", 0, "instance length")
	flags.IntVar(&opts.dupFactor, "dup_factor", 0,
		"passes over each document or mlm line")
	flags.Float64Var(&opts.shortSeqProb, "short_seq_prob", 0,
		"probability of a shortened pair target")
	flags.IntVar(&opts.docsBuffer, "docs_buffer_size", 0,
		"documents gathered per flush")
	flags.Int64Var(&opts.seed, "seed", 0, "random seed")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "parallel workers")
	flags.BoolVar(&opts.sanitize, "sanitize", false,
		"normalize whitespace and unicode before tokenizing")
	flags.BoolVar(&opts.split, "split_sentences", false,
		"split corpus lines into sentences")
	flags.BoolVar(&opts.progress, "progress", false, "show a progress bar")
	flags.StringVar(&opts.publish, "publish", "",
		"s3:// prefix to upload finished shards to")
	return buildCmd
}

func (opts *buildFlags) datasetConfig(
	cmd *cobra.Command) (*pretrain.DatasetConfig, error) {
	cfg := pretrain.NewDatasetConfig()
	if opts.config != "" {
		var err error
		if cfg, err = pretrain.LoadDatasetConfig(opts.config); err != nil {
			return nil, err
		}
	}
	changed := cmd.Flags().Changed
	if changed("corpus") {
		cfg.CorpusPath = opts.corpus
	}
	if changed("output") {
		cfg.DatasetPath = opts.output
	}
	if changed("task") {
		task, err := types.ParseTask(opts.task)
		if err != nil {
			return nil, err
		}
		cfg.Task = task
	}
	if changed("tokenizer") {
		cfg.Encoder.Tokenizer = opts.tokenizer
	}
	if changed("vocab") {
		cfg.Encoder.VocabPath = opts.vocab
	}
	if changed("spm_model") {
		cfg.Encoder.ModelPath = opts.spmModel
	}
	if changed("lower_case") {
		cfg.Encoder.LowerCase = opts.lowerCase
	}
	if changed("seq_length") {
		cfg.SeqLength = opts.seqLength
	}
	if changed("dup_factor") {
		cfg.DupFactor = opts.dupFactor
	}
	if changed("short_seq_prob") {
		cfg.ShortSeqProb = opts.shortSeqProb
	}
	if changed("docs_buffer_size") {
		cfg.DocsBufferSize = opts.docsBuffer
	}
	if changed("seed") {
		cfg.Seed = opts.seed
	}
	if changed("workers") {
		cfg.Workers = opts.workers
	}
	if changed("sanitize") {
		cfg.Sanitize = opts.sanitize
	}
	if changed("split_sentences") {
		cfg.SplitSentences = opts.split
	}
	if changed("progress") {
		cfg.Progress = opts.progress
	}
	if changed("publish") {
		cfg.PublishURL = opts.publish
	}
	return cfg, cfg.Validate()
}
