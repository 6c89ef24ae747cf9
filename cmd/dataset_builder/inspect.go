package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wbrown/pretrain_data/shard"
	"github.com/wbrown/pretrain_data/tokenizer"
	"github.com/wbrown/pretrain_data/types"
)

func newInspectCmd() *cobra.Command {
	var spec tokenizer.Spec
	var decode int
	inspectCmd := &cobra.Command{
		Use:   "inspect SHARD...",
		Short: "Summarise shards and optionally decode instances",
		Long: "Each SHARD is a shard file, a glob or a dataset base path. " +
			"With --decode N, the first N instances are spelled out with " +
			"the given tokenizer.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := shard.Resolve(args...)
			if err != nil {
				return err
			}
			// Shards record their reserved ids; these only cover shards
			// that do not.
			fallback := types.DefaultSpecials
			var dec tokenizer.Decoder
			if decode > 0 {
				enc, err := tokenizer.NewEncoder(spec)
				if err != nil {
					return err
				}
				fallback = enc.Specials()
				var ok bool
				if dec, ok = enc.(tokenizer.Decoder); !ok {
					return errors.Errorf("tokenizer %s cannot decode",
						spec.Tokenizer)
				}
			}
			stats, err := shard.Collect(paths, fallback, decode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			renderStats(out, stats)
			for idx := range stats.Samples {
				renderInstance(out, idx, stats.Task, &stats.Samples[idx],
					dec)
			}
			return nil
		},
	}
	flags := inspectCmd.Flags()
	flags.IntVar(&decode, "decode", 0, "instances to decode")
	flags.StringVar(&spec.Tokenizer, "tokenizer", "space",
		"tokenizer used to build the shards")
	flags.StringVar(&spec.VocabPath, "vocab", "", "vocabulary file")
	flags.StringVar(&spec.ModelPath, "spm_model", "", "sentencepiece model")
	return inspectCmd
}

func renderStats(out io.Writer, stats *shard.Stats) {
	var data [][]string
	for _, file := range stats.Files {
		data = append(data, []string{file.Path,
			humanize.Bytes(uint64(file.Bytes)),
			strconv.Itoa(file.Chunks),
			humanize.Comma(int64(file.Instances))})
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"SHARD", "SIZE", "CHUNKS", "INSTANCES"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintf(out, "\ntask %s, %s instances of length %d, %s\n",
		stats.Task, humanize.Comma(int64(stats.Instances)), stats.SeqLength,
		humanize.Bytes(uint64(stats.Bytes())))
	fmt.Fprintf(out, "real length %.2f ± %.2f\n", stats.LengthMean,
		stats.LengthStdDev)
	if stats.Task == types.TaskBert || stats.Task == types.TaskMLM {
		fmt.Fprintf(out, "masked %.2f%% of maskable positions\n",
			stats.MaskRatio*100)
	}
	if stats.Task.HasField(types.FieldLabel) && len(stats.Labels) > 0 {
		labels := tablewriter.NewWriter(out)
		labels.SetHeader([]string{"LABEL", "COUNT"})
		labels.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, label := range stats.SortedLabels() {
			labels.Append([]string{strconv.Itoa(label),
				humanize.Comma(int64(stats.Labels[label]))})
		}
		labels.Render()
	}
}

func renderInstance(out io.Writer, idx int, task types.Task,
	ins *types.Instance, dec tokenizer.Decoder) {
	fmt.Fprintf(out, "\n#%d", idx)
	if task.HasField(types.FieldLabel) {
		fmt.Fprintf(out, " label=%d", ins.Label)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "src: %s\n", dec.Decode(ins.Src))
	if task.HasField(types.FieldTgt) {
		fmt.Fprintf(out, "tgt: %s\n", dec.Decode(ins.Tgt))
	}
	fmt.Fprintf(out, "seg: %v\n", ins.Seg[:ins.RealLength()])
}
