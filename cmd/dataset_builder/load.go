package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/wbrown/pretrain_data/shard"
)

func newLoadCmd() *cobra.Command {
	var cfg shard.LoaderConfig
	var steps int
	loadCmd := &cobra.Command{
		Use:   "load SHARD...",
		Short: "Stream batches from shards the way a trainer would",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := shard.Resolve(args...)
			if err != nil {
				return err
			}
			loader, err := shard.NewLoader(cfg, paths...)
			if err != nil {
				return err
			}
			defer loader.Close()

			begin := time.Now()
			rows := 0
			for step := 0; step < steps; step++ {
				if err = cmd.Context().Err(); err != nil {
					return err
				}
				batch, err := loader.NextBatch()
				if err != nil {
					return err
				}
				rows += batch.Size()
				klog.V(2).Infof("step %d: %d rows", step, batch.Size())
			}
			stats := loader.Stats()
			elapsed := time.Since(begin)
			fmt.Fprintf(cmd.OutOrStdout(),
				"%s %s batches, %s rows in %s (%d refills, %d passes, "+
					"repeat read %v)\n",
				loader.Task(), humanize.Comma(int64(steps)),
				humanize.Comma(int64(rows)), elapsed.Round(time.Millisecond),
				stats.Refills, stats.Passes, stats.RepeatRead)
			return nil
		},
	}
	flags := loadCmd.Flags()
	flags.IntVarP(&cfg.BatchSize, "batch_size", "b", 32, "rows per batch")
	flags.IntVar(&cfg.ProcID, "proc_id", 0, "index of this data process")
	flags.IntVar(&cfg.ProcNum, "proc_num", 1, "number of data processes")
	flags.IntVar(&cfg.BufferSize, "buffer_size", 100000,
		"instances held in memory")
	flags.BoolVar(&cfg.Shuffle, "shuffle", true, "shuffle each refill")
	flags.Int64Var(&cfg.Seed, "seed", 7, "shuffle seed")
	flags.IntVarP(&steps, "steps", "n", 100, "batches to read")
	return loadCmd
}
