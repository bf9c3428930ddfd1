package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matheusfillipe/ps3toolbox/internal/batch"
	"github.com/matheusfillipe/ps3toolbox/internal/storage"
)

var (
	batchWorkers int
	batchMode    string
	batchDest    string
)

func init() {
	batchCmd := &cobra.Command{
		Use:   "batch-encrypt DIR",
		Short: "Encrypt every PS2 ISO in a directory",
		Long: `Encrypt every .iso file found in DIR over a bounded worker pool.
Disc numbers are detected from filenames. One file's failure does not
abort the others; the command exits nonzero if any job failed.`,
		Args: cobra.ExactArgs(1),
		RunE: runBatchEncrypt,
	}

	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "concurrent file jobs (default: from config)")
	batchCmd.Flags().StringVar(&batchMode, "mode", "", "console mode: cex or dex")
	batchCmd.Flags().StringVar(&batchDest, "dest", "", "destination directory (default: DIR)")

	rootCmd.AddCommand(batchCmd)
}

func runBatchEncrypt(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	dir := args[0]
	dest := batchDest
	if dest == "" {
		dest = dir
	}

	mode, err := resolveMode(batchMode)
	if err != nil {
		return err
	}

	workers := batchWorkers
	if workers <= 0 {
		workers = cfg.Workers
	}

	srcF, srcDir, err := storage.Resolve(dir)
	if err != nil {
		return err
	}
	dstF, dstDir, err := storage.Resolve(dest)
	if err != nil {
		return err
	}

	scanP, err := srcF(ctx)
	if err != nil {
		return err
	}
	jobs, err := batch.ScanISOJobs(ctx, scanP, srcDir, dstDir, mode)
	_ = scanP.Close()
	if err != nil {
		return err
	}

	table, err := cfg.KeyTable()
	if err != nil {
		return err
	}
	runner := batch.NewRunner(batch.Config{
		Workers:        workers,
		SegmentWorkers: cfg.EffectiveSegmentWorkers(),
		Keys:           table,
		ValidateSource: true,
	})

	fmt.Printf("encrypting %d files with %d workers\n", len(jobs), workers)
	outcomes := runner.EncryptAll(ctx, srcF, dstF, jobs)

	for _, o := range outcomes {
		if o.Failed() {
			color.Red("✗ %-40s %v", o.Job.Source, o.Err)
		} else {
			color.Green("✓ %-40s disc %d  %8s  %s",
				o.Job.Source, o.Job.Disc, humanize.IBytes(uint64(o.Bytes)), o.Duration.Round(time.Millisecond))
		}
	}

	if failed := batch.FailedCount(outcomes); failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(outcomes))
	}
	fmt.Printf("all %d jobs succeeded\n", len(outcomes))
	return nil
}
