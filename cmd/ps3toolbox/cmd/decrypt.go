package cmd

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matheusfillipe/ps3toolbox/internal/batch"
	"github.com/matheusfillipe/ps3toolbox/internal/storage"
)

func init() {
	decryptCmd := &cobra.Command{
		Use:   "decrypt SOURCE [DEST]",
		Short: "Decrypt a .bin.enc container back into a PS2 ISO",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runDecrypt,
	}

	rootCmd.AddCommand(decryptCmd)
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	source := args[0]
	dest := ""
	if len(args) > 1 {
		dest = args[1]
	} else {
		dest = strings.TrimSuffix(source, ".bin.enc") + ".iso"
	}

	srcF, srcPath, err := storage.Resolve(source)
	if err != nil {
		return err
	}
	dstF, dstPath, err := storage.Resolve(dest)
	if err != nil {
		return err
	}

	table, err := cfg.KeyTable()
	if err != nil {
		return err
	}
	runner := batch.NewRunner(batch.Config{
		Workers:        1,
		SegmentWorkers: cfg.EffectiveSegmentWorkers(),
		Keys:           table,
		Progress:       consoleProgress,
	})

	outcomes := runner.DecryptAll(ctx, srcF, dstF, []batch.Job{{
		Source: srcPath,
		Dest:   dstPath,
	}})
	finishProgress()

	o := outcomes[0]
	if o.Failed() {
		color.Red("✗ %s: %v", source, o.Err)
		return o.Err
	}
	color.Green("✓ decrypted %s (%s) -> %s", source, humanize.IBytes(uint64(o.Bytes)), dest)
	return nil
}
