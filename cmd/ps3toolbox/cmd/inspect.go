package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matheusfillipe/ps3toolbox/internal/ps2"
	"github.com/matheusfillipe/ps3toolbox/internal/storage"
)

func init() {
	inspectCmd := &cobra.Command{
		Use:   "inspect SOURCE",
		Short: "Print the header fields of an encrypted container",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	srcF, srcPath, err := storage.Resolve(args[0])
	if err != nil {
		return err
	}
	p, err := srcF(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	r, _, err := p.OpenRead(ctx, srcPath)
	if err != nil {
		return err
	}
	defer r.Close()

	header, err := ps2.Inspect(r)
	if err != nil {
		return err
	}

	fmt.Printf("version:       %d.%d\n", header.VersionMajor, header.VersionMinor)
	fmt.Printf("mode:          %s\n", header.Mode)
	fmt.Printf("disc:          %d\n", header.Disc)
	fmt.Printf("content id:    %s\n", header.ContentID)
	fmt.Printf("original size: %s (%d bytes)\n", humanize.IBytes(uint64(header.OriginalSize)), header.OriginalSize)
	fmt.Printf("segment size:  %#x\n", header.SegmentSize)
	fmt.Printf("segments:      %d\n", header.SegmentCount)
	fmt.Printf("container:     %s\n", humanize.IBytes(uint64(ps2.ContainerSize(header.SegmentCount))))
	return nil
}
