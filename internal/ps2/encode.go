package ps2

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/matheusfillipe/ps3toolbox/internal/iso"
	"github.com/matheusfillipe/ps3toolbox/internal/keys"
	"github.com/matheusfillipe/ps3toolbox/internal/progress"
)

// PlaceholderContentID is used when the caller does not supply one.
const PlaceholderContentID = "UP0001-PS2U10000_00-0000111122223333"

// maxBatchSegments caps the number of segments held in memory at once,
// keeping encode memory bounded regardless of image size.
const maxBatchSegments = 64

// EncodeOptions configures one encode operation.
type EncodeOptions struct {
	Mode      keys.Mode
	Disc      int
	ContentID string
	// Workers bounds the per-segment encrypt/digest parallelism.
	// Values below 1 mean sequential.
	Workers  int
	Progress progress.Func
	// Keys overrides the built-in derivation table. Nil uses the default.
	Keys *keys.Table
}

// Encode wraps srcSize bytes from src into an encrypted container on
// dst: pad the image to the alignment boundary, prepend the LIMG
// sub-header, split into fixed segments, encrypt and digest each, and
// interleave meta blocks with ciphertext behind the leading header.
//
// The operation is single-pass and streaming; dst never receives a
// partial pair. Cancellation is honored between segment batches.
func Encode(ctx context.Context, dst io.Writer, src io.Reader, srcSize int64, opts EncodeOptions) (Header, error) {
	table := opts.Keys
	if table == nil {
		table = keys.DefaultTable()
	}
	material, err := table.Derive(opts.Mode, opts.Disc)
	if err != nil {
		return Header{}, err
	}
	sc, err := NewSegmentCipher(material)
	if err != nil {
		return Header{}, err
	}

	contentID := opts.ContentID
	if contentID == "" {
		contentID = PlaceholderContentID
	}

	limgBuf, _ := BuildLimg(srcSize)
	padded := iso.PadSize(srcSize, AlignBoundary)
	payloadSize := LimgSize + padded
	segmentCount := int(payloadSize / SegmentSize)

	header := Header{
		VersionMajor: versionMajor,
		VersionMinor: versionMinor,
		Mode:         opts.Mode,
		Disc:         opts.Disc,
		ContentID:    contentID,
		OriginalSize: srcSize,
		SegmentSize:  SegmentSize,
		SegmentCount: segmentCount,
	}
	headerBuf, err := BuildHeader(header)
	if err != nil {
		return Header{}, err
	}
	if _, err := dst.Write(headerBuf); err != nil {
		return Header{}, fmt.Errorf("write header: %w", err)
	}

	// Sub-header, image, then zero fill up to the alignment boundary.
	payload := io.MultiReader(
		bytes.NewReader(limgBuf),
		io.LimitReader(src, srcSize),
		&zeroReader{n: padded - srcSize},
	)

	workers := max(opts.Workers, 1)
	batch := min(max(workers*4, 8), maxBatchSegments)

	plain := make([]byte, batch*SegmentSize)
	ciph := make([]byte, batch*SegmentSize)
	metas := make([][MetaBlockSize]byte, batch)

	var processed int64
	for base := 0; base < segmentCount; base += batch {
		if err := ctx.Err(); err != nil {
			return Header{}, err
		}

		k := min(batch, segmentCount-base)
		if _, err := io.ReadFull(payload, plain[:k*SegmentSize]); err != nil {
			return Header{}, fmt.Errorf("read source at segment %d: %w", base, err)
		}

		// Segments inside a batch are independent cipher units; the
		// batch slices double as the index-keyed reassembly buffer so
		// pairs are always written in index order below.
		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := 0; i < k; i++ {
			i := i
			g.Go(func() error {
				seg := plain[i*SegmentSize : (i+1)*SegmentSize]
				if err := sc.Encrypt(ciph[i*SegmentSize:(i+1)*SegmentSize], seg, base+i); err != nil {
					return err
				}
				metas[i] = BuildMetaBlock(seg, opts.Disc, base+i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Header{}, err
		}

		for i := 0; i < k; i++ {
			if err := WritePair(dst, metas[i], ciph[i*SegmentSize:(i+1)*SegmentSize]); err != nil {
				return Header{}, err
			}
		}

		processed += int64(k) * SegmentSize
		progress.Notify(opts.Progress, processed, payloadSize)
	}

	return header, nil
}

// zeroReader yields n zero bytes then EOF.
type zeroReader struct {
	n int64
}

func (z *zeroReader) Read(p []byte) (int, error) {
	if z.n <= 0 {
		return 0, io.EOF
	}
	n := int64(len(p))
	if n > z.n {
		n = z.n
	}
	clear(p[:n])
	z.n -= n
	return int(n), nil
}
