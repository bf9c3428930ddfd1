package ps2

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/matheusfillipe/ps3toolbox/internal/keys"
	"github.com/matheusfillipe/ps3toolbox/internal/progress"
)

// DecodeOptions configures one decode operation.
type DecodeOptions struct {
	// Workers bounds the per-segment decrypt/verify parallelism.
	Workers  int
	Progress progress.Func
	// Keys overrides the built-in derivation table. Nil uses the default.
	Keys *keys.Table
}

// Decode recovers the original image from a container stream: parse
// the leading header, walk (meta, ciphertext) pairs, decrypt each
// segment with its derived IV, verify the plaintext digest, strip the
// LIMG sub-header and truncate end-of-payload padding.
//
// Any validation failure aborts immediately; bytes already written to
// dst must be discarded by the caller.
func Decode(ctx context.Context, dst io.Writer, src io.Reader, opts DecodeOptions) (Header, error) {
	header, err := readHeader(src)
	if err != nil {
		return Header{}, err
	}

	table := opts.Keys
	if table == nil {
		table = keys.DefaultTable()
	}
	material, err := table.Derive(header.Mode, header.Disc)
	if err != nil {
		return Header{}, err
	}
	sc, err := NewSegmentCipher(material)
	if err != nil {
		return Header{}, err
	}

	if header.SegmentCount == 0 {
		return header, nil
	}

	pairs := NewPairReader(src, header.SegmentCount)
	payloadSize := int64(header.SegmentCount) * SegmentSize
	if header.OriginalSize > payloadSize-LimgSize {
		return Header{}, fmt.Errorf("%w: original size %d does not fit %d payload segments",
			ErrFormat, header.OriginalSize, header.SegmentCount)
	}

	workers := max(opts.Workers, 1)
	batch := min(max(workers*4, 8), maxBatchSegments)

	ciph := make([]byte, batch*SegmentSize)
	plain := make([]byte, batch*SegmentSize)
	metas := make([][MetaBlockSize]byte, batch)

	remaining := header.OriginalSize
	var processed int64
	for base := 0; base < header.SegmentCount; base += batch {
		if err := ctx.Err(); err != nil {
			return Header{}, err
		}

		k := min(batch, header.SegmentCount-base)
		for i := 0; i < k; i++ {
			meta, _, err := pairs.Next(ciph[i*SegmentSize : (i+1)*SegmentSize])
			if err != nil {
				return Header{}, err
			}
			metas[i] = meta
		}

		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := 0; i < k; i++ {
			i := i
			g.Go(func() error {
				seg := plain[i*SegmentSize : (i+1)*SegmentSize]
				if err := sc.Decrypt(seg, ciph[i*SegmentSize:(i+1)*SegmentSize], base+i); err != nil {
					return err
				}
				if !VerifyMetaBlock(metas[i], seg) {
					return &IntegrityError{Segment: base + i}
				}
				if MetaSegmentIndex(metas[i]) != base+i || MetaDisc(metas[i]) != header.Disc {
					return &IntegrityError{Segment: base + i}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Header{}, err
		}

		// Segment 0 is the LIMG sub-header: validate and strip it.
		lo := 0
		if base == 0 {
			if _, err := ParseLimg(plain[:LimgSize], payloadSize-LimgSize); err != nil {
				return Header{}, err
			}
			lo = 1
		}
		for i := lo; i < k; i++ {
			if remaining <= 0 {
				break
			}
			n := min(remaining, SegmentSize)
			if _, err := dst.Write(plain[i*SegmentSize : i*SegmentSize+int(n)]); err != nil {
				return Header{}, fmt.Errorf("write image: %w", err)
			}
			remaining -= n
		}

		processed += int64(k) * SegmentSize
		progress.Notify(opts.Progress, processed, payloadSize)
	}

	if remaining > 0 {
		return Header{}, fmt.Errorf("%w: payload short by %d bytes", ErrTruncatedStream, remaining)
	}
	return header, nil
}

// Inspect parses and returns the leading header without touching the
// payload.
func Inspect(src io.Reader) (Header, error) {
	return readHeader(src)
}

func readHeader(src io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(src, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: stream shorter than header", ErrTruncatedStream)
		}
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	return ParseHeader(buf)
}
