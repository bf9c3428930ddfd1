// Package batch runs whole-file encode/decode jobs over a bounded
// worker pool. Each worker holds its own storage connections, outputs
// are written to a temp path and atomically placed on success, and one
// file's failure never aborts its siblings.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/matheusfillipe/ps3toolbox/internal/discid"
	"github.com/matheusfillipe/ps3toolbox/internal/iso"
	"github.com/matheusfillipe/ps3toolbox/internal/keys"
	"github.com/matheusfillipe/ps3toolbox/internal/progress"
	"github.com/matheusfillipe/ps3toolbox/internal/ps2"
	"github.com/matheusfillipe/ps3toolbox/internal/storage"
)

// Job is one file conversion.
type Job struct {
	Source    string
	Dest      string
	Mode      keys.Mode
	Disc      int
	ContentID string
}

// Outcome is the per-job result of a batch run.
type Outcome struct {
	Job      Job
	Err      error
	Bytes    int64
	Duration time.Duration
}

// Failed reports whether the job ended in error.
func (o Outcome) Failed() bool { return o.Err != nil }

// FailedCount counts failed outcomes.
func FailedCount(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}

// Config tunes a Runner.
type Config struct {
	// Workers bounds concurrent file jobs. Values below 1 mean 1.
	Workers int
	// SegmentWorkers bounds per-segment parallelism inside one file.
	SegmentWorkers int
	// Keys overrides the built-in derivation table. Nil uses the default.
	Keys *keys.Table
	// Progress, when set, builds a per-job progress sink.
	Progress func(Job) progress.Func
	// ValidateSource checks the ISO9660 signature of encrypt sources
	// that support random access before converting them.
	ValidateSource bool
}

// Runner executes batches of conversion jobs.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

// NewRunner creates a batch runner.
func NewRunner(cfg Config) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Runner{
		cfg:    cfg,
		logger: slog.Default().With("component", "batch"),
	}
}

// EncryptAll encodes every job, returning one outcome per job in job
// order. Outcome.Bytes is the source image size.
func (r *Runner) EncryptAll(ctx context.Context, srcF, dstF storage.Factory, jobs []Job) []Outcome {
	return r.run(ctx, srcF, dstF, jobs, r.encryptOne)
}

// DecryptAll decodes every job, returning one outcome per job in job
// order. Outcome.Bytes is the recovered image size.
func (r *Runner) DecryptAll(ctx context.Context, srcF, dstF storage.Factory, jobs []Job) []Outcome {
	return r.run(ctx, srcF, dstF, jobs, r.decryptOne)
}

type jobFunc func(ctx context.Context, srcP, dstP storage.Provider, job Job) (int64, error)

func (r *Runner) run(ctx context.Context, srcF, dstF storage.Factory, jobs []Job, do jobFunc) []Outcome {
	outcomes := make([]Outcome, len(jobs))

	type item struct {
		idx int
		job Job
	}
	work := make(chan item)

	var wg conc.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Go(func() {
			// Providers are dialed lazily and owned by this worker;
			// a shared remote connection cannot take concurrent writers.
			var srcP, dstP storage.Provider
			defer func() {
				if srcP != nil {
					_ = srcP.Close()
				}
				if dstP != nil {
					_ = dstP.Close()
				}
			}()

			for it := range work {
				start := time.Now()

				var err error
				if srcP == nil {
					srcP, err = srcF(ctx)
				}
				if err == nil && dstP == nil {
					dstP, err = dstF(ctx)
				}

				var n int64
				if err == nil {
					n, err = do(ctx, srcP, dstP, it.job)
				}

				outcomes[it.idx] = Outcome{
					Job:      it.job,
					Err:      err,
					Bytes:    n,
					Duration: time.Since(start),
				}
				if err != nil {
					r.logger.Error("job failed",
						"source", it.job.Source,
						"dest", it.job.Dest,
						"error", err)
				} else {
					r.logger.Info("job done",
						"source", it.job.Source,
						"dest", it.job.Dest,
						"duration", time.Since(start))
				}
			}
		})
	}

	for i, job := range jobs {
		select {
		case work <- item{idx: i, job: job}:
		case <-ctx.Done():
			outcomes[i] = Outcome{Job: job, Err: ctx.Err()}
		}
	}
	close(work)
	wg.Wait()

	return outcomes
}

// encryptOne converts one ISO into a container. The output goes to a
// temp path first and is renamed into place only on success, so a
// cancelled or failed job leaves nothing at Dest.
func (r *Runner) encryptOne(ctx context.Context, srcP, dstP storage.Provider, job Job) (int64, error) {
	src, size, err := srcP.OpenRead(ctx, job.Source)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	if r.cfg.ValidateSource {
		if ra, ok := src.(io.ReaderAt); ok {
			if err := iso.Validate(ra); err != nil {
				return 0, fmt.Errorf("%s: %w", job.Source, err)
			}
		}
	}

	tmp := storage.TempPath(job.Dest)
	dst, err := dstP.OpenWrite(ctx, tmp)
	if err != nil {
		return 0, err
	}

	_, err = ps2.Encode(ctx, dst, src, size, ps2.EncodeOptions{
		Mode:      job.Mode,
		Disc:      job.Disc,
		ContentID: job.ContentID,
		Workers:   r.cfg.SegmentWorkers,
		Keys:      r.cfg.Keys,
		Progress:  r.jobProgress(job),
	})
	if err != nil {
		storage.DiscardWriter(ctx, dstP, dst, tmp)
		return 0, err
	}
	if err := dst.Close(); err != nil {
		_ = dstP.Remove(ctx, tmp)
		return 0, err
	}
	if err := dstP.Rename(ctx, tmp, job.Dest); err != nil {
		_ = dstP.Remove(ctx, tmp)
		return 0, err
	}
	return size, nil
}

// decryptOne recovers one ISO from a container, with the same
// temp-then-rename output discipline as encryptOne.
func (r *Runner) decryptOne(ctx context.Context, srcP, dstP storage.Provider, job Job) (int64, error) {
	src, _, err := srcP.OpenRead(ctx, job.Source)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	tmp := storage.TempPath(job.Dest)
	dst, err := dstP.OpenWrite(ctx, tmp)
	if err != nil {
		return 0, err
	}

	header, err := ps2.Decode(ctx, dst, src, ps2.DecodeOptions{
		Workers:  r.cfg.SegmentWorkers,
		Keys:     r.cfg.Keys,
		Progress: r.jobProgress(job),
	})
	if err != nil {
		storage.DiscardWriter(ctx, dstP, dst, tmp)
		return 0, err
	}
	if err := dst.Close(); err != nil {
		_ = dstP.Remove(ctx, tmp)
		return 0, err
	}
	if err := dstP.Rename(ctx, tmp, job.Dest); err != nil {
		_ = dstP.Remove(ctx, tmp)
		return 0, err
	}
	return header.OriginalSize, nil
}

func (r *Runner) jobProgress(job Job) progress.Func {
	if r.cfg.Progress == nil {
		return nil
	}
	return r.cfg.Progress(job)
}

// ScanISOJobs lists dir on p and builds one encrypt job per .iso file,
// detecting the disc number from the filename.
func ScanISOJobs(ctx context.Context, p storage.Provider, dir, destDir string, mode keys.Mode) ([]Job, error) {
	infos, err := p.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	var jobs []Job
	for _, info := range infos {
		if info.IsDir || !strings.EqualFold(strings.TrimPrefix(filepathExt(info.Name), "."), "iso") {
			continue
		}
		base := strings.TrimSuffix(info.Name, filepathExt(info.Name))
		jobs = append(jobs, Job{
			Source: storage.Join(dir, info.Name),
			Dest:   storage.Join(destDir, base+".bin.enc"),
			Mode:   mode,
			Disc:   discid.Detect(info.Name),
		})
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no .iso files in %s", dir)
	}
	return jobs, nil
}

func filepathExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}
