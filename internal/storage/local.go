package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/spf13/afero"
)

// Local is the disk-backed provider. On the real filesystem, writes go
// through a temp file that only lands at the destination on Close, so
// an aborted job never leaves a half-written output behind.
type Local struct {
	fs afero.Fs
	// atomic is true only on the OS filesystem, where renameio can
	// guarantee same-directory temp files and atomic replace.
	atomic bool
}

// NewLocal returns a provider over the OS filesystem.
func NewLocal() *Local {
	return &Local{fs: afero.NewOsFs(), atomic: true}
}

// NewLocalWithFs returns a provider over an arbitrary afero filesystem,
// used by tests with an in-memory backend.
func NewLocalWithFs(fs afero.Fs) *Local {
	return &Local{fs: fs}
}

func (l *Local) OpenRead(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, 0, &IOError{Op: "open", Path: path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, &IOError{Op: "stat", Path: path, Err: err}
	}
	return f, info.Size(), nil
}

func (l *Local) OpenWrite(ctx context.Context, path string) (io.WriteCloser, error) {
	if l.atomic {
		pf, err := renameio.TempFile("", path)
		if err != nil {
			return nil, &IOError{Op: "create", Path: path, Err: err}
		}
		return &pendingFile{pf: pf, path: path}, nil
	}

	f, err := l.fs.Create(path)
	if err != nil {
		return nil, &IOError{Op: "create", Path: path, Err: err}
	}
	return f, nil
}

func (l *Local) List(ctx context.Context, dir string) ([]FileInfo, error) {
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, &IOError{Op: "list", Path: dir, Err: err}
	}
	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, FileInfo{
			Name:  e.Name(),
			Size:  e.Size(),
			IsDir: e.IsDir(),
		})
	}
	return infos, nil
}

func (l *Local) Remove(ctx context.Context, path string) error {
	if err := l.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return &IOError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

func (l *Local) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := l.fs.Rename(oldPath, newPath); err != nil {
		return &IOError{Op: "rename", Path: oldPath, Err: err}
	}
	return nil
}

func (l *Local) Close() error { return nil }

// pendingFile adapts a renameio pending file to io.WriteCloser: Close
// atomically replaces the destination, Abort discards the temp file.
type pendingFile struct {
	pf   *renameio.PendingFile
	path string
}

func (p *pendingFile) Write(b []byte) (int, error) {
	n, err := p.pf.Write(b)
	if err != nil {
		return n, &IOError{Op: "write", Path: p.path, Err: err}
	}
	return n, nil
}

func (p *pendingFile) Close() error {
	if err := p.pf.CloseAtomicallyReplace(); err != nil {
		return &IOError{Op: "finalize", Path: p.path, Err: err}
	}
	return nil
}

// Abort discards the pending output without touching the destination.
func (p *pendingFile) Abort() error {
	return p.pf.Cleanup()
}

// Aborter is implemented by writers that can discard their output
// instead of finalizing it. The batch runner aborts on failure.
type Aborter interface {
	Abort() error
}

// DiscardWriter aborts w when possible, otherwise closes it and
// removes path through the provider.
func DiscardWriter(ctx context.Context, p Provider, w io.WriteCloser, path string) {
	if a, ok := w.(Aborter); ok {
		_ = a.Abort()
		return
	}
	_ = w.Close()
	_ = p.Remove(ctx, path)
}

var _ Provider = (*Local)(nil)

// TempPath builds the sibling in-progress path the batch runner writes
// to before atomically renaming a finished output into place.
func TempPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".part")
}
