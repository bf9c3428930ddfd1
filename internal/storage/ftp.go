package storage

import (
	"context"
	"errors"
	"io"
	"net/textproto"
	"path"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jlaffaye/ftp"
)

// FTP is the remote provider, one control connection per instance.
// FTP has no concurrent transfer support on a single connection, so
// every worker dials its own.
type FTP struct {
	conn *ftp.ServerConn
}

// DialFTP connects and logs in, retrying transient dial failures.
func DialFTP(ctx context.Context, addr, user, pass string) (*FTP, error) {
	var conn *ftp.ServerConn
	err := retry.Do(
		func() error {
			c, err := ftp.Dial(addr,
				ftp.DialWithContext(ctx),
				ftp.DialWithTimeout(30*time.Second),
			)
			if err != nil {
				return err
			}
			if user == "" {
				user = "anonymous"
			}
			if err := c.Login(user, pass); err != nil {
				_ = c.Quit()
				return retry.Unrecoverable(err)
			}
			conn = c
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, &IOError{Op: "dial", Path: addr, Err: err}
	}
	return &FTP{conn: conn}, nil
}

func (f *FTP) OpenRead(ctx context.Context, p string) (io.ReadCloser, int64, error) {
	size, err := f.conn.FileSize(p)
	if err != nil {
		return nil, 0, &IOError{Op: "stat", Path: p, Err: err}
	}
	resp, err := f.conn.Retr(p)
	if err != nil {
		return nil, 0, &IOError{Op: "open", Path: p, Err: err}
	}
	return resp, size, nil
}

func (f *FTP) OpenWrite(ctx context.Context, p string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &ftpWriter{pw: pw, path: p, done: make(chan error, 1)}
	go func() {
		err := f.conn.Stor(p, pr)
		// Unblock a writer still feeding the pipe.
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

func (f *FTP) List(ctx context.Context, dir string) ([]FileInfo, error) {
	entries, err := f.conn.List(dir)
	if err != nil {
		return nil, &IOError{Op: "list", Path: dir, Err: err}
	}
	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		infos = append(infos, FileInfo{
			Name:  e.Name,
			Size:  int64(e.Size),
			IsDir: e.Type == ftp.EntryTypeFolder,
		})
	}
	return infos, nil
}

func (f *FTP) Remove(ctx context.Context, p string) error {
	err := f.conn.Delete(p)
	if err != nil && !isNotExist(err) {
		return &IOError{Op: "remove", Path: p, Err: err}
	}
	return nil
}

func (f *FTP) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := f.conn.Rename(oldPath, newPath); err != nil {
		return &IOError{Op: "rename", Path: oldPath, Err: err}
	}
	return nil
}

func (f *FTP) Close() error {
	return f.conn.Quit()
}

// isNotExist matches the 550 reply FTP servers send for missing files.
func isNotExist(err error) bool {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		return proto.Code == ftp.StatusFileUnavailable
	}
	return false
}

// ftpWriter feeds a STOR transfer through a pipe and surfaces the
// transfer result on Close.
type ftpWriter struct {
	pw   *io.PipeWriter
	path string
	done chan error
}

func (w *ftpWriter) Write(b []byte) (int, error) {
	n, err := w.pw.Write(b)
	if err != nil {
		return n, &IOError{Op: "write", Path: w.path, Err: err}
	}
	return n, nil
}

func (w *ftpWriter) Close() error {
	_ = w.pw.Close()
	if err := <-w.done; err != nil {
		return &IOError{Op: "finalize", Path: w.path, Err: err}
	}
	return nil
}

var _ Provider = (*FTP)(nil)

// Join builds provider paths; FTP paths always use forward slashes.
func Join(elem ...string) string {
	return path.Join(elem...)
}
