package tool

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zipfx/zipfx/internal/stream"
)

// WriteEntry writes r into target, creating parent directories. target is
// replaced if it exists. Progress is reported in percent of size.
func WriteEntry(ctx context.Context, target string, r io.Reader, size int64, mode os.FileMode, modTime time.Time, up stream.UpdateProgress) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if mode&0600 == 0 {
		mode |= 0600
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	_, err = stream.CopyWithCtx(ctx, f, r, size, up)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		return err
	}
	if !modTime.IsZero() {
		_ = os.Chtimes(target, modTime, modTime)
	}
	return nil
}

// MakeFolder materializes a folder entry at target.
func MakeFolder(target string) error {
	return os.MkdirAll(target, 0755)
}
