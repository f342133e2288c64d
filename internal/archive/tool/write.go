package tool

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
	"github.com/zipfx/zipfx/pkg/utils"
)

// AtomicWrite lets fn produce the complete new content of path in a temp
// file next to it and renames it into place only when fn succeeded, so a
// failing write never leaves a partial archive behind.
func AtomicWrite(path string, fn func(w io.Writer) error) error {
	tmp, err := utils.CreateTempFile(path, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WithStack(err)
	}
	tmpName := tmp.Name()
	err = fn(tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if fi, statErr := os.Stat(path); statErr == nil {
		_ = os.Chmod(tmpName, fi.Mode().Perm())
	}
	return errors.WithStack(utils.ReplaceFile(tmpName, path))
}

// OpenStaged opens the local source of an entry staged for insertion.
func OpenStaged(f *model.FileInfo) (*os.File, os.FileInfo, error) {
	src, ok := f.StagedSource()
	if !ok {
		return nil, nil, errors.Wrapf(errs.ObjectNotFound, "no staged source for %s", f.FileName)
	}
	file, err := os.Open(src)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	fi, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, nil, errors.WithStack(err)
	}
	return file, fi, nil
}
