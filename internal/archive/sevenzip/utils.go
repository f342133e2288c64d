package sevenzip

import (
	"context"
	"os"

	"github.com/bodgit/sevenzip"
	"github.com/pkg/errors"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
	"github.com/zipfx/zipfx/internal/stream"
)

// 7z stores windows attributes, unix permissions live in the high word
const unixExtension = 0x8000

func toFileInfo(file *sevenzip.File, encrypted bool) *model.FileInfo {
	fi := file.FileInfo()
	name := tree.Clean(file.Name)
	f := &model.FileInfo{
		Level:          tree.LevelOf(name),
		FileName:       name,
		CRC:            file.CRC32,
		PackedSize:     -1,
		RawSize:        int64(file.UncompressedSize),
		LastWriteTime:  model.TimePtr(file.Modified),
		LastAccessTime: model.TimePtr(file.Accessed),
		CreationTime:   model.TimePtr(file.Created),
		Attributes:     file.Attributes,
		IsFolder:       fi.IsDir(),
		IsEncrypted:    encrypted,
	}
	if file.Attributes&unixExtension != 0 {
		f.Attributes = file.Attributes >> 16
	}
	if f.IsFolder {
		f.RawSize = 0
	}
	return f
}

func getReader(path, password string) (*sevenzip.ReadCloser, error) {
	var (
		reader *sevenzip.ReadCloser
		err    error
	)
	if password != "" {
		reader, err = sevenzip.OpenReaderWithPassword(path, password)
	} else {
		reader, err = sevenzip.OpenReader(path)
	}
	if err != nil {
		return nil, filterPassword(errors.WithStack(err))
	}
	return reader, nil
}

func filterPassword(err error) error {
	if err != nil {
		var e *sevenzip.ReadError
		if errors.As(err, &e) && e.Encrypted {
			return errors.Wrap(errs.WrongArchivePassword, err.Error())
		}
	}
	return err
}

func decompress(ctx context.Context, file *sevenzip.File, targetPath string, up stream.UpdateProgress) error {
	rc, err := file.Open()
	if err != nil {
		return filterPassword(errors.WithStack(err))
	}
	defer rc.Close()
	mode := os.FileMode(0644)
	if file.Attributes&unixExtension != 0 {
		mode = os.FileMode(file.Attributes >> 16).Perm()
	}
	err = tool.WriteEntry(ctx, targetPath, rc, int64(file.UncompressedSize), mode, file.Modified, up)
	return filterPassword(errors.WithStack(err))
}
