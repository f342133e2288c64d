package rar

import (
	"context"
	"io"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/nwaples/rardecode/v2"
	"github.com/pkg/errors"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
)

// Rar reads rar archives. Volumes named .partN.rar are followed by the
// decoder itself.
type Rar struct {
	tool.Base
}

func New(publisher bus.Publisher) *Rar {
	r := &Rar{}
	r.Publisher = publisher
	return r
}

func (*Rar) Name() string {
	return "rar"
}

func (*Rar) SupportedReadFormats() []string {
	return []string{"rar"}
}

func (*Rar) CompressorArchives() mapset.Set[string] {
	return mapset.NewSet[string]()
}

func (*Rar) Extension() tool.ExtensionPoint {
	return tool.OptionsExtension(
		tool.OptionSpec{Key: model.PropPassword, Description: "password of an encrypted archive"},
	)
}

func toFileInfo(hdr *rardecode.FileHeader) *model.FileInfo {
	name := tree.Clean(hdr.Name)
	f := &model.FileInfo{
		Level:          tree.LevelOf(name),
		FileName:       name,
		PackedSize:     hdr.PackedSize,
		RawSize:        hdr.UnPackedSize,
		LastWriteTime:  model.TimePtr(hdr.ModificationTime),
		LastAccessTime: model.TimePtr(hdr.AccessTime),
		CreationTime:   model.TimePtr(hdr.CreationTime),
		Attributes:     uint32(hdr.Attributes),
		IsFolder:       hdr.IsDir,
	}
	if hdr.UnKnownSize {
		f.RawSize = -1
	}
	if f.IsFolder {
		f.RawSize = 0
	}
	return f
}

func filterPassword(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, rardecode.ErrBadPassword) {
		return errors.Wrap(errs.WrongArchivePassword, err.Error())
	}
	msg := strings.ToLower(errors.Cause(err).Error())
	if strings.Contains(msg, "password") || strings.Contains(msg, "encrypted") {
		return errors.Wrap(errs.WrongArchivePassword, err.Error())
	}
	return err
}

// walk calls fn for every header until fn returns false. The reader passed
// to fn yields the content of the current entry.
func walk(ctx context.Context, info *model.ArchiveInfo, fn func(hdr *rardecode.FileHeader, r io.Reader) (bool, error)) error {
	var opts []rardecode.Option
	if pw := info.Password(); pw != "" {
		opts = append(opts, rardecode.Password(pw))
	}
	rc, err := rardecode.OpenReader(info.Path, opts...)
	if err != nil {
		return filterPassword(errors.WithStack(err))
	}
	defer rc.Close()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := rc.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return filterPassword(errors.WithStack(err))
		}
		more, err := fn(hdr, rc)
		if err != nil || !more {
			return filterPassword(err)
		}
	}
}

func (r *Rar) ListFiles(ctx context.Context, sessionID string, info *model.ArchiveInfo) (files []*model.FileInfo, err error) {
	defer r.Recover(sessionID, info, "List", &err)
	err = walk(ctx, info, func(hdr *rardecode.FileHeader, _ io.Reader) (bool, error) {
		if f := toFileInfo(hdr); f.FileName != "" {
			files = append(files, f)
		}
		return true, nil
	})
	if err != nil {
		return nil, r.Fail(sessionID, info, "List", err)
	}
	return files, nil
}

func (r *Rar) ExtractFile(ctx context.Context, sessionID, targetPath string, info *model.ArchiveInfo, file *model.FileInfo) (err error) {
	defer r.Recover(sessionID, info, "Extract", &err)
	found := false
	err = walk(ctx, info, func(hdr *rardecode.FileHeader, rd io.Reader) (bool, error) {
		if tree.Clean(hdr.Name) != file.FileName {
			return true, nil
		}
		found = true
		if hdr.IsDir {
			return false, tool.MakeFolder(targetPath)
		}
		size := hdr.UnPackedSize
		if hdr.UnKnownSize {
			size = -1
		}
		return false, tool.WriteEntry(ctx, targetPath, rd, size, os.FileMode(0644), hdr.ModificationTime, func(p float64) {
			r.Progress(sessionID, "Extracting "+file.FileName, p, 100)
		})
	})
	if err == nil && !found {
		if file.IsFolder {
			err = tool.MakeFolder(targetPath)
		} else {
			err = errors.Wrap(errs.ObjectNotFound, file.FileName)
		}
	}
	return r.Fail(sessionID, info, "Extract", err)
}

func (r *Rar) TestArchive(ctx context.Context, sessionID string, info *model.ArchiveInfo) (err error) {
	defer r.Recover(sessionID, info, "Test", &err)
	count := 0
	err = walk(ctx, info, func(hdr *rardecode.FileHeader, rd io.Reader) (bool, error) {
		count++
		if hdr.IsDir {
			return true, nil
		}
		// the decoder checks the stored hash at the end of each entry
		_, err := io.Copy(io.Discard, rd)
		r.Progress(sessionID, "Testing "+hdr.Name, float64(count), 0)
		return true, errors.Wrap(err, hdr.Name)
	})
	return r.Fail(sessionID, info, "Test", err)
}

var _ tool.ReadService = (*Rar)(nil)
