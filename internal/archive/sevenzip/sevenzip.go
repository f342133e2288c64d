package sevenzip

import (
	"context"
	"io"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
)

// SevenZip reads 7z archives, including split ones starting at .7z.001.
type SevenZip struct {
	tool.Base
}

func New(publisher bus.Publisher) *SevenZip {
	s := &SevenZip{}
	s.Publisher = publisher
	return s
}

func (*SevenZip) Name() string {
	return "7z"
}

func (*SevenZip) SupportedReadFormats() []string {
	return []string{"7z"}
}

func (*SevenZip) AcceptedMultipartExtensions() []string {
	return []string{".7z.%.3d"}
}

func (*SevenZip) CompressorArchives() mapset.Set[string] {
	return mapset.NewSet[string]()
}

func (*SevenZip) Extension() tool.ExtensionPoint {
	return tool.OptionsExtension(
		tool.OptionSpec{Key: model.PropPassword, Description: "password of an encrypted archive"},
	)
}

func (s *SevenZip) GetMeta(ctx context.Context, sessionID string, info *model.ArchiveInfo) (meta model.ArchiveMeta, err error) {
	defer s.Recover(sessionID, info, "Read archive info", &err)
	reader, err := getReader(info.Path, info.Password())
	if err != nil {
		return nil, s.Fail(sessionID, info, "Read archive info", err)
	}
	defer reader.Close()
	return &model.ArchiveMetaInfo{
		Encrypted:  info.Password() != "",
		EntryCount: len(reader.File),
	}, nil
}

func (s *SevenZip) ListFiles(ctx context.Context, sessionID string, info *model.ArchiveInfo) (files []*model.FileInfo, err error) {
	defer s.Recover(sessionID, info, "List", &err)
	reader, err := getReader(info.Path, info.Password())
	if err != nil {
		return nil, s.Fail(sessionID, info, "List", err)
	}
	defer reader.Close()
	files = make([]*model.FileInfo, 0, len(reader.File))
	for _, file := range reader.File {
		f := toFileInfo(file, info.Password() != "")
		if f.FileName == "" {
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

func (s *SevenZip) ExtractFile(ctx context.Context, sessionID, targetPath string, info *model.ArchiveInfo, file *model.FileInfo) (err error) {
	defer s.Recover(sessionID, info, "Extract", &err)
	reader, err := getReader(info.Path, info.Password())
	if err != nil {
		return s.Fail(sessionID, info, "Extract", err)
	}
	defer reader.Close()
	for _, f := range reader.File {
		if tree.Clean(f.Name) != file.FileName {
			continue
		}
		if f.FileInfo().IsDir() {
			return s.Fail(sessionID, info, "Extract", tool.MakeFolder(targetPath))
		}
		err = decompress(ctx, f, targetPath, func(p float64) {
			s.Progress(sessionID, "Extracting "+file.FileName, p, 100)
		})
		return s.Fail(sessionID, info, "Extract", err)
	}
	if file.IsFolder {
		return s.Fail(sessionID, info, "Extract", tool.MakeFolder(targetPath))
	}
	return s.Fail(sessionID, info, "Extract", errors.Wrap(errs.ObjectNotFound, file.FileName))
}

func (s *SevenZip) TestArchive(ctx context.Context, sessionID string, info *model.ArchiveInfo) (err error) {
	defer s.Recover(sessionID, info, "Test", &err)
	reader, err := getReader(info.Path, info.Password())
	if err != nil {
		return s.Fail(sessionID, info, "Test", err)
	}
	defer reader.Close()
	for i, f := range reader.File {
		if err = ctx.Err(); err != nil {
			return s.Fail(sessionID, info, "Test", err)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return s.Fail(sessionID, info, "Test", filterPassword(errors.Wrap(err, f.Name)))
		}
		// the reader verifies the CRC once the entry is fully consumed
		_, err = io.Copy(io.Discard, rc)
		_ = rc.Close()
		if err != nil {
			return s.Fail(sessionID, info, "Test", filterPassword(errors.Wrap(err, f.Name)))
		}
		s.Progress(sessionID, "Testing "+f.Name, float64(i+1), float64(len(reader.File)))
	}
	return nil
}

var _ tool.ReadService = (*SevenZip)(nil)
var _ tool.MetaService = (*SevenZip)(nil)
var _ tool.MultipartService = (*SevenZip)(nil)
