package compress

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
	"github.com/zipfx/zipfx/internal/stream"
)

// Compressor handles files compressed as a single stream. Such an archive
// holds exactly one entry, named after the archive without its suffix, and
// can only be created or read, never modified.
type Compressor struct {
	tool.Base
}

func New(publisher bus.Publisher) *Compressor {
	c := &Compressor{}
	c.Publisher = publisher
	return c
}

func (*Compressor) Name() string {
	return "compress"
}

func (*Compressor) SupportedReadFormats() []string {
	return Formats()
}

func (*Compressor) SupportedWriteFormats() []string {
	return Formats()
}

func (*Compressor) CompressorArchives() mapset.Set[string] {
	return mapset.NewSet(Formats()...)
}

func (*Compressor) Extension() tool.ExtensionPoint {
	return tool.NoExtension()
}

func (c *Compressor) codec(info *model.ArchiveInfo) (Codec, error) {
	format := info.Format
	if format == "" {
		format = model.FormatFromPath(info.Path)
	}
	codec, ok := Lookup(format)
	if !ok {
		return Codec{}, errors.Wrap(errs.UnknownArchiveFormat, format)
	}
	return codec, nil
}

// innerName is the archive base name without the compressor suffix.
func innerName(path, format string) string {
	base := filepath.Base(path)
	ext := "." + format
	if strings.HasSuffix(strings.ToLower(base), ext) && len(base) > len(ext) {
		return base[:len(base)-len(ext)]
	}
	return base
}

// open returns the decompressed content. up, when set, follows the share of
// packed bytes consumed since the raw size is not known in advance.
func (c *Compressor) open(info *model.ArchiveInfo, up stream.UpdateProgress) (io.ReadCloser, os.FileInfo, error) {
	codec, err := c.codec(info)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(info.Path)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	fi, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, nil, errors.WithStack(err)
	}
	var packed io.Reader = file
	if up != nil {
		packed = &stream.ReaderUpdatingProgress{
			Reader:         &stream.SimpleReaderWithSize{Reader: file, Size: fi.Size()},
			UpdateProgress: up,
		}
	}
	r, err := codec.NewReader(packed)
	if err != nil {
		_ = file.Close()
		return nil, nil, errors.WithStack(err)
	}
	return readCloser{Reader: r, closers: []io.Closer{r, file}}, fi, nil
}

func (c *Compressor) ListFiles(ctx context.Context, sessionID string, info *model.ArchiveInfo) (files []*model.FileInfo, err error) {
	defer c.Recover(sessionID, info, "List", &err)
	codec, err := c.codec(info)
	if err != nil {
		return nil, c.Fail(sessionID, info, "List", err)
	}
	fi, err := os.Stat(info.Path)
	if err != nil {
		return nil, c.Fail(sessionID, info, "List", errors.WithStack(err))
	}
	return []*model.FileInfo{{
		FileName:      innerName(info.Path, codec.Format),
		PackedSize:    fi.Size(),
		RawSize:       -1,
		LastWriteTime: model.TimePtr(fi.ModTime()),
		Attributes:    uint32(fi.Mode().Perm()),
	}}, nil
}

func (c *Compressor) ExtractFile(ctx context.Context, sessionID, targetPath string, info *model.ArchiveInfo, file *model.FileInfo) (err error) {
	defer c.Recover(sessionID, info, "Extract", &err)
	rc, fi, err := c.open(info, func(p float64) {
		c.Progress(sessionID, "Extracting "+file.FileName, p, 100)
	})
	if err != nil {
		return c.Fail(sessionID, info, "Extract", err)
	}
	defer rc.Close()
	err = tool.WriteEntry(ctx, targetPath, rc, -1, fi.Mode(), fi.ModTime(), nil)
	return c.Fail(sessionID, info, "Extract", errors.WithStack(err))
}

func (c *Compressor) TestArchive(ctx context.Context, sessionID string, info *model.ArchiveInfo) (err error) {
	defer c.Recover(sessionID, info, "Test", &err)
	rc, _, err := c.open(info, nil)
	if err != nil {
		return c.Fail(sessionID, info, "Test", err)
	}
	defer rc.Close()
	_, err = stream.CopyWithCtx(ctx, io.Discard, rc, -1, nil)
	return c.Fail(sessionID, info, "Test", errors.WithStack(err))
}

// CreateArchive compresses the single non folder file among files.
func (c *Compressor) CreateArchive(ctx context.Context, sessionID string, info *model.ArchiveInfo, files ...*model.FileInfo) (err error) {
	defer c.Recover(sessionID, info, "Create", &err)
	var entry *model.FileInfo
	for _, f := range files {
		if f.IsFolder {
			continue
		}
		if entry != nil {
			return c.Fail(sessionID, info, "Create", errors.Wrap(errs.CompressorArchive, "only one file can be compressed"))
		}
		entry = f
	}
	if entry == nil {
		return c.Fail(sessionID, info, "Create", errors.WithStack(errs.NoSelection))
	}
	codec, err := c.codec(info)
	if err != nil {
		return c.Fail(sessionID, info, "Create", err)
	}
	src, fi, err := tool.OpenStaged(entry)
	if err != nil {
		return c.Fail(sessionID, info, "Create", err)
	}
	defer src.Close()
	err = tool.AtomicWrite(info.Path, func(out io.Writer) error {
		w, err := codec.NewWriter(out, info.Level())
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = stream.CopyWithCtx(ctx, w, src, fi.Size(), func(p float64) {
			c.Progress(sessionID, "Compressing "+entry.FileName, p, 100)
		})
		if closeErr := w.Close(); err == nil {
			err = closeErr
		}
		return errors.WithStack(err)
	})
	return c.Fail(sessionID, info, "Create", err)
}

func (c *Compressor) AddFile(ctx context.Context, sessionID string, info *model.ArchiveInfo, files ...*model.FileInfo) error {
	return c.Fail(sessionID, info, "Add", errors.WithStack(errs.CompressorArchive))
}

func (c *Compressor) DeleteFile(ctx context.Context, sessionID string, info *model.ArchiveInfo, file *model.FileInfo) error {
	return c.Fail(sessionID, info, "Delete", errors.WithStack(errs.CompressorArchive))
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r readCloser) Close() error {
	var err error
	for _, c := range r.closers {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ tool.ReadService = (*Compressor)(nil)
var _ tool.WriteService = (*Compressor)(nil)
