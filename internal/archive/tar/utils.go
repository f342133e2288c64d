package tar

import (
	"archive/tar"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/zipfx/zipfx/internal/archive/compress"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
)

var formats = []string{"tar", "tar.gz", "tar.bz2", "tar.xz", "tar.zst", "tar.lz4"}

func toFileInfo(hdr *tar.Header, packed bool) *model.FileInfo {
	name := tree.Clean(hdr.Name)
	f := &model.FileInfo{
		Level:          tree.LevelOf(name),
		FileName:       name,
		RawSize:        hdr.Size,
		PackedSize:     hdr.Size,
		LastWriteTime:  model.TimePtr(hdr.ModTime),
		LastAccessTime: model.TimePtr(hdr.AccessTime),
		User:           model.StringPtr(hdr.Uname),
		Group:          model.StringPtr(hdr.Gname),
		Attributes:     uint32(hdr.Mode),
		IsFolder:       hdr.Typeflag == tar.TypeDir,
	}
	if packed {
		// per entry compressed size is unknown inside a compressed stream
		f.PackedSize = -1
	}
	if f.IsFolder {
		f.RawSize = 0
	}
	if hdr.Linkname != "" {
		f.SetExtra("link", hdr.Linkname)
	}
	return f
}

// listable filters out the pax and gnu meta records archive/tar already
// folds into the following header.
func listable(hdr *tar.Header) bool {
	switch hdr.Typeflag {
	case tar.TypeReg, tar.TypeDir, tar.TypeSymlink, tar.TypeLink:
		return true
	}
	return hdr.Typeflag == '\x00'
}

type tarReader struct {
	*tar.Reader
	closers []io.Closer
}

func (r *tarReader) Close() error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if cerr := r.closers[i].Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// openReader opens path as a tar stream, decompressing it as format says.
func openReader(path, format string, wrap func(io.Reader) io.Reader) (*tarReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	ret := &tarReader{closers: []io.Closer{file}}
	var r io.Reader = file
	if wrap != nil {
		r = wrap(r)
	}
	if _, codec, ok := compress.Split(format); ok {
		cr, err := codec.NewReader(r)
		if err != nil {
			_ = file.Close()
			return nil, errors.WithStack(err)
		}
		ret.closers = append(ret.closers, cr)
		r = cr
	}
	ret.Reader = tar.NewReader(r)
	return ret, nil
}

type tarWriter struct {
	*tar.Writer
	codec io.WriteCloser
}

func newWriter(out io.Writer, format string, level int) (*tarWriter, error) {
	ret := &tarWriter{}
	if _, codec, ok := compress.Split(format); ok {
		cw, err := codec.NewWriter(out, level)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		ret.codec = cw
		out = cw
	}
	ret.Writer = tar.NewWriter(out)
	return ret, nil
}

func (w *tarWriter) Close() error {
	err := w.Writer.Close()
	if w.codec != nil {
		if cerr := w.codec.Close(); err == nil {
			err = cerr
		}
	}
	return errors.WithStack(err)
}

func formatOf(info *model.ArchiveInfo) (string, error) {
	format := info.Format
	if format == "" {
		format = model.FormatFromPath(info.Path)
	}
	format = strings.ToLower(format)
	for _, f := range formats {
		if f == format {
			return f, nil
		}
	}
	return "", errors.Wrap(errs.UnknownArchiveFormat, format)
}
