package tar

import (
	"archive/tar"
	"context"
	"io"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
	"github.com/zipfx/zipfx/internal/stream"
)

// Tar reads and writes plain and compressed tarballs. Tar has no index, so
// every mutation streams the old archive into a new one.
type Tar struct {
	tool.Base
}

func New(publisher bus.Publisher) *Tar {
	t := &Tar{}
	t.Publisher = publisher
	return t
}

func (*Tar) Name() string {
	return "tar"
}

func (*Tar) SupportedReadFormats() []string {
	return append([]string(nil), formats...)
}

func (*Tar) SupportedWriteFormats() []string {
	return append([]string(nil), formats...)
}

func (*Tar) CompressorArchives() mapset.Set[string] {
	return mapset.NewSet[string]()
}

func (*Tar) Extension() tool.ExtensionPoint {
	return tool.NoExtension()
}

// walk calls fn for every listable header until fn returns false.
func (t *Tar) walk(ctx context.Context, info *model.ArchiveInfo, wrap func(io.Reader) io.Reader, fn func(hdr *tar.Header, r io.Reader) (bool, error)) error {
	format, err := formatOf(info)
	if err != nil {
		return err
	}
	tr, err := openReader(info.Path, format, wrap)
	if err != nil {
		return err
	}
	defer tr.Close()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.WithStack(err)
		}
		if !listable(hdr) {
			continue
		}
		more, err := fn(hdr, tr)
		if err != nil || !more {
			return err
		}
	}
}

func (t *Tar) ListFiles(ctx context.Context, sessionID string, info *model.ArchiveInfo) (files []*model.FileInfo, err error) {
	defer t.Recover(sessionID, info, "List", &err)
	format, err := formatOf(info)
	if err != nil {
		return nil, t.Fail(sessionID, info, "List", err)
	}
	packed := format != "tar"
	err = t.walk(ctx, info, nil, func(hdr *tar.Header, _ io.Reader) (bool, error) {
		if f := toFileInfo(hdr, packed); f.FileName != "" {
			files = append(files, f)
		}
		return true, nil
	})
	if err != nil {
		return nil, t.Fail(sessionID, info, "List", err)
	}
	return files, nil
}

func (t *Tar) ExtractFile(ctx context.Context, sessionID, targetPath string, info *model.ArchiveInfo, file *model.FileInfo) (err error) {
	defer t.Recover(sessionID, info, "Extract", &err)
	found := false
	err = t.walk(ctx, info, nil, func(hdr *tar.Header, r io.Reader) (bool, error) {
		if tree.Clean(hdr.Name) != file.FileName {
			return true, nil
		}
		found = true
		switch hdr.Typeflag {
		case tar.TypeDir:
			return false, tool.MakeFolder(targetPath)
		case tar.TypeSymlink, tar.TypeLink:
			return false, errors.Wrapf(errs.NotSupport, "link %s -> %s", file.FileName, hdr.Linkname)
		}
		return false, tool.WriteEntry(ctx, targetPath, r, hdr.Size, os.FileMode(hdr.Mode).Perm(), hdr.ModTime, func(p float64) {
			t.Progress(sessionID, "Extracting "+file.FileName, p, 100)
		})
	})
	if err == nil && !found {
		if file.IsFolder {
			err = tool.MakeFolder(targetPath)
		} else {
			err = errors.Wrap(errs.ObjectNotFound, file.FileName)
		}
	}
	return t.Fail(sessionID, info, "Extract", err)
}

func (t *Tar) TestArchive(ctx context.Context, sessionID string, info *model.ArchiveInfo) (err error) {
	defer t.Recover(sessionID, info, "Test", &err)
	fi, err := os.Stat(info.Path)
	if err != nil {
		return t.Fail(sessionID, info, "Test", errors.WithStack(err))
	}
	// progress follows the packed bytes, the entry count is unknown upfront
	wrap := func(r io.Reader) io.Reader {
		return &stream.ReaderUpdatingProgress{
			Reader: &stream.SimpleReaderWithSize{Reader: r, Size: fi.Size()},
			UpdateProgress: func(p float64) {
				t.Progress(sessionID, "Testing "+info.Name(), p, 100)
			},
		}
	}
	err = t.walk(ctx, info, wrap, func(hdr *tar.Header, r io.Reader) (bool, error) {
		_, err := io.Copy(io.Discard, r)
		return true, errors.Wrap(err, hdr.Name)
	})
	return t.Fail(sessionID, info, "Test", err)
}

func (t *Tar) CreateArchive(ctx context.Context, sessionID string, info *model.ArchiveInfo, files ...*model.FileInfo) (err error) {
	defer t.Recover(sessionID, info, "Create", &err)
	format, err := formatOf(info)
	if err != nil {
		return t.Fail(sessionID, info, "Create", err)
	}
	err = tool.AtomicWrite(info.Path, func(out io.Writer) error {
		tw, err := newWriter(out, format, info.Level())
		if err != nil {
			return err
		}
		if err := t.writeNew(ctx, sessionID, tw.Writer, files); err != nil {
			_ = tw.Close()
			return err
		}
		return tw.Close()
	})
	return t.Fail(sessionID, info, "Create", err)
}

func (t *Tar) AddFile(ctx context.Context, sessionID string, info *model.ArchiveInfo, files ...*model.FileInfo) (err error) {
	defer t.Recover(sessionID, info, "Add", &err)
	replaced := make(map[string]struct{}, len(files))
	for _, f := range files {
		replaced[tree.Clean(f.FileName)] = struct{}{}
	}
	err = t.rewrite(ctx, info, func(name string) bool {
		_, ok := replaced[name]
		return !ok
	}, func(w *tar.Writer) error {
		return t.writeNew(ctx, sessionID, w, files)
	})
	return t.Fail(sessionID, info, "Add", err)
}

func (t *Tar) DeleteFile(ctx context.Context, sessionID string, info *model.ArchiveInfo, file *model.FileInfo) (err error) {
	defer t.Recover(sessionID, info, "Delete", &err)
	target := tree.Clean(file.FileName)
	err = t.rewrite(ctx, info, func(name string) bool {
		return name != target && !tree.IsUnder(name, target)
	}, nil)
	return t.Fail(sessionID, info, "Delete", err)
}

// rewrite streams the entries accepted by keep into a new archive and lets
// extra append more. Without extra, dropping nothing is ObjectNotFound and
// the archive is left untouched.
func (t *Tar) rewrite(ctx context.Context, info *model.ArchiveInfo, keep func(name string) bool, extra func(w *tar.Writer) error) error {
	format, err := formatOf(info)
	if err != nil {
		return err
	}
	dropped := false
	err = tool.AtomicWrite(info.Path, func(out io.Writer) error {
		tw, err := newWriter(out, format, info.Level())
		if err != nil {
			return err
		}
		err = t.walk(ctx, info, nil, func(hdr *tar.Header, r io.Reader) (bool, error) {
			if !keep(tree.Clean(hdr.Name)) {
				dropped = true
				return true, nil
			}
			if err := tw.WriteHeader(hdr); err != nil {
				return false, errors.WithStack(err)
			}
			_, err := io.Copy(tw, r)
			return true, errors.Wrapf(err, "copy %s", hdr.Name)
		})
		if err == nil && extra == nil && !dropped {
			err = errors.WithStack(errs.ObjectNotFound)
		}
		if err == nil && extra != nil {
			err = extra(tw.Writer)
		}
		if err != nil {
			_ = tw.Close()
			return err
		}
		return tw.Close()
	})
	return err
}

func (t *Tar) writeNew(ctx context.Context, sessionID string, w *tar.Writer, files []*model.FileInfo) error {
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := tree.Clean(f.FileName)
		if name == "" {
			continue
		}
		if _, ok := f.StagedSource(); !ok && f.IsFolder {
			hdr := &tar.Header{
				Typeflag: tar.TypeDir,
				Name:     name + "/",
				Mode:     0755,
				ModTime:  f.ModTime(),
			}
			if err := w.WriteHeader(hdr); err != nil {
				return errors.WithStack(err)
			}
			continue
		}
		if err := addStaged(w, name, f); err != nil {
			return errors.Wrapf(err, "add %s", name)
		}
		t.Progress(sessionID, "Adding "+name, float64(i+1), float64(len(files)))
	}
	return nil
}

func addStaged(w *tar.Writer, name string, f *model.FileInfo) error {
	src, fi, err := tool.OpenStaged(f)
	if err != nil {
		return err
	}
	defer src.Close()
	hdr, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return errors.WithStack(err)
	}
	hdr.Name = name
	if fi.IsDir() {
		hdr.Name += "/"
		return errors.WithStack(w.WriteHeader(hdr))
	}
	if err := w.WriteHeader(hdr); err != nil {
		return errors.WithStack(err)
	}
	_, err = io.Copy(w, src)
	return errors.WithStack(err)
}

var _ tool.ReadService = (*Tar)(nil)
var _ tool.WriteService = (*Tar)(nil)
