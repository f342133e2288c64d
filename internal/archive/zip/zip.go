package zip

import (
	"context"
	"io"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/yeka/zip"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
)

type Zip struct {
	tool.Base
}

func New(publisher bus.Publisher) *Zip {
	z := &Zip{}
	z.Publisher = publisher
	return z
}

func (*Zip) Name() string {
	return "zip"
}

func (*Zip) SupportedReadFormats() []string {
	return []string{"zip"}
}

func (*Zip) SupportedWriteFormats() []string {
	return []string{"zip"}
}

func (*Zip) CompressorArchives() mapset.Set[string] {
	return mapset.NewSet[string]()
}

func (*Zip) Extension() tool.ExtensionPoint {
	return tool.OptionsExtension(
		tool.OptionSpec{Key: model.PropEncryption, Description: "entry encryption", Values: []string{"", "zipcrypto", "aes128", "aes192", "aes256"}},
		tool.OptionSpec{Key: model.PropPassword, Description: "password used to read and write encrypted entries"},
		tool.OptionSpec{Key: model.PropCompressionMethod, Description: "compression method", Values: []string{"deflate", "store"}, Default: "deflate"},
	)
}

func (z *Zip) GetMeta(ctx context.Context, sessionID string, info *model.ArchiveInfo) (meta model.ArchiveMeta, err error) {
	defer z.Recover(sessionID, info, "Read archive info", &err)
	reader, err := zip.OpenReader(info.Path)
	if err != nil {
		return nil, z.Fail(sessionID, info, "Read archive info", err)
	}
	defer reader.Close()
	encrypted := false
	for _, file := range reader.File {
		if file.IsEncrypted() {
			encrypted = true
			break
		}
	}
	return &zipMeta{Comment: reader.Comment, Encrypted: encrypted, Count: len(reader.File)}, nil
}

func (z *Zip) ListFiles(ctx context.Context, sessionID string, info *model.ArchiveInfo) (files []*model.FileInfo, err error) {
	defer z.Recover(sessionID, info, "List", &err)
	reader, err := zip.OpenReader(info.Path)
	if err != nil {
		return nil, z.Fail(sessionID, info, "List", err)
	}
	defer reader.Close()
	files = make([]*model.FileInfo, 0, len(reader.File))
	for _, file := range reader.File {
		f := toFileInfo(file)
		if f.FileName == "" {
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

func (z *Zip) ExtractFile(ctx context.Context, sessionID, targetPath string, info *model.ArchiveInfo, file *model.FileInfo) (err error) {
	defer z.Recover(sessionID, info, "Extract", &err)
	reader, err := zip.OpenReader(info.Path)
	if err != nil {
		return z.Fail(sessionID, info, "Extract", err)
	}
	defer reader.Close()
	for _, f := range reader.File {
		if tree.Clean(decodeName(f)) != file.FileName {
			continue
		}
		if f.FileInfo().IsDir() || file.IsFolder {
			return z.Fail(sessionID, info, "Extract", tool.MakeFolder(targetPath))
		}
		err = decompress(ctx, f, targetPath, info.Password(), func(p float64) {
			z.Progress(sessionID, "Extracting "+file.FileName, p, 100)
		})
		return z.Fail(sessionID, info, "Extract", err)
	}
	if file.IsFolder {
		// implied folder, not stored in the archive
		return z.Fail(sessionID, info, "Extract", tool.MakeFolder(targetPath))
	}
	return z.Fail(sessionID, info, "Extract", errors.Wrap(errs.ObjectNotFound, file.FileName))
}

func (z *Zip) TestArchive(ctx context.Context, sessionID string, info *model.ArchiveInfo) (err error) {
	defer z.Recover(sessionID, info, "Test", &err)
	reader, err := zip.OpenReader(info.Path)
	if err != nil {
		return z.Fail(sessionID, info, "Test", err)
	}
	defer reader.Close()
	for i, f := range reader.File {
		if err = ctx.Err(); err != nil {
			return z.Fail(sessionID, info, "Test", err)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := openFile(f, info.Password())
		if err != nil {
			return z.Fail(sessionID, info, "Test", errors.Wrap(err, f.Name))
		}
		_, err = io.Copy(io.Discard, rc)
		_ = rc.Close()
		if err != nil {
			return z.Fail(sessionID, info, "Test", filterPassword(errors.Wrap(err, f.Name)))
		}
		z.Progress(sessionID, "Testing "+f.Name, float64(i+1), float64(len(reader.File)))
	}
	return nil
}

func (z *Zip) CreateArchive(ctx context.Context, sessionID string, info *model.ArchiveInfo, files ...*model.FileInfo) (err error) {
	defer z.Recover(sessionID, info, "Create", &err)
	err = tool.AtomicWrite(info.Path, func(out io.Writer) error {
		w := zip.NewWriter(out)
		if err := z.writeNew(ctx, sessionID, w, info, files); err != nil {
			_ = w.Close()
			return err
		}
		return w.Close()
	})
	return z.Fail(sessionID, info, "Create", err)
}

func (z *Zip) AddFile(ctx context.Context, sessionID string, info *model.ArchiveInfo, files ...*model.FileInfo) (err error) {
	defer z.Recover(sessionID, info, "Add", &err)
	replaced := make(map[string]struct{}, len(files))
	for _, f := range files {
		replaced[tree.Clean(f.FileName)] = struct{}{}
	}
	err = z.rewrite(ctx, info, func(name string) bool {
		_, ok := replaced[name]
		return !ok
	}, func(w *zip.Writer) error {
		return z.writeNew(ctx, sessionID, w, info, files)
	})
	return z.Fail(sessionID, info, "Add", err)
}

func (z *Zip) DeleteFile(ctx context.Context, sessionID string, info *model.ArchiveInfo, file *model.FileInfo) (err error) {
	defer z.Recover(sessionID, info, "Delete", &err)
	target := tree.Clean(file.FileName)
	err = z.rewrite(ctx, info, func(name string) bool {
		return name != target && !tree.IsUnder(name, target)
	}, nil)
	return z.Fail(sessionID, info, "Delete", err)
}

// rewrite copies the entries accepted by keep into a new archive, lets
// extra append more and replaces the original only when everything worked.
// Without extra, a keep that drops nothing is reported as ObjectNotFound.
func (z *Zip) rewrite(ctx context.Context, info *model.ArchiveInfo, keep func(name string) bool, extra func(w *zip.Writer) error) error {
	reader, err := zip.OpenReader(info.Path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer reader.Close()
	kept := make([]*zip.File, 0, len(reader.File))
	for _, f := range reader.File {
		if keep(tree.Clean(decodeName(f))) {
			kept = append(kept, f)
		}
	}
	if extra == nil && len(kept) == len(reader.File) {
		return errors.WithStack(errs.ObjectNotFound)
	}
	return tool.AtomicWrite(info.Path, func(out io.Writer) error {
		w := zip.NewWriter(out)
		for _, f := range kept {
			if err := ctx.Err(); err != nil {
				_ = w.Close()
				return err
			}
			if err := copyEntry(w, f, info); err != nil {
				_ = w.Close()
				return errors.Wrapf(err, "copy %s", f.Name)
			}
		}
		if extra != nil {
			if err := extra(w); err != nil {
				_ = w.Close()
				return err
			}
		}
		return w.Close()
	})
}

func (z *Zip) writeNew(ctx context.Context, sessionID string, w *zip.Writer, info *model.ArchiveInfo, files []*model.FileInfo) error {
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := tree.Clean(f.FileName)
		if name == "" {
			continue
		}
		if f.IsFolder {
			if _, ok := f.StagedSource(); !ok {
				fh := &zip.FileHeader{Name: name + "/", Method: zip.Store}
				fh.SetMode(os.ModeDir | 0755)
				if _, err := w.CreateHeader(fh); err != nil {
					return errors.WithStack(err)
				}
				continue
			}
		}
		if err := addStaged(w, name, f, info); err != nil {
			return errors.Wrapf(err, "add %s", name)
		}
		z.Progress(sessionID, "Adding "+name, float64(i+1), float64(len(files)))
	}
	return nil
}

func addStaged(w *zip.Writer, name string, f *model.FileInfo, info *model.ArchiveInfo) error {
	src, fi, err := tool.OpenStaged(f)
	if err != nil {
		return err
	}
	defer src.Close()
	if fi.IsDir() {
		fh := &zip.FileHeader{Name: name + "/", Method: zip.Store}
		fh.SetMode(fi.Mode())
		fh.SetModTime(fi.ModTime())
		_, err = w.CreateHeader(fh)
		return errors.WithStack(err)
	}
	dst, err := createEntry(w, name, fi, info)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return errors.WithStack(err)
}

func createEntry(w *zip.Writer, name string, fi os.FileInfo, info *model.ArchiveInfo) (io.Writer, error) {
	if enc, ok := encryptionMethod(info.GetString(model.PropEncryption)); ok {
		if info.Password() == "" {
			return nil, errors.Wrap(errs.WrongArchivePassword, "encryption requires a password")
		}
		dst, err := w.Encrypt(name, info.Password(), enc)
		return dst, errors.WithStack(err)
	}
	fh, err := zip.FileInfoHeader(fi)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	fh.Name = name
	fh.Method = compressionMethod(info)
	dst, err := w.CreateHeader(fh)
	return dst, errors.WithStack(err)
}

func copyEntry(w *zip.Writer, f *zip.File, info *model.ArchiveInfo) error {
	if f.FileInfo().IsDir() {
		fh := f.FileHeader
		fh.Extra = nil
		_, err := w.CreateHeader(&fh)
		return errors.WithStack(err)
	}
	rc, err := openFile(f, info.Password())
	if err != nil {
		return err
	}
	defer rc.Close()
	var dst io.Writer
	if f.IsEncrypted() {
		enc, ok := encryptionMethod(info.GetString(model.PropEncryption))
		if !ok {
			enc = zip.AES256Encryption
		}
		dst, err = w.Encrypt(f.Name, info.Password(), enc)
	} else {
		fh := &zip.FileHeader{
			Name:           f.Name,
			Comment:        f.Comment,
			Method:         f.Method,
			ExternalAttrs:  f.ExternalAttrs,
			CreatorVersion: f.CreatorVersion,
			Flags:          f.Flags & flagUTF8,
		}
		fh.SetModTime(f.ModTime())
		dst, err = w.CreateHeader(fh)
	}
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = io.Copy(dst, rc)
	return filterPassword(errors.WithStack(err))
}

func openFile(f *zip.File, password string) (io.ReadCloser, error) {
	if f.IsEncrypted() {
		if password == "" {
			return nil, errors.WithStack(errs.WrongArchivePassword)
		}
		f.SetPassword(password)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, filterPassword(errors.WithStack(err))
	}
	return rc, nil
}

func filterPassword(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(errors.Cause(err).Error())
	if strings.Contains(msg, "password") || strings.Contains(msg, "decryption") || strings.Contains(msg, "authentication") {
		return errors.Wrap(errs.WrongArchivePassword, err.Error())
	}
	return err
}

var _ tool.ReadService = (*Zip)(nil)
var _ tool.WriteService = (*Zip)(nil)
var _ tool.MetaService = (*Zip)(nil)
