package iso

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/kdomanski/iso9660"
	"github.com/pkg/errors"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
)

// ISO reads and writes ISO 9660 images. Written names are lower cased and
// limited to d-characters, see StoredName. Empty folders are not kept.
type ISO struct {
	tool.Base
}

func New(publisher bus.Publisher) *ISO {
	i := &ISO{}
	i.Publisher = publisher
	return i
}

func (*ISO) Name() string {
	return "iso"
}

func (*ISO) SupportedReadFormats() []string {
	return []string{"iso"}
}

func (*ISO) SupportedWriteFormats() []string {
	return []string{"iso"}
}

func (*ISO) CompressorArchives() mapset.Set[string] {
	return mapset.NewSet[string]()
}

func (*ISO) Extension() tool.ExtensionPoint {
	return tool.NoExtension()
}

type entry struct {
	name string
	file *iso9660.File
}

type image struct {
	file    *os.File
	entries []entry
}

func (i *image) Close() error {
	return i.file.Close()
}

func openImage(path string) (*image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	img, err := iso9660.OpenImage(file)
	if err != nil {
		_ = file.Close()
		return nil, errors.WithStack(err)
	}
	root, err := img.RootDir()
	if err != nil {
		_ = file.Close()
		return nil, errors.WithStack(err)
	}
	ret := &image{file: file}
	if err := ret.walk(root, ""); err != nil {
		_ = file.Close()
		return nil, err
	}
	return ret, nil
}

func (i *image) walk(dir *iso9660.File, prefix string) error {
	children, err := dir.GetChildren()
	if err != nil {
		return errors.WithStack(err)
	}
	for _, child := range children {
		base := child.Name()
		if base == "" || base == "." || base == ".." || base == "\x00" || base == "\x01" {
			continue
		}
		name := tree.Join(prefix, base)
		i.entries = append(i.entries, entry{name: name, file: child})
		if child.IsDir() {
			if err := i.walk(child, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func toFileInfo(e entry) *model.FileInfo {
	f := &model.FileInfo{
		Level:         tree.LevelOf(e.name),
		FileName:      e.name,
		PackedSize:    e.file.Size(),
		RawSize:       e.file.Size(),
		LastWriteTime: model.TimePtr(e.file.ModTime()),
		Attributes:    uint32(e.file.Mode().Perm()),
		IsFolder:      e.file.IsDir(),
	}
	if f.IsFolder {
		f.PackedSize, f.RawSize = 0, 0
	}
	return f
}

func (i *ISO) ListFiles(ctx context.Context, sessionID string, info *model.ArchiveInfo) (files []*model.FileInfo, err error) {
	defer i.Recover(sessionID, info, "List", &err)
	img, err := openImage(info.Path)
	if err != nil {
		return nil, i.Fail(sessionID, info, "List", err)
	}
	defer img.Close()
	files = make([]*model.FileInfo, 0, len(img.entries))
	for _, e := range img.entries {
		files = append(files, toFileInfo(e))
	}
	return files, nil
}

func (i *ISO) ExtractFile(ctx context.Context, sessionID, targetPath string, info *model.ArchiveInfo, file *model.FileInfo) (err error) {
	defer i.Recover(sessionID, info, "Extract", &err)
	img, err := openImage(info.Path)
	if err != nil {
		return i.Fail(sessionID, info, "Extract", err)
	}
	defer img.Close()
	for _, e := range img.entries {
		if e.name != file.FileName {
			continue
		}
		if e.file.IsDir() {
			return i.Fail(sessionID, info, "Extract", tool.MakeFolder(targetPath))
		}
		err = tool.WriteEntry(ctx, targetPath, e.file.Reader(), e.file.Size(), 0644, e.file.ModTime(), func(p float64) {
			i.Progress(sessionID, "Extracting "+file.FileName, p, 100)
		})
		return i.Fail(sessionID, info, "Extract", errors.WithStack(err))
	}
	return i.Fail(sessionID, info, "Extract", errors.Wrap(errs.ObjectNotFound, file.FileName))
}

// TestArchive reads every file, ISO 9660 stores no checksums to verify.
func (i *ISO) TestArchive(ctx context.Context, sessionID string, info *model.ArchiveInfo) (err error) {
	defer i.Recover(sessionID, info, "Test", &err)
	img, err := openImage(info.Path)
	if err != nil {
		return i.Fail(sessionID, info, "Test", err)
	}
	defer img.Close()
	for n, e := range img.entries {
		if err = ctx.Err(); err != nil {
			return i.Fail(sessionID, info, "Test", err)
		}
		if e.file.IsDir() {
			continue
		}
		if _, err = io.Copy(io.Discard, e.file.Reader()); err != nil {
			return i.Fail(sessionID, info, "Test", errors.Wrap(err, e.name))
		}
		i.Progress(sessionID, "Testing "+e.name, float64(n+1), float64(len(img.entries)))
	}
	return nil
}

func (i *ISO) CreateArchive(ctx context.Context, sessionID string, info *model.ArchiveInfo, files ...*model.FileInfo) (err error) {
	defer i.Recover(sessionID, info, "Create", &err)
	err = i.build(ctx, sessionID, info, nil, files)
	return i.Fail(sessionID, info, "Create", err)
}

func (i *ISO) AddFile(ctx context.Context, sessionID string, info *model.ArchiveInfo, files ...*model.FileInfo) (err error) {
	defer i.Recover(sessionID, info, "Add", &err)
	img, err := openImage(info.Path)
	if err != nil {
		return i.Fail(sessionID, info, "Add", err)
	}
	defer img.Close()
	replaced := make(map[string]struct{}, len(files))
	for _, f := range files {
		replaced[i.StoredName(f.FileName)] = struct{}{}
	}
	kept := make([]entry, 0, len(img.entries))
	for _, e := range img.entries {
		if _, ok := replaced[e.name]; !ok {
			kept = append(kept, e)
		}
	}
	err = i.build(ctx, sessionID, info, kept, files)
	return i.Fail(sessionID, info, "Add", err)
}

func (i *ISO) DeleteFile(ctx context.Context, sessionID string, info *model.ArchiveInfo, file *model.FileInfo) (err error) {
	defer i.Recover(sessionID, info, "Delete", &err)
	img, err := openImage(info.Path)
	if err != nil {
		return i.Fail(sessionID, info, "Delete", err)
	}
	defer img.Close()
	target := i.StoredName(file.FileName)
	kept := make([]entry, 0, len(img.entries))
	for _, e := range img.entries {
		if e.name != target && !tree.IsUnder(e.name, target) {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(img.entries) {
		return i.Fail(sessionID, info, "Delete", errors.Wrap(errs.ObjectNotFound, target))
	}
	err = i.build(ctx, sessionID, info, kept, nil)
	return i.Fail(sessionID, info, "Delete", err)
}

// build writes a new image holding the files of kept followed by files.
func (i *ISO) build(ctx context.Context, sessionID string, info *model.ArchiveInfo, kept []entry, files []*model.FileInfo) error {
	w, err := iso9660.NewWriter()
	if err != nil {
		return errors.WithStack(err)
	}
	defer w.Cleanup()
	for _, e := range kept {
		if e.file.IsDir() {
			continue
		}
		if err := w.AddFile(e.file.Reader(), e.name); err != nil {
			return errors.Wrapf(err, "copy %s", e.name)
		}
	}
	for n, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.IsFolder {
			continue
		}
		src, _, err := tool.OpenStaged(f)
		if err != nil {
			return err
		}
		err = w.AddFile(src, i.StoredName(f.FileName))
		_ = src.Close()
		if err != nil {
			return errors.Wrapf(err, "add %s", f.FileName)
		}
		i.Progress(sessionID, "Adding "+f.FileName, float64(n+1), float64(len(files)))
	}
	return tool.AtomicWrite(info.Path, func(out io.Writer) error {
		return errors.WithStack(w.WriteTo(out, volumeID(info.Path)))
	})
}

const (
	maxDirName  = 31
	maxFileName = 30
)

// StoredName returns name as the image lists it once written: every
// segment lower cased with characters outside d1 replaced by '_', folder
// segments cut to 31 characters and the file name to the 30 characters of
// an identifier including its ";1" version. Inner dots of the file name
// become '_'.
func (*ISO) StoredName(name string) string {
	segments := strings.Split(tree.Clean(name), "/")
	last := len(segments) - 1
	for n := 0; n < last; n++ {
		segments[n] = d1String(segments[n], maxDirName)
	}
	parts := strings.Split(strings.ToLower(segments[last]), ".")
	if len(parts) == 1 {
		segments[last] = d1String(parts[0], maxFileName-2)
		return strings.Join(segments, "/")
	}
	ext := d1String(parts[len(parts)-1], 8)
	base := strings.Join(parts[:len(parts)-1], "_")
	if ext == "" {
		segments[last] = d1String(base, maxFileName-2)
	} else {
		segments[last] = d1String(base, maxFileName-2-1-len(ext)) + "." + ext
	}
	return strings.Join(segments, "/")
}

func d1String(s string, limit int) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for n := 0; n < len(s) && n < limit; n++ {
		if c := s[n]; strings.IndexByte(d1Characters, c) >= 0 {
			b.WriteByte(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

const d1Characters = "abcdefghijklmnopqrstuvwxyz0123456789_!\"%&'()*+,-./:;<=>?"

// volumeID derives the volume label from the image name, limited to the
// d-characters A-Z, 0-9 and underscore.
func volumeID(path string) string {
	name := filepath.Base(path)
	name = strings.ToUpper(strings.TrimSuffix(name, filepath.Ext(name)))
	id := strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)
	if len(id) > 32 {
		id = id[:32]
	}
	return id
}

var _ tool.ReadService = (*ISO)(nil)
var _ tool.WriteService = (*ISO)(nil)
var _ tool.NameMapper = (*ISO)(nil)
