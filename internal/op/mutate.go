package op

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
	"github.com/zipfx/zipfx/internal/session"
	"github.com/zipfx/zipfx/pkg/utils"
)

// verifier checks the listing after a structural change against the
// listing before it.
type verifier func(before, after []*model.FileInfo) error

func (c *Coordinator) list(ctx context.Context, s *session.Session) ([]*model.FileInfo, error) {
	files, err := s.Reader.ListFiles(ctx, s.ID, s.Info)
	if err != nil {
		return nil, err
	}
	return tree.Normalize(files), nil
}

// mutate applies fn to the archive of s under the backup protocol: no
// change is attempted without a backup, and a failing fn or verify puts
// the backup back in place.
func (c *Coordinator) mutate(ctx context.Context, s *session.Session, fn func(ctx context.Context) error, verify verifier) error {
	before, err := c.list(ctx, s)
	if err != nil {
		return err
	}
	b, err := takeBackup(s.Info.Path, filepath.Join(c.opts.TempDir, "backup"))
	if err != nil {
		return err
	}
	defer b.discard()
	err = fn(ctx)
	if err == nil {
		var after []*model.FileInfo
		after, err = c.list(ctx, s)
		if err == nil && verify != nil {
			err = verify(before, after)
		}
	}
	if err == nil {
		return nil
	}
	if rerr := b.restore(); rerr != nil {
		return errors.WithMessagef(rerr, "after %v", err)
	}
	return errors.WithMessage(err, "archive restored")
}

func writable(s *session.Session) error {
	if s.IsCompressor() {
		return errors.Wrap(errs.CompressorArchive, s.Info.Format)
	}
	if s.Writer == nil {
		return errors.Wrapf(errs.ProviderUnavailable, "%s is read only", s.Info.Format)
	}
	return nil
}

func indexKeys(files []*model.FileInfo) map[model.EntryKey]*model.FileInfo {
	ret := make(map[model.EntryKey]*model.FileInfo, len(files))
	for _, f := range files {
		ret[f.Key()] = f
	}
	return ret
}

func countFiles(files []*model.FileInfo) int {
	return len(utils.SliceFilter(files, func(f *model.FileInfo) bool {
		return !f.IsFolder
	}))
}

// present reports whether files lists name. Names not yet written are
// mapped to the form the writer of s stores them in.
func present(s *session.Session, files []*model.FileInfo, name string) bool {
	name = tree.Clean(name)
	if s.Writer != nil {
		name = tool.StoredName(s.Writer, name)
	}
	_, ok := indexKeys(files)[model.EntryKey{Level: tree.LevelOf(name), FileName: name}]
	return ok
}

// AddEntries adds staged files to the archive of s, replacing entries of
// the same name.
func (c *Coordinator) AddEntries(ctx context.Context, s *session.Session, files ...*model.FileInfo) *Task[struct{}] {
	return submit(c, ctx, s.ID, job[struct{}]{
		name:    "Add",
		class:   classWrite,
		s:       s,
		refresh: true,
		fn: func(ctx context.Context) (struct{}, error) {
			if len(files) == 0 {
				return struct{}{}, errors.WithStack(errs.NoSelection)
			}
			if err := writable(s); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, c.mutate(ctx, s, func(ctx context.Context) error {
				return s.Writer.AddFile(ctx, s.ID, s.Info, files...)
			}, func(_, after []*model.FileInfo) error {
				for _, f := range files {
					if !present(s, after, f.FileName) {
						return errors.Wrapf(errs.VerificationFailed, "%s missing after add", f.FileName)
					}
				}
				return nil
			})
		},
	})
}

// DeleteEntry removes entry, and everything below it for a folder.
func (c *Coordinator) DeleteEntry(ctx context.Context, s *session.Session, entry *model.FileInfo) *Task[struct{}] {
	return submit(c, ctx, s.ID, job[struct{}]{
		name:    "Delete",
		class:   classWrite,
		s:       s,
		refresh: true,
		fn: func(ctx context.Context) (struct{}, error) {
			defer s.ClearMigration()
			return struct{}{}, c.deleteEntry(ctx, s, entry)
		},
	})
}

func (c *Coordinator) deleteEntry(ctx context.Context, s *session.Session, entry *model.FileInfo) error {
	if entry == nil {
		return errors.WithStack(errs.NoSelection)
	}
	if err := writable(s); err != nil {
		return err
	}
	return c.mutate(ctx, s, func(ctx context.Context) error {
		return s.Writer.DeleteFile(ctx, s.ID, s.Info, entry)
	}, func(_, after []*model.FileInfo) error {
		if present(s, after, entry.FileName) {
			return errors.Wrapf(errs.VerificationFailed, "%s still present after delete", entry.FileName)
		}
		return nil
	})
}

// CopyEntry copies the file source into the folder destPrefix ("" is the
// archive root) of the same archive.
func (c *Coordinator) CopyEntry(ctx context.Context, s *session.Session, source *model.FileInfo, destPrefix string) *Task[struct{}] {
	return c.transfer(ctx, s, source, destPrefix, false)
}

// MoveEntry is CopyEntry followed by the deletion of source. Either both
// steps succeed or the archive is restored.
func (c *Coordinator) MoveEntry(ctx context.Context, s *session.Session, source *model.FileInfo, destPrefix string) *Task[struct{}] {
	return c.transfer(ctx, s, source, destPrefix, true)
}

func (c *Coordinator) transfer(ctx context.Context, s *session.Session, source *model.FileInfo, destPrefix string, move bool) *Task[struct{}] {
	name := "Copy"
	if move {
		name = "Move"
	}
	return submit(c, ctx, s.ID, job[struct{}]{
		name:    name,
		class:   classWrite,
		s:       s,
		refresh: true,
		fn: func(ctx context.Context) (struct{}, error) {
			defer s.ClearMigration()
			return struct{}{}, c.transferEntry(ctx, s, source, destPrefix, move)
		},
	})
}

func checkTransfer(s *session.Session, source *model.FileInfo, destPrefix string) (string, error) {
	if source == nil {
		return "", errors.WithStack(errs.NoSelection)
	}
	if err := writable(s); err != nil {
		return "", err
	}
	if source.IsFolder {
		return "", errors.Wrap(errs.FolderNotSupported, source.FileName)
	}
	destPrefix = tree.Clean(destPrefix)
	if destPrefix == tree.Parent(source.FileName) {
		return "", errors.Wrap(errs.SameLocation, destPrefix)
	}
	if destPrefix != "" {
		dest, ok := s.FindPath(destPrefix)
		if !ok {
			return "", errors.Wrap(errs.ObjectNotFound, destPrefix)
		}
		if !dest.IsFolder {
			return "", errors.Wrap(errs.NotFolder, destPrefix)
		}
	}
	destName := tree.Join(destPrefix, tree.Base(source.FileName))
	if _, ok := s.FindPath(tool.StoredName(s.Writer, destName)); ok {
		return "", errors.Wrap(errs.ObjectExists, destName)
	}
	return destName, nil
}

func (c *Coordinator) transferEntry(ctx context.Context, s *session.Session, source *model.FileInfo, destPrefix string, move bool) error {
	destName, err := checkTransfer(s, source, destPrefix)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.opts.TempDir, 0755); err != nil {
		return errors.WithStack(err)
	}
	scratch, err := os.MkdirTemp(c.opts.TempDir, "stage-")
	if err != nil {
		return errors.WithStack(err)
	}
	defer os.RemoveAll(scratch)
	local := filepath.Join(scratch, filepath.FromSlash(tree.Base(source.FileName)))
	if err := s.Reader.ExtractFile(ctx, s.ID, local, s.Info, source); err != nil {
		return err
	}
	staged := StageFile(local, destName)
	staged.LastWriteTime = source.LastWriteTime

	return c.mutate(ctx, s, func(ctx context.Context) error {
		if err := s.Writer.AddFile(ctx, s.ID, s.Info, staged); err != nil {
			return err
		}
		if move {
			return s.Writer.DeleteFile(ctx, s.ID, s.Info, source)
		}
		return nil
	}, func(before, after []*model.FileInfo) error {
		want := countFiles(before) + 1
		if move {
			want--
		}
		if got := countFiles(after); got != want {
			return errors.Wrapf(errs.VerificationFailed, "expected %d files, found %d", want, got)
		}
		if !present(s, after, staged.FileName) {
			return errors.Wrapf(errs.VerificationFailed, "%s missing", destName)
		}
		if move && present(s, after, source.FileName) {
			return errors.Wrapf(errs.VerificationFailed, "%s still present after move", source.FileName)
		}
		return nil
	})
}

// StartCopy stages entry for a later Paste.
func (c *Coordinator) StartCopy(s *session.Session, entry *model.FileInfo) error {
	return c.start(s, session.MigrationCopy, entry)
}

func (c *Coordinator) StartMove(s *session.Session, entry *model.FileInfo) error {
	return c.start(s, session.MigrationMove, entry)
}

// StartDelete stages entry for ConfirmDelete.
func (c *Coordinator) StartDelete(s *session.Session, entry *model.FileInfo) error {
	return c.start(s, session.MigrationDelete, entry)
}

func (c *Coordinator) start(s *session.Session, typ session.MigrationType, entry *model.FileInfo) error {
	err := func() error {
		if entry == nil {
			return errors.WithStack(errs.NoSelection)
		}
		if err := writable(s); err != nil {
			return err
		}
		if typ != session.MigrationDelete && entry.IsFolder {
			return errors.Wrap(errs.FolderNotSupported, entry.FileName)
		}
		if !s.StartMigration(typ, entry) {
			return errors.Wrapf(errs.MigrationActive, "%s pending", s.Migration().Type)
		}
		return nil
	}()
	if err != nil {
		c.report(s.ID, "Start "+typ.String(), s.Info, err)
	}
	return err
}

// Paste completes the pending copy or move into destPrefix.
func (c *Coordinator) Paste(ctx context.Context, s *session.Session, destPrefix string) *Task[struct{}] {
	m := s.Migration()
	switch m.Type {
	case session.MigrationCopy:
		return c.CopyEntry(ctx, s, m.Source, destPrefix)
	case session.MigrationMove:
		return c.MoveEntry(ctx, s, m.Source, destPrefix)
	case session.MigrationDelete:
		err := errors.Wrap(errs.MigrationActive, "a delete is pending")
		c.report(s.ID, "Paste", s.Info, err)
		return failed[struct{}](s.ID, "Paste", err)
	}
	err := errors.WithStack(errs.NoSelection)
	c.report(s.ID, "Paste", s.Info, err)
	return failed[struct{}](s.ID, "Paste", err)
}

// ConfirmDelete deletes the entry staged by StartDelete.
func (c *Coordinator) ConfirmDelete(ctx context.Context, s *session.Session) *Task[struct{}] {
	m := s.Migration()
	if m.Type != session.MigrationDelete {
		err := errors.WithStack(errs.NoSelection)
		c.report(s.ID, "Delete", s.Info, err)
		return failed[struct{}](s.ID, "Delete", err)
	}
	return c.DeleteEntry(ctx, s, m.Source)
}
