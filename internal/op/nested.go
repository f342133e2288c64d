package op

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
	"github.com/zipfx/zipfx/internal/session"
	"github.com/zipfx/zipfx/pkg/utils"
)

// OpenNested extracts entry of parent to scratch space and opens it as an
// archive of its own. This is also the way to change the content of a
// compressor archive: edit the child, then Reintegrate it.
func (c *Coordinator) OpenNested(ctx context.Context, parent *session.Session, entry *model.FileInfo) *Task[*session.Session] {
	id := uuid.NewString()
	return submit(c, ctx, id, job[*session.Session]{
		name:  "Open nested",
		class: classRead,
		s:     parent,
		fn: func(ctx context.Context) (*session.Session, error) {
			if entry == nil || entry.IsFolder {
				return nil, errors.WithStack(errs.NoSelection)
			}
			dir := filepath.Join(c.opts.TempDir, "nested", id)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.WithStack(err)
			}
			local := filepath.Join(dir, tree.Base(entry.FileName))
			if err := parent.Reader.ExtractFile(ctx, parent.ID, local, parent.Info, entry); err != nil {
				_ = os.RemoveAll(dir)
				return nil, err
			}
			child, err := c.newSession(ctx, id, model.NewArchiveInfo(local))
			if err != nil {
				_ = os.RemoveAll(dir)
				return nil, err
			}
			child.ParentID = parent.ID
			child.ParentPath = parent.Info.Path
			e := *entry
			child.ParentEntry = &e
			child.Temporary = true
			if err := child.Refresh(ctx); err != nil {
				_ = os.RemoveAll(dir)
				return nil, err
			}
			c.sessions.Add(child)
			return child, nil
		},
	})
}

// Reintegrate writes the archive of child back into the entry of its parent
// it was opened from. A compressor parent is rebuilt next to itself and
// renamed over the original once complete, any other parent has the entry
// replaced under the backup protocol. The parent is untouched on failure.
func (c *Coordinator) Reintegrate(ctx context.Context, child *session.Session) *Task[struct{}] {
	parent, ok := c.sessions.Get(child.ParentID)
	if !ok || child.ParentEntry == nil {
		err := errors.Wrap(errs.SessionClosed, "parent archive is not open")
		c.report(child.ID, "Reintegrate", child.Info, err)
		return failed[struct{}](child.ID, "Reintegrate", err)
	}
	return submit(c, ctx, parent.ID, job[struct{}]{
		name:    "Reintegrate",
		class:   classWrite,
		s:       parent,
		extra:   child,
		refresh: true,
		fn: func(ctx context.Context) (struct{}, error) {
			staged := StageFile(child.Info.Path, child.ParentEntry.FileName)
			if parent.IsCompressor() {
				return struct{}{}, c.rewrap(ctx, parent, staged)
			}
			if err := writable(parent); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, c.mutate(ctx, parent, func(ctx context.Context) error {
				if err := parent.Writer.DeleteFile(ctx, parent.ID, parent.Info, child.ParentEntry); err != nil {
					return err
				}
				return parent.Writer.AddFile(ctx, parent.ID, parent.Info, staged)
			}, func(_, after []*model.FileInfo) error {
				if !present(parent, after, staged.FileName) {
					return errors.Wrapf(errs.VerificationFailed, "%s missing after reintegration", staged.FileName)
				}
				return nil
			})
		},
	})
}

// rewrap builds a new compressor archive around staged and replaces the
// parent archive with it.
func (c *Coordinator) rewrap(ctx context.Context, parent *session.Session, staged *model.FileInfo) error {
	writer, ok := c.registry.WriteServiceForFormat(parent.Info.Format)
	if !ok {
		return errors.Wrap(errs.ProviderUnavailable, parent.Info.Format)
	}
	tmp, err := utils.CreateTempFile(parent.Info.Path, "."+filepath.Base(parent.Info.Path)+".*.new")
	if err != nil {
		return errors.WithStack(err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	info := parent.Info.Clone()
	info.Path = tmpPath
	if err := writer.CreateArchive(ctx, parent.ID, info, staged); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if fi, err := os.Stat(parent.Info.Path); err == nil {
		_ = os.Chmod(tmpPath, fi.Mode().Perm())
	}
	if err := utils.ReplaceFile(tmpPath, parent.Info.Path); err != nil {
		return errors.WithStack(err)
	}
	log.Infof("rebuilt %s from %s", parent.Info.Path, staged.FileName)
	return nil
}
