package op

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/internal/conf"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
	"github.com/zipfx/zipfx/internal/session"
	"github.com/zipfx/zipfx/pkg/utils"
)

// Open opens the archive at path with default settings.
func (c *Coordinator) Open(ctx context.Context, path string) *Task[*session.Session] {
	return c.OpenAs(ctx, model.NewArchiveInfo(path))
}

// OpenAs opens the archive described by info. An empty or unknown Format
// is resolved from the file name, then from the content.
func (c *Coordinator) OpenAs(ctx context.Context, info *model.ArchiveInfo) *Task[*session.Session] {
	id := uuid.NewString()
	return submit(c, ctx, id, job[*session.Session]{
		name:    "Open",
		class:   classRead,
		archive: info,
		fn: func(ctx context.Context) (*session.Session, error) {
			s, err := c.newSession(ctx, id, info)
			if err != nil {
				return nil, err
			}
			if err := s.Refresh(ctx); err != nil {
				return nil, err
			}
			c.sessions.Add(s)
			return s, nil
		},
	})
}

func (c *Coordinator) newSession(ctx context.Context, id string, info *model.ArchiveInfo) (*session.Session, error) {
	info = info.Clone()
	if _, ok := c.registry.ReadServiceForFormat(info.Format); !ok {
		format, err := c.registry.Identify(ctx, info.Path)
		if err != nil {
			return nil, errors.Wrap(err, info.Path)
		}
		info.Format = format
	}
	reader, ok := c.registry.ReadServiceForFormat(info.Format)
	if !ok {
		return nil, errors.Wrap(errs.ProviderUnavailable, info.Format)
	}
	writer, _ := c.registry.WriteServiceForFormat(info.Format)
	conf.ApplyDefaults(info)
	return session.New(id, info, reader, writer, c.registry.IsCompressor(info.Format)), nil
}

// Create writes a new archive holding files and opens a session on it.
func (c *Coordinator) Create(ctx context.Context, info *model.ArchiveInfo, files ...*model.FileInfo) *Task[*session.Session] {
	return c.create(ctx, info, false, files)
}

// CreateTemporary creates an archive of format in scratch space. Closing
// its session removes it unless asked to save it.
func (c *Coordinator) CreateTemporary(ctx context.Context, format string, files ...*model.FileInfo) *Task[*session.Session] {
	path := filepath.Join(c.opts.TempDir, "archives", uuid.NewString(), "archive."+format)
	info := model.NewArchiveInfo(path)
	info.Format = format
	return c.create(ctx, info, true, files)
}

func (c *Coordinator) create(ctx context.Context, info *model.ArchiveInfo, temporary bool, files []*model.FileInfo) *Task[*session.Session] {
	id := uuid.NewString()
	return submit(c, ctx, id, job[*session.Session]{
		name:    "Create",
		class:   classWrite,
		archive: info,
		fn: func(ctx context.Context) (*session.Session, error) {
			info := info.Clone()
			if info.Format == "" {
				format, err := c.registry.FormatOf(info.Path)
				if err != nil {
					return nil, errors.Wrap(err, info.Path)
				}
				info.Format = format
			}
			writer, ok := c.registry.WriteServiceForFormat(info.Format)
			if !ok {
				return nil, errors.Wrap(errs.ProviderUnavailable, info.Format)
			}
			if utils.Exists(info.Path) {
				return nil, errors.Wrap(errs.ObjectExists, info.Path)
			}
			conf.ApplyDefaults(info)
			if err := os.MkdirAll(filepath.Dir(info.Path), 0755); err != nil {
				return nil, errors.WithStack(err)
			}
			if err := writer.CreateArchive(ctx, id, info, files...); err != nil {
				return nil, err
			}
			s, err := c.newSession(ctx, id, info)
			if err != nil {
				return nil, err
			}
			s.Temporary = temporary
			if err := s.Refresh(ctx); err != nil {
				return nil, err
			}
			c.sessions.Add(s)
			return s, nil
		},
	})
}

// Close forgets s once its running operation is finished. A temporary
// archive is deleted unless save is set, in which case it is kept at its
// current path. Sessions opened from its entries are closed first.
func (c *Coordinator) Close(s *session.Session, save bool) error {
	for _, child := range c.sessions.Children(s.ID) {
		if err := c.Close(child, false); err != nil {
			return err
		}
	}
	s.Lock()
	defer s.Unlock()
	c.sessions.Remove(s.ID)
	s.ClearMigration()
	if !s.Temporary || save {
		return nil
	}
	dir := filepath.Dir(s.Info.Path)
	if err := os.Remove(s.Info.Path); err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	// scratch directories are private to the session
	if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
		log.Debugf("keeping %s: %v", dir, err)
	}
	return nil
}

// SaveAs copies a temporary archive to dst and turns the session into an
// ordinary one on dst. It fails with SessionBusy while an operation runs.
func (c *Coordinator) SaveAs(s *session.Session, dst string) error {
	if !s.TryLock() {
		return errors.Wrap(errs.SessionBusy, s.ID)
	}
	defer s.Unlock()
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.WithStack(err)
	}
	if err := copyFile(s.Info.Path, dst); err != nil {
		return err
	}
	old := s.Info.Path
	s.Info.Path = dst
	if s.Temporary {
		s.Temporary = false
		_ = os.Remove(old)
		_ = os.Remove(filepath.Dir(old))
	}
	return nil
}
