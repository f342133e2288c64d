// Package session holds the working state of one open archive: its
// normalized listing, the navigation cursor and the pending migration.
package session

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/maruel/natural"
	"github.com/pkg/errors"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/model"
)

type Session struct {
	ID     string
	Info   *model.ArchiveInfo
	Reader tool.ReadService
	// Writer is nil for formats no enabled provider can write.
	Writer tool.WriteService

	// set for archives opened from an entry of another session
	ParentID    string
	ParentPath  string
	ParentEntry *model.FileInfo
	// Temporary archives live in scratch space and are removed on close
	// unless saved.
	Temporary bool

	compressor bool

	mu        sync.RWMutex
	files     []*model.FileInfo
	depth     int
	prefix    string
	migration Migration

	// op serializes the operations running on this session
	op sync.Mutex
}

// New builds a session with an empty listing. An empty id gets a fresh one.
func New(id string, info *model.ArchiveInfo, reader tool.ReadService, writer tool.WriteService, compressor bool) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:         id,
		Info:       info,
		Reader:     reader,
		Writer:     writer,
		compressor: compressor,
	}
}

// IsCompressor reports whether the archive wraps a single compressed file
// and therefore rejects structural changes.
func (s *Session) IsCompressor() bool {
	return s.compressor
}

func (s *Session) ReadOnly() bool {
	return s.Writer == nil || s.compressor
}

func (s *Session) Lock() {
	s.op.Lock()
}

func (s *Session) TryLock() bool {
	return s.op.TryLock()
}

func (s *Session) Unlock() {
	s.op.Unlock()
}

// Refresh lists the archive again and replaces the file list wholesale.
// The navigation cursor is kept even if its folder disappeared.
func (s *Session) Refresh(ctx context.Context) error {
	if s.Reader == nil {
		return errors.New("session has no read provider")
	}
	files, err := s.Reader.ListFiles(ctx, s.ID, s.Info)
	if err != nil {
		return err
	}
	s.SetFiles(files)
	return nil
}

// SetFiles normalizes files and makes them the listing of the session.
func (s *Session) SetFiles(files []*model.FileInfo) {
	files = tree.Normalize(files)
	s.mu.Lock()
	s.files = files
	s.mu.Unlock()
}

func (s *Session) Files() []*model.FileInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.FileInfo(nil), s.files...)
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func (s *Session) Find(level int, name string) (*model.FileInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := model.EntryKey{Level: level, FileName: tree.Clean(name)}
	for _, f := range s.files {
		if f.Key() == key {
			return f, true
		}
	}
	return nil, false
}

// FindPath looks an entry up by its full name alone.
func (s *Session) FindPath(name string) (*model.FileInfo, bool) {
	name = tree.Clean(name)
	return s.Find(tree.LevelOf(name), name)
}

// FilesAtCurrentLevel is the content of the current folder, folders first
// and then in natural name order.
func (s *Session) FilesAtCurrentLevel() []*model.FileInfo {
	s.mu.RLock()
	ret := tree.Children(s.files, s.depth, s.prefix)
	s.mu.RUnlock()
	sort.SliceStable(ret, func(i, j int) bool {
		if ret[i].IsFolder != ret[j].IsFolder {
			return ret[i].IsFolder
		}
		return natural.Less(ret[i].FileName, ret[j].FileName)
	})
	return ret
}

// NavigateInto makes entry the current folder. It does not check that entry
// is a folder.
func (s *Session) NavigateInto(entry *model.FileInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depth++
	s.prefix = entry.FileName
}

func (s *Session) NavigateUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depth > 0 {
		s.depth--
	}
	s.prefix = tree.Parent(s.prefix)
}

// Cursor returns the current depth and folder path ("" is the root).
func (s *Session) Cursor() (int, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.depth, s.prefix
}

func (s *Session) Migration() Migration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.migration
}

// StartMigration stages entry for typ. It fails without any change when the
// archive is a compressor archive or a migration of another type is
// pending. Starting the pending type again replaces its source.
func (s *Session) StartMigration(typ MigrationType, entry *model.FileInfo) bool {
	if typ == MigrationNone || entry == nil || s.compressor {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.migration.Active() && s.migration.Type != typ {
		return false
	}
	s.migration = Migration{Type: typ, Source: entry}
	return true
}

func (s *Session) ClearMigration() {
	s.mu.Lock()
	s.migration = Migration{}
	s.mu.Unlock()
}

func (s *Session) CanCopy() bool {
	return s.can(MigrationCopy)
}

func (s *Session) CanMove() bool {
	return s.can(MigrationMove)
}

func (s *Session) CanDelete() bool {
	return s.can(MigrationDelete)
}

func (s *Session) can(typ MigrationType) bool {
	if s.ReadOnly() {
		return false
	}
	m := s.Migration()
	return !m.Active() || m.Type == typ
}
