package tool

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/zipfx/zipfx/internal/model"
)

// Service is the capability shared by read and write providers.
type Service interface {
	// Name identifies the provider in configuration (disabled_providers).
	Name() string
	IsEnabled() bool
	SetEnabled(enabled bool)
	// CompressorArchives returns the formats this provider handles that wrap
	// exactly one inner entry and therefore can not be mutated in place.
	CompressorArchives() mapset.Set[string]
	Extension() ExtensionPoint
}

// ReadService lists, extracts and tests archives. Failures are returned and
// also published as model.ErrorMessage for the given session.
type ReadService interface {
	Service
	ListFiles(ctx context.Context, sessionID string, info *model.ArchiveInfo) ([]*model.FileInfo, error)
	// ExtractFile writes the content of file to targetPath, which names the
	// resulting file (or directory for folder entries).
	ExtractFile(ctx context.Context, sessionID, targetPath string, info *model.ArchiveInfo, file *model.FileInfo) error
	TestArchive(ctx context.Context, sessionID string, info *model.ArchiveInfo) error
	SupportedReadFormats() []string
}

// WriteService creates and mutates archives. A failed call leaves the
// archive exactly as it was before the call.
type WriteService interface {
	Service
	// CreateArchive writes a new archive containing files, each of which must
	// carry its local source under model.KeyStagedSource unless it is a folder.
	CreateArchive(ctx context.Context, sessionID string, info *model.ArchiveInfo, files ...*model.FileInfo) error
	AddFile(ctx context.Context, sessionID string, info *model.ArchiveInfo, files ...*model.FileInfo) error
	// DeleteFile removes file, and everything below it when it is a folder.
	DeleteFile(ctx context.Context, sessionID string, info *model.ArchiveInfo, file *model.FileInfo) error
	SupportedWriteFormats() []string
}

// MetaService is implemented by providers that can read archive level
// information without listing every entry.
type MetaService interface {
	GetMeta(ctx context.Context, sessionID string, info *model.ArchiveInfo) (model.ArchiveMeta, error)
}

// MultipartService is implemented by providers that read split archives.
// Extensions are fmt patterns receiving the volume number, e.g. ".7z.%.3d".
type MultipartService interface {
	AcceptedMultipartExtensions() []string
}

// NameMapper is implemented by writers that store entry names in a
// normalized form. StoredName returns the name an entry added as name is
// listed under afterwards.
type NameMapper interface {
	StoredName(name string) string
}

// StoredName maps name through ws when it is a NameMapper.
func StoredName(ws WriteService, name string) string {
	if m, ok := ws.(NameMapper); ok {
		return m.StoredName(name)
	}
	return name
}

// CreateArchiveAt is CreateArchive for a bare path with default settings.
func CreateArchiveAt(ctx context.Context, ws WriteService, sessionID, path string, files ...*model.FileInfo) error {
	return ws.CreateArchive(ctx, sessionID, model.NewArchiveInfo(path), files...)
}

// AddFileAt is AddFile for a bare path with default settings.
func AddFileAt(ctx context.Context, ws WriteService, sessionID, path string, files ...*model.FileInfo) error {
	return ws.AddFile(ctx, sessionID, model.NewArchiveInfo(path), files...)
}

// ListFilesAt is ListFiles for a bare path with default settings.
func ListFilesAt(ctx context.Context, rs ReadService, sessionID, path string) ([]*model.FileInfo, error) {
	return rs.ListFiles(ctx, sessionID, model.NewArchiveInfo(path))
}
