package handles

import (
	"context"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
	"github.com/zipfx/zipfx/internal/op"
	"github.com/zipfx/zipfx/internal/recent"
	"github.com/zipfx/zipfx/internal/session"
	"github.com/zipfx/zipfx/pkg/utils"
	"github.com/zipfx/zipfx/server/common"
)

var (
	coordinator *op.Coordinator
	recents     *recent.List
)

// Init hands the handlers the coordinator and recent files list they act on.
func Init(c *op.Coordinator, r *recent.List) {
	coordinator = c
	recents = r
}

type ObjResp struct {
	Index      int       `json:"index"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	PackedSize int64     `json:"packed_size"`
	IsDir      bool      `json:"is_dir"`
	Encrypted  bool      `json:"encrypted"`
	Modified   time.Time `json:"modified"`
	CRC        uint32    `json:"crc"`
}

func toObjResp(f *model.FileInfo) ObjResp {
	return ObjResp{
		Index:      f.Index,
		Name:       tree.Base(f.FileName),
		Path:       f.FileName,
		Size:       f.RawSize,
		PackedSize: f.PackedSize,
		IsDir:      f.IsFolder,
		Encrypted:  f.IsEncrypted,
		Modified:   f.ModTime(),
		CRC:        f.CRC,
	}
}

func toObjsResp(files []*model.FileInfo) []ObjResp {
	ret, _ := utils.SliceConvert(files, func(src *model.FileInfo) (ObjResp, error) {
		return toObjResp(src), nil
	})
	return ret
}

type MetaResp struct {
	Comment    string `json:"comment"`
	Encrypted  bool   `json:"encrypted"`
	EntryCount int    `json:"entry_count"`
}

type SessionResp struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Format     string    `json:"format"`
	ReadOnly   bool      `json:"read_only"`
	Compressor bool      `json:"compressor"`
	Temporary  bool      `json:"temporary"`
	ParentID   string    `json:"parent_id,omitempty"`
	Entries    int       `json:"entries"`
	Level      int       `json:"level"`
	Prefix     string    `json:"prefix"`
	Migration  string    `json:"migration"`
	CanCopy    bool      `json:"can_copy"`
	CanMove    bool      `json:"can_move"`
	CanDelete  bool      `json:"can_delete"`
	Meta       *MetaResp `json:"meta,omitempty"`
}

func toSessionResp(s *session.Session) SessionResp {
	level, prefix := s.Cursor()
	return SessionResp{
		ID:         s.ID,
		Path:       s.Info.Path,
		Format:     s.Info.Format,
		ReadOnly:   s.ReadOnly(),
		Compressor: s.IsCompressor(),
		Temporary:  s.Temporary,
		ParentID:   s.ParentID,
		Entries:    s.Len(),
		Level:      level,
		Prefix:     prefix,
		Migration:  s.Migration().Type.String(),
		CanCopy:    s.CanCopy(),
		CanMove:    s.CanMove(),
		CanDelete:  s.CanDelete(),
	}
}

type SessionReq struct {
	SessionID string `json:"session_id" form:"session_id" binding:"required"`
}

func getSession(c *gin.Context, id string) (*session.Session, bool) {
	s, err := coordinator.Session(id)
	if err != nil {
		common.OpErrorResp(c, err)
		return nil, false
	}
	return s, true
}

func getEntry(c *gin.Context, s *session.Session, path string) (*model.FileInfo, bool) {
	path = tree.Clean(path)
	if path == "" {
		common.OpErrorResp(c, errors.WithStack(errs.NoSelection))
		return nil, false
	}
	f, ok := s.FindPath(path)
	if !ok {
		common.OpErrorResp(c, errors.Wrap(errs.ObjectNotFound, path))
		return nil, false
	}
	return f, true
}

// await waits for task on behalf of the request. Progress is only
// available on the event stream.
func await[T any](c *gin.Context, task *op.Task[T]) (T, bool) {
	v, err := task.Wait(c.Request.Context())
	if errors.Is(err, context.Canceled) {
		// the client left, the task keeps running
		c.Abort()
		return v, false
	}
	if err != nil {
		common.OpErrorResp(c, err)
		return v, false
	}
	return v, true
}

type ProviderResp struct {
	Name      string              `json:"name"`
	Enabled   bool                `json:"enabled"`
	Extension tool.ExtensionPoint `json:"extension"`
}

type FormatsResp struct {
	Read        []string       `json:"read"`
	Write       []string       `json:"write"`
	Compressors []string       `json:"compressors"`
	Providers   []ProviderResp `json:"providers"`
}

func ArchiveFormats(c *gin.Context) {
	r := coordinator.Registry()
	compressors := r.CompressorArchives().ToSlice()
	sort.Strings(compressors)
	providers, _ := utils.SliceConvert(r.Providers(), func(p tool.Service) (ProviderResp, error) {
		return ProviderResp{Name: p.Name(), Enabled: p.IsEnabled(), Extension: p.Extension()}, nil
	})
	common.SuccessResp(c, FormatsResp{
		Read:        r.SupportedReadFormats(),
		Write:       r.SupportedWriteFormats(),
		Compressors: compressors,
		Providers:   providers,
	})
}

type OpenReq struct {
	Path     string `json:"path" form:"path" binding:"required"`
	Format   string `json:"format" form:"format"`
	Password string `json:"password" form:"password"`
}

func ArchiveOpen(c *gin.Context) {
	var req OpenReq
	if err := c.ShouldBind(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	info := model.NewArchiveInfo(req.Path)
	if req.Format != "" {
		info.Format = req.Format
	}
	if req.Password != "" {
		info.SetProperty(model.PropPassword, req.Password)
	}
	s, ok := await(c, coordinator.OpenAs(c, info))
	if !ok {
		return
	}
	addRecent(s.Info.Path)
	resp := toSessionResp(s)
	if ms, ok := s.Reader.(tool.MetaService); ok {
		if meta, err := ms.GetMeta(c, s.ID, s.Info); err == nil {
			resp.Meta = &MetaResp{
				Comment:    meta.GetComment(),
				Encrypted:  meta.IsEncrypted(),
				EntryCount: meta.GetEntryCount(),
			}
		}
	}
	common.SuccessResp(c, resp)
}

type StageReq struct {
	Src  string `json:"src" binding:"required"`
	Name string `json:"name"`
}

type CreateReq struct {
	Path             string     `json:"path"`
	Format           string     `json:"format"`
	Temporary        bool       `json:"temporary"`
	CompressionLevel *int       `json:"compression_level"`
	Password         string     `json:"password"`
	Encryption       string     `json:"encryption"`
	Files            []StageReq `json:"files"`
}

func stage(reqs []StageReq, prefix string) ([]*model.FileInfo, error) {
	var files []*model.FileInfo
	for _, r := range reqs {
		if r.Name != "" {
			files = append(files, op.StageFile(r.Src, tree.Join(prefix, r.Name)))
			continue
		}
		staged, err := op.StagePath(r.Src, prefix)
		if err != nil {
			return nil, err
		}
		files = append(files, staged...)
	}
	return files, nil
}

func ArchiveCreate(c *gin.Context) {
	var req CreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	files, err := stage(req.Files, "")
	if err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	var task *op.Task[*session.Session]
	if req.Temporary {
		if req.Format == "" {
			common.ErrorStrResp(c, "format is required for temporary archives", 400)
			return
		}
		task = coordinator.CreateTemporary(c, req.Format, files...)
	} else {
		if req.Path == "" {
			common.ErrorStrResp(c, "path is required", 400)
			return
		}
		info := model.NewArchiveInfo(req.Path)
		if req.Format != "" {
			info.Format = req.Format
		}
		if req.CompressionLevel != nil {
			info.CompressionLevel = *req.CompressionLevel
		}
		if req.Password != "" {
			info.SetProperty(model.PropPassword, req.Password)
		}
		if req.Encryption != "" {
			info.SetProperty(model.PropEncryption, req.Encryption)
		}
		task = coordinator.Create(c, info, files...)
	}
	s, ok := await(c, task)
	if !ok {
		return
	}
	if !s.Temporary {
		addRecent(s.Info.Path)
	}
	common.SuccessResp(c, toSessionResp(s))
}

type CloseReq struct {
	SessionReq
	Save   bool   `json:"save"`
	SaveAs string `json:"save_as"`
}

func ArchiveClose(c *gin.Context) {
	var req CloseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	if req.SaveAs != "" {
		if err := coordinator.SaveAs(s, req.SaveAs); err != nil {
			common.ErrorResp(c, err, 500, true)
			return
		}
		addRecent(req.SaveAs)
	}
	if err := coordinator.Close(s, req.Save); err != nil {
		common.ErrorResp(c, err, 500, true)
		return
	}
	common.SuccessResp(c)
}

func ArchiveSessions(c *gin.Context) {
	ret, _ := utils.SliceConvert(coordinator.Sessions().List(), func(s *session.Session) (SessionResp, error) {
		return toSessionResp(s), nil
	})
	common.SuccessResp(c, ret)
}

type ListReq struct {
	SessionReq
	// Path lists the given folder instead of the current one.
	Path string `json:"path" form:"path"`
	All  bool   `json:"all" form:"all"`
}

type ListResp struct {
	Session SessionResp `json:"session"`
	Content []ObjResp   `json:"content"`
	Total   int         `json:"total"`
}

func ArchiveList(c *gin.Context) {
	var req ListReq
	if err := c.ShouldBind(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	var files []*model.FileInfo
	switch {
	case req.All:
		files = s.Files()
	case req.Path != "":
		dir := tree.Clean(req.Path)
		if f, ok := s.FindPath(dir); !ok || !f.IsFolder {
			common.OpErrorResp(c, errors.Wrap(errs.NotFolder, dir))
			return
		}
		files = tree.Children(s.Files(), tree.LevelOf(dir)+1, dir)
	default:
		files = s.FilesAtCurrentLevel()
	}
	common.SuccessResp(c, ListResp{
		Session: toSessionResp(s),
		Content: toObjsResp(files),
		Total:   len(files),
	})
}

type NavigateReq struct {
	SessionReq
	Path string `json:"path"`
	Up   bool   `json:"up"`
}

func ArchiveNavigate(c *gin.Context) {
	var req NavigateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	if req.Up {
		s.NavigateUp()
	} else {
		f, ok := getEntry(c, s, req.Path)
		if !ok {
			return
		}
		if !f.IsFolder {
			common.OpErrorResp(c, errors.Wrap(errs.NotFolder, f.FileName))
			return
		}
		s.NavigateInto(f)
	}
	common.SuccessResp(c, ListResp{
		Session: toSessionResp(s),
		Content: toObjsResp(s.FilesAtCurrentLevel()),
		Total:   len(s.FilesAtCurrentLevel()),
	})
}

type AddReq struct {
	SessionReq
	// DstDir is the folder inside the archive, "" for the root.
	DstDir string     `json:"dst_dir"`
	Files  []StageReq `json:"files" binding:"required"`
}

func ArchiveAdd(c *gin.Context) {
	var req AddReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	files, err := stage(req.Files, tree.Clean(req.DstDir))
	if err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	if _, ok := await(c, coordinator.AddEntries(c, s, files...)); ok {
		common.SuccessResp(c, toSessionResp(s))
	}
}

type EntryReq struct {
	SessionReq
	Path string `json:"path"`
}

func ArchiveDelete(c *gin.Context) {
	var req EntryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	f, ok := getEntry(c, s, req.Path)
	if !ok {
		return
	}
	if _, ok := await(c, coordinator.DeleteEntry(c, s, f)); ok {
		common.SuccessResp(c, toSessionResp(s))
	}
}

type TransferReq struct {
	EntryReq
	DstDir string `json:"dst_dir"`
}

func transfer(c *gin.Context, move bool) {
	var req TransferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	f, ok := getEntry(c, s, req.Path)
	if !ok {
		return
	}
	task := coordinator.CopyEntry(c, s, f, req.DstDir)
	if move {
		task = coordinator.MoveEntry(c, s, f, req.DstDir)
	}
	if _, ok := await(c, task); ok {
		common.SuccessResp(c, toSessionResp(s))
	}
}

func ArchiveCopy(c *gin.Context) {
	transfer(c, false)
}

func ArchiveMove(c *gin.Context) {
	transfer(c, true)
}

type MigrationReq struct {
	EntryReq
	// Type is one of copy, move or delete.
	Type string `json:"type" binding:"required"`
}

func ArchiveStartMigration(c *gin.Context) {
	var req MigrationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	f, ok := getEntry(c, s, req.Path)
	if !ok {
		return
	}
	var err error
	switch req.Type {
	case "copy":
		err = coordinator.StartCopy(s, f)
	case "move":
		err = coordinator.StartMove(s, f)
	case "delete":
		err = coordinator.StartDelete(s, f)
	default:
		common.ErrorStrResp(c, "unknown migration type: "+req.Type, 400)
		return
	}
	if err != nil {
		common.OpErrorResp(c, err)
		return
	}
	common.SuccessResp(c, toSessionResp(s))
}

type PasteReq struct {
	SessionReq
	DstDir string `json:"dst_dir"`
}

func ArchivePaste(c *gin.Context) {
	var req PasteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	if _, ok := await(c, coordinator.Paste(c, s, req.DstDir)); ok {
		common.SuccessResp(c, toSessionResp(s))
	}
}

func ArchiveConfirmDelete(c *gin.Context) {
	var req SessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	if _, ok := await(c, coordinator.ConfirmDelete(c, s)); ok {
		common.SuccessResp(c, toSessionResp(s))
	}
}

func ArchiveCancelMigration(c *gin.Context) {
	var req SessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	s.ClearMigration()
	common.SuccessResp(c, toSessionResp(s))
}

type ExtractReq struct {
	SessionReq
	// Path is the entry to extract, everything when empty.
	Path   string `json:"path"`
	DstDir string `json:"dst_dir" binding:"required"`
}

func ArchiveExtract(c *gin.Context) {
	var req ExtractReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	var task *op.Task[*op.ExtractReport]
	if tree.Clean(req.Path) == "" {
		task = coordinator.ExtractAll(c, s, req.DstDir)
	} else {
		f, ok := getEntry(c, s, req.Path)
		if !ok {
			return
		}
		task = coordinator.ExtractEntry(c, s, f, req.DstDir)
	}
	if report, ok := await(c, task); ok {
		common.SuccessResp(c, report)
	}
}

func ArchiveTest(c *gin.Context) {
	var req SessionReq
	if err := c.ShouldBind(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	if _, ok := await(c, coordinator.TestIntegrity(c, s)); ok {
		common.SuccessResp(c, gin.H{"ok": true})
	}
}

func ArchiveOpenNested(c *gin.Context) {
	var req EntryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	f, ok := getEntry(c, s, req.Path)
	if !ok {
		return
	}
	if child, ok := await(c, coordinator.OpenNested(c, s, f)); ok {
		common.SuccessResp(c, toSessionResp(child))
	}
}

func ArchiveReintegrate(c *gin.Context) {
	var req SessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	if _, ok := await(c, coordinator.Reintegrate(c, s)); ok {
		common.SuccessResp(c, toSessionResp(s))
	}
}

// ArchiveDownload streams the archive file of a session, for temporary
// archives that only live in scratch space.
func ArchiveDownload(c *gin.Context) {
	var req SessionReq
	if err := c.ShouldBind(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	s, ok := getSession(c, req.SessionID)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()
	c.FileAttachment(s.Info.Path, s.Info.Name())
}
